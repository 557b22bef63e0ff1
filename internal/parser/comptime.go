package parser

import (
	"fmt"
	"math"

	"sysyc/internal/types"
)

// CvKind discriminates compile-time values.
type CvKind int

const (
	CvBool CvKind = iota
	CvInt
	CvFloat
	CvList
	CvUndef
	CvZero
)

// ComptimeVal is a value known at compile time. Integer arithmetic is 64-bit
// signed with wrap-on-overflow; mixed operands are lifted along the
// bool < int < float promotion lattice.
type ComptimeVal struct {
	Kind  CvKind
	B     bool
	I     int64
	F     float32
	Elems []*ComptimeVal
	// Ty is set for Undef and Zero, whose type cannot be recovered
	// from the payload.
	Ty *types.Type
}

func BoolVal(b bool) *ComptimeVal  { return &ComptimeVal{Kind: CvBool, B: b} }
func IntVal(i int64) *ComptimeVal  { return &ComptimeVal{Kind: CvInt, I: i} }
func FloatVal(f float32) *ComptimeVal {
	return &ComptimeVal{Kind: CvFloat, F: f}
}
func ListVal(elems []*ComptimeVal) *ComptimeVal {
	return &ComptimeVal{Kind: CvList, Elems: elems}
}
func UndefVal(ty *types.Type) *ComptimeVal { return &ComptimeVal{Kind: CvUndef, Ty: ty} }
func ZeroVal(ty *types.Type) *ComptimeVal  { return &ComptimeVal{Kind: CvZero, Ty: ty} }

// GetType returns the type of the value, interning through reg.
func (v *ComptimeVal) GetType(reg *types.Registry) *types.Type {
	switch v.Kind {
	case CvBool:
		return reg.Bool()
	case CvInt:
		return reg.Int()
	case CvFloat:
		return reg.Float()
	case CvUndef, CvZero:
		return v.Ty
	case CvList:
		elemTy := v.Elems[0].GetType(reg)
		return reg.Array(elemTy, len(v.Elems))
	}
	panic("unknown comptime kind")
}

// IsNumeric reports whether the value participates in arithmetic.
func (v *ComptimeVal) IsNumeric() bool {
	return v.Kind == CvBool || v.Kind == CvInt || v.Kind == CvFloat
}

func (v *ComptimeVal) IsZero() bool {
	switch v.Kind {
	case CvBool:
		return !v.B
	case CvInt:
		return v.I == 0
	case CvFloat:
		return v.F == 0
	case CvZero:
		return true
	case CvUndef:
		return false
	case CvList:
		for _, e := range v.Elems {
			if !e.IsZero() {
				return false
			}
		}
		return true
	}
	return false
}

// UnwrapInt returns the value as a 64-bit integer.
// Panics for list and undef values.
func (v *ComptimeVal) UnwrapInt() int64 {
	switch v.Kind {
	case CvBool:
		if v.B {
			return 1
		}
		return 0
	case CvInt:
		return v.I
	case CvFloat:
		return int64(v.F)
	case CvZero:
		return 0
	}
	panic(fmt.Sprintf("UnwrapInt on %s comptime value", v))
}

func (v *ComptimeVal) truthy() (bool, bool) {
	switch v.Kind {
	case CvBool:
		return v.B, true
	case CvInt:
		return v.I != 0, true
	case CvFloat:
		return v.F != 0, true
	case CvZero:
		return false, true
	}
	return false, false
}

// asInt and asFloat read a numeric value at the given lattice level.
// Bool lifts to 0/1.
func (v *ComptimeVal) asInt() int64 {
	if v.Kind == CvBool {
		if v.B {
			return 1
		}
		return 0
	}
	return v.I
}

func (v *ComptimeVal) asFloat() float32 {
	switch v.Kind {
	case CvBool:
		if v.B {
			return 1
		}
		return 0
	case CvInt:
		return float32(v.I)
	}
	return v.F
}

// promoted returns the common lattice level of two numeric operands, or
// false when either operand is non-numeric.
func promoted(a, b *ComptimeVal) (CvKind, bool) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return 0, false
	}
	k := a.Kind
	if b.Kind > k {
		k = b.Kind
	}
	return k, true
}

// arith applies an arithmetic operator with promotion. Bool operands are
// lifted at least to int, so bool+bool yields int. Returns nil when either
// operand is not numeric.
func arith(a, b *ComptimeVal, iop func(int64, int64) int64, fop func(float32, float32) float32) *ComptimeVal {
	k, ok := promoted(a, b)
	if !ok {
		return nil
	}
	if k == CvFloat {
		return FloatVal(fop(a.asFloat(), b.asFloat()))
	}
	return IntVal(iop(a.asInt(), b.asInt()))
}

func (v *ComptimeVal) Add(o *ComptimeVal) *ComptimeVal {
	return arith(v, o, func(a, b int64) int64 { return a + b }, func(a, b float32) float32 { return a + b })
}

func (v *ComptimeVal) Sub(o *ComptimeVal) *ComptimeVal {
	return arith(v, o, func(a, b int64) int64 { return a - b }, func(a, b float32) float32 { return a - b })
}

func (v *ComptimeVal) Mul(o *ComptimeVal) *ComptimeVal {
	return arith(v, o, func(a, b int64) int64 { return a * b }, func(a, b float32) float32 { return a * b })
}

// Div and Rem assume the caller has rejected a zero integer divisor.
func (v *ComptimeVal) Div(o *ComptimeVal) *ComptimeVal {
	return arith(v, o, func(a, b int64) int64 { return a / b }, func(a, b float32) float32 { return a / b })
}

func (v *ComptimeVal) Rem(o *ComptimeVal) *ComptimeVal {
	return arith(v, o, func(a, b int64) int64 { return a % b }, func(a, b float32) float32 {
		return float32(math.Mod(float64(a), float64(b)))
	})
}

func (v *ComptimeVal) Neg() *ComptimeVal {
	switch v.Kind {
	case CvBool:
		return IntVal(-v.asInt())
	case CvInt:
		return IntVal(-v.I)
	case CvFloat:
		return FloatVal(-v.F)
	case CvZero:
		return ZeroVal(v.Ty)
	}
	return nil
}

// Not is logical negation: !x is true exactly when x is zero.
func (v *ComptimeVal) Not() *ComptimeVal {
	t, ok := v.truthy()
	if !ok {
		return nil
	}
	return BoolVal(!t)
}

func (v *ComptimeVal) LogicalAnd(o *ComptimeVal) *ComptimeVal {
	a, ok1 := v.truthy()
	b, ok2 := o.truthy()
	if !ok1 || !ok2 {
		return nil
	}
	return BoolVal(a && b)
}

func (v *ComptimeVal) LogicalOr(o *ComptimeVal) *ComptimeVal {
	a, ok1 := v.truthy()
	b, ok2 := o.truthy()
	if !ok1 || !ok2 {
		return nil
	}
	return BoolVal(a || b)
}

// Eq compares across numeric kinds after promotion. Float comparison is
// exact bit equality after promotion.
func (v *ComptimeVal) Eq(o *ComptimeVal) (bool, bool) {
	k, ok := promoted(v, o)
	if !ok {
		return false, false
	}
	switch k {
	case CvBool:
		return v.B == o.B, true
	case CvInt:
		return v.asInt() == o.asInt(), true
	default:
		return v.asFloat() == o.asFloat(), true
	}
}

// Less compares after promotion. NaN compares false, as IEEE dictates.
func (v *ComptimeVal) Less(o *ComptimeVal) (bool, bool) {
	k, ok := promoted(v, o)
	if !ok {
		return false, false
	}
	if k == CvFloat {
		return v.asFloat() < o.asFloat(), true
	}
	return v.asInt() < o.asInt(), true
}

func (v *ComptimeVal) LessEq(o *ComptimeVal) (bool, bool) {
	k, ok := promoted(v, o)
	if !ok {
		return false, false
	}
	if k == CvFloat {
		return v.asFloat() <= o.asFloat(), true
	}
	return v.asInt() <= o.asInt(), true
}

func (v *ComptimeVal) String() string {
	switch v.Kind {
	case CvBool:
		return fmt.Sprintf("%t", v.B)
	case CvInt:
		return fmt.Sprintf("%d", v.I)
	case CvFloat:
		return fmt.Sprintf("%g", v.F)
	case CvList:
		s := "["
		for i, e := range v.Elems {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + "]"
	case CvUndef:
		return fmt.Sprintf("undef(%s)", v.Ty)
	case CvZero:
		return fmt.Sprintf("zero(%s)", v.Ty)
	}
	return "?"
}
