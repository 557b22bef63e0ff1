package sema

import (
	"sysyc/internal/parser"
	"sysyc/internal/types"
)

// tryFold reduces an expression to a compile-time value. The second result
// is false when the expression is not foldable (calls, non-constant
// leaves). Division or modulus by a zero constant is a fatal check error.
func (c *Checker) tryFold(e parser.Exp) (*parser.ComptimeVal, bool) {
	switch ex := e.(type) {
	case *parser.ConstExp:
		return ex.Val, true

	case *parser.BinaryExp:
		lhs, ok := c.tryFold(ex.Lhs)
		if !ok {
			return nil, false
		}
		rhs, ok := c.tryFold(ex.Rhs)
		if !ok {
			return nil, false
		}
		return c.foldBinary(ex, lhs, rhs)

	case *parser.UnaryExp:
		val, ok := c.tryFold(ex.Operand)
		if !ok {
			return nil, false
		}
		switch ex.Op {
		case parser.OpNeg:
			return nonNil(val.Neg())
		case parser.OpNot:
			return nonNil(val.Not())
		case parser.OpPos:
			return val, true
		}
		return nil, false

	case *parser.CallExp:
		return nil, false

	case *parser.LValExp:
		entry := c.symtable.Lookup(ex.Ident)
		if entry == nil || entry.Comptime == nil {
			return nil, false
		}
		val := entry.Comptime
		for _, idxExp := range ex.Indices {
			idx, ok := c.tryFold(idxExp)
			if !ok || !idx.IsNumeric() {
				return nil, false
			}
			if val.Kind != parser.CvList {
				return nil, false
			}
			i := idx.UnwrapInt()
			if i < 0 || int(i) >= len(val.Elems) {
				return nil, false
			}
			val = val.Elems[i]
		}
		return val, true

	case *parser.InitListExp:
		elems := make([]*parser.ComptimeVal, len(ex.Elems))
		for i, el := range ex.Elems {
			val, ok := c.tryFold(el)
			if !ok {
				return nil, false
			}
			elems[i] = val
		}
		return parser.ListVal(elems), true

	case *parser.CoercionExp:
		val, ok := c.tryFold(ex.Inner)
		if !ok || !val.IsNumeric() {
			return nil, false
		}
		switch ex.Ty.Kind() {
		case types.KindBool:
			return val.Not().Not(), true
		case types.KindInt:
			return parser.IntVal(val.UnwrapInt()), true
		case types.KindFloat:
			switch val.Kind {
			case parser.CvBool:
				if val.B {
					return parser.FloatVal(1), true
				}
				return parser.FloatVal(0), true
			case parser.CvInt:
				return parser.FloatVal(float32(val.I)), true
			default:
				return val, true
			}
		}
		// Pointer decay and the like are not comptime.
		return nil, false
	}
	return nil, false
}

func (c *Checker) foldBinary(ex *parser.BinaryExp, lhs, rhs *parser.ComptimeVal) (*parser.ComptimeVal, bool) {
	switch ex.Op {
	case parser.OpAdd:
		return nonNil(lhs.Add(rhs))
	case parser.OpSub:
		return nonNil(lhs.Sub(rhs))
	case parser.OpMul:
		return nonNil(lhs.Mul(rhs))
	case parser.OpDiv, parser.OpMod:
		if rhs.IsNumeric() && rhs.IsZero() {
			c.fail(ex.Line, "division by zero in constant expression")
		}
		if ex.Op == parser.OpDiv {
			return nonNil(lhs.Div(rhs))
		}
		return nonNil(lhs.Rem(rhs))
	case parser.OpLt:
		v, ok := lhs.Less(rhs)
		return boolOrFail(v, ok)
	case parser.OpGt:
		v, ok := rhs.Less(lhs)
		return boolOrFail(v, ok)
	case parser.OpLe:
		v, ok := lhs.LessEq(rhs)
		return boolOrFail(v, ok)
	case parser.OpGe:
		v, ok := rhs.LessEq(lhs)
		return boolOrFail(v, ok)
	case parser.OpEq:
		v, ok := lhs.Eq(rhs)
		return boolOrFail(v, ok)
	case parser.OpNe:
		v, ok := lhs.Eq(rhs)
		return boolOrFail(!v, ok)
	case parser.OpLAnd:
		return nonNil(lhs.LogicalAnd(rhs))
	case parser.OpLOr:
		return nonNil(lhs.LogicalOr(rhs))
	}
	return nil, false
}

func nonNil(v *parser.ComptimeVal) (*parser.ComptimeVal, bool) {
	if v == nil {
		return nil, false
	}
	return v, true
}

func boolOrFail(v, ok bool) (*parser.ComptimeVal, bool) {
	if !ok {
		return nil, false
	}
	return parser.BoolVal(v), true
}
