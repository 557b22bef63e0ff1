package ir

import (
	"fmt"
	"strings"
)

type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstBool
	ConstUndef
	ConstZero
	ConstNull
	ConstArray
)

// ConstantValue is a module-level constant: the initializer of a global.
// Aggregates nest element constants; Zero is the all-zero value of any
// type.
type ConstantValue struct {
	Kind  ConstKind
	Ty    Ty
	I     int32
	F     float32
	B     bool
	Elems []ConstantValue
}

func ConstantI32(ctx *Context, v int32) ConstantValue {
	return ConstantValue{Kind: ConstInt, Ty: I32Ty(ctx), I: v}
}

func ConstantF32(ctx *Context, v float32) ConstantValue {
	return ConstantValue{Kind: ConstFloat, Ty: F32Ty(ctx), F: v}
}

func ConstantI1(ctx *Context, v bool) ConstantValue {
	return ConstantValue{Kind: ConstBool, Ty: I1Ty(ctx), B: v}
}

func ConstantUndef(ty Ty) ConstantValue {
	return ConstantValue{Kind: ConstUndef, Ty: ty}
}

func ConstantZero(ty Ty) ConstantValue {
	return ConstantValue{Kind: ConstZero, Ty: ty}
}

func ConstantArray(ty Ty, elems []ConstantValue) ConstantValue {
	return ConstantValue{Kind: ConstArray, Ty: ty, Elems: elems}
}

func (c ConstantValue) Display(ctx *Context) string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.I)
	case ConstFloat:
		return fmt.Sprintf("%g", c.F)
	case ConstBool:
		if c.B {
			return "true"
		}
		return "false"
	case ConstUndef:
		return "undef"
	case ConstZero:
		return "zeroinitializer"
	case ConstNull:
		return "null"
	case ConstArray:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = e.Ty.Display(ctx) + " " + e.Display(ctx)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}

type globalData struct {
	name string
	init ConstantValue
}

// Global is a handle to a module-level constant-initialized variable.
type Global struct{ ref }

func NewGlobal(ctx *Context, name string, init ConstantValue) Global {
	g := Global{ctx.globals.alloc(globalData{name: name, init: init})}
	ctx.globalList = append(ctx.globalList, g)
	return g
}

func (g Global) Name(ctx *Context) string { return ctx.globals.get(g.ref).name }

func (g Global) Init(ctx *Context) ConstantValue { return ctx.globals.get(g.ref).init }

// Ty returns the type of the global's value.
func (g Global) Ty(ctx *Context) Ty { return ctx.globals.get(g.ref).init.Ty }
