package ir

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

type valueKind int

const (
	valueConstInt valueKind = iota
	valueConstFloat
	valueConstBool
	valueUndef
	valueNull
	valueGlobalRef
	valueParam
	valueInstResult
)

type valueData struct {
	kind valueKind
	ty   Ty
	id   int

	i    int32
	f    float32
	b    bool
	name string // global reference

	fn    Func // parameter owner
	index int  // parameter position

	inst Inst // defining instruction

	// users lists the instructions that reference this value as an
	// operand, one entry per use occurrence.
	users []Inst
}

// Value is a handle to an SSA value: a constant, a function parameter or
// an instruction result. Every value has a cached type and a def-use list.
type Value struct{ ref }

func (ctx *Context) allocValue(data valueData) Value {
	data.id = ctx.nextValueID
	ctx.nextValueID++
	return Value{ctx.values.alloc(data)}
}

// ConstI32 creates an i32 constant. Constants are not memoized; equal
// values may have distinct handles.
func ConstI32(ctx *Context, v int32) Value {
	return ctx.allocValue(valueData{kind: valueConstInt, ty: I32Ty(ctx), i: v})
}

// ConstF32 creates a float constant.
func ConstF32(ctx *Context, v float32) Value {
	return ctx.allocValue(valueData{kind: valueConstFloat, ty: F32Ty(ctx), f: v})
}

// ConstI1 creates a 1-bit boolean constant.
func ConstI1(ctx *Context, v bool) Value {
	return ctx.allocValue(valueData{kind: valueConstBool, ty: I1Ty(ctx), b: v})
}

// Undef creates an undefined value of the given type.
func Undef(ctx *Context, ty Ty) Value {
	return ctx.allocValue(valueData{kind: valueUndef, ty: ty})
}

// Null creates a typed null pointer value.
func Null(ctx *Context, ty Ty) Value {
	return ctx.allocValue(valueData{kind: valueNull, ty: ty})
}

// GlobalRef creates a reference to a module-level global. Its type is the
// global's value type; as an operand it acts as a pointer to that storage.
func GlobalRef(ctx *Context, name string, ty Ty) Value {
	return ctx.allocValue(valueData{kind: valueGlobalRef, ty: ty, name: name})
}

func newParam(ctx *Context, fn Func, ty Ty, index int) Value {
	return ctx.allocValue(valueData{kind: valueParam, ty: ty, fn: fn, index: index})
}

func newInstResult(ctx *Context, inst Inst, ty Ty) Value {
	return ctx.allocValue(valueData{kind: valueInstResult, ty: ty, inst: inst})
}

func (v Value) Ty(ctx *Context) Ty { return ctx.values.get(v.ref).ty }

func (v Value) IsParam(ctx *Context) bool {
	return ctx.values.get(v.ref).kind == valueParam
}

func (v Value) IsGlobalRef(ctx *Context) bool {
	return ctx.values.get(v.ref).kind == valueGlobalRef
}

// GlobalName returns the referenced global's name for global-ref values.
func (v Value) GlobalName(ctx *Context) string {
	return ctx.values.get(v.ref).name
}

// Def returns the defining instruction of an instruction-result value.
func (v Value) Def(ctx *Context) (Inst, bool) {
	data := ctx.values.get(v.ref)
	if data.kind != valueInstResult {
		return Inst{}, false
	}
	return data.inst, true
}

// Users returns the instructions using this value, one entry per use.
func (v Value) Users(ctx *Context) []Inst {
	return append([]Inst(nil), ctx.values.get(v.ref).users...)
}

func (v Value) addUser(ctx *Context, user Inst) {
	data := ctx.values.get(v.ref)
	data.users = append(data.users, user)
}

// RemoveUser drops one use record of user from the def-use list.
func (v Value) RemoveUser(ctx *Context, user Inst) {
	data := ctx.values.get(v.ref)
	for i, u := range data.users {
		if u == user {
			data.users = append(data.users[:i], data.users[i+1:]...)
			return
		}
	}
}

// DeallocValue releases a value's arena slot. A value with live users may
// not be deallocated.
func (ctx *Context) DeallocValue(v Value) error {
	if n := len(ctx.values.get(v.ref).users); n > 0 {
		return errors.Errorf("ir: value %s still has %d users", v.Display(ctx), n)
	}
	ctx.values.dealloc(v.ref)
	return nil
}

// Display renders the value the way it appears as an operand.
func (v Value) Display(ctx *Context) string {
	data := ctx.values.get(v.ref)
	switch data.kind {
	case valueConstInt:
		return strconv.FormatInt(int64(data.i), 10)
	case valueConstFloat:
		return fmt.Sprintf("%g", data.f)
	case valueConstBool:
		if data.b {
			return "true"
		}
		return "false"
	case valueUndef:
		return "undef"
	case valueNull:
		return "null"
	case valueGlobalRef:
		return "@" + data.name
	case valueParam:
		return fmt.Sprintf("%%arg%d", data.index)
	case valueInstResult:
		return fmt.Sprintf("%%v%d", data.id)
	}
	return "?"
}

// ConstantInfo exposes a constant value's payload for emission. The kind
// result is false for non-constant values.
func (v Value) ConstantInfo(ctx *Context) (ConstantValue, bool) {
	data := ctx.values.get(v.ref)
	switch data.kind {
	case valueConstInt:
		return ConstantValue{Kind: ConstInt, Ty: data.ty, I: data.i}, true
	case valueConstFloat:
		return ConstantValue{Kind: ConstFloat, Ty: data.ty, F: data.f}, true
	case valueConstBool:
		return ConstantValue{Kind: ConstBool, Ty: data.ty, B: data.b}, true
	case valueUndef:
		return ConstantValue{Kind: ConstUndef, Ty: data.ty}, true
	case valueNull:
		return ConstantValue{Kind: ConstNull, Ty: data.ty}, true
	}
	return ConstantValue{}, false
}
