package ir

import (
	"fmt"
	"strings"
)

type Opcode int

const (
	// Integer binary.
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpSDiv
	OpSRem
	OpXor
	OpAnd
	OpOr
	// Integer compare.
	OpICmp
	// Floating binary.
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFRem
	// Floating compare.
	OpFCmp
	// Casts.
	OpZext
	OpSiToFp
	OpFpToSi
	// Memory.
	OpAlloca
	OpLoad
	OpStore
	// Calls.
	OpCall
	// Terminators.
	OpBr
	OpCondBr
	OpRet
	// SSA merge.
	OpPhi
)

var opcodeNames = map[Opcode]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpSDiv: "sdiv", OpSRem: "srem",
	OpXor: "xor", OpAnd: "and", OpOr: "or", OpICmp: "icmp",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv", OpFRem: "frem",
	OpFCmp: "fcmp", OpZext: "zext", OpSiToFp: "sitofp", OpFpToSi: "fptosi",
	OpAlloca: "alloca", OpLoad: "load", OpStore: "store", OpCall: "call",
	OpBr: "br", OpCondBr: "br", OpRet: "ret", OpPhi: "phi",
}

// IntCond is the condition of an integer compare.
type IntCond int

const (
	IntEq IntCond = iota
	IntNe
	IntSlt
	IntSle
)

func (c IntCond) String() string {
	return [...]string{"eq", "ne", "slt", "sle"}[c]
}

// FloatCond is the condition of a floating compare (unordered forms).
type FloatCond int

const (
	FloatUEq FloatCond = iota
	FloatUNe
	FloatULt
	FloatULe
)

func (c FloatCond) String() string {
	return [...]string{"ueq", "une", "ult", "ule"}[c]
}

// Incoming is one φ edge: the value observed when control arrives from
// the given predecessor block.
type Incoming struct {
	Pred  Block
	Value Value
}

type instData struct {
	op Opcode
	id int

	intCond   IntCond
	floatCond FloatCond

	// operands in order; for φ these are the incoming values, parallel
	// to incomingPreds.
	operands      []Value
	incomingPreds []Block

	targets []Block
	callee  string

	// ty is the opcode-specific type: allocated type for alloca, loaded
	// type for load, result type for binaries/casts/calls/phi.
	ty Ty

	result Value

	parent Block
	prev   Inst
	next   Inst
}

// Inst is a handle to one instruction.
type Inst struct{ ref }

func (ctx *Context) allocInst(data instData) Inst {
	data.id = ctx.nextValueID // shared counter keeps display names unique
	ctx.nextValueID++
	inst := Inst{ctx.insts.alloc(data)}
	for _, op := range ctx.insts.get(inst.ref).operands {
		op.addUser(ctx, inst)
	}
	return inst
}

func (ctx *Context) setResult(inst Inst, ty Ty) {
	res := newInstResult(ctx, inst, ty)
	ctx.insts.get(inst.ref).result = res
}

// NewIntBinary creates one of add/sub/mul/sdiv/srem/xor/and/or.
func NewIntBinary(ctx *Context, op Opcode, lhs, rhs Value, ty Ty) Inst {
	inst := ctx.allocInst(instData{op: op, operands: []Value{lhs, rhs}, ty: ty})
	ctx.setResult(inst, ty)
	return inst
}

// NewICmp creates an integer compare yielding an i1.
func NewICmp(ctx *Context, cond IntCond, lhs, rhs Value) Inst {
	inst := ctx.allocInst(instData{op: OpICmp, intCond: cond, operands: []Value{lhs, rhs}, ty: I1Ty(ctx)})
	ctx.setResult(inst, I1Ty(ctx))
	return inst
}

// NewFloatBinary creates one of fadd/fsub/fmul/fdiv/frem.
func NewFloatBinary(ctx *Context, op Opcode, lhs, rhs Value, ty Ty) Inst {
	inst := ctx.allocInst(instData{op: op, operands: []Value{lhs, rhs}, ty: ty})
	ctx.setResult(inst, ty)
	return inst
}

// NewFCmp creates a floating compare yielding an i1.
func NewFCmp(ctx *Context, cond FloatCond, lhs, rhs Value) Inst {
	inst := ctx.allocInst(instData{op: OpFCmp, floatCond: cond, operands: []Value{lhs, rhs}, ty: I1Ty(ctx)})
	ctx.setResult(inst, I1Ty(ctx))
	return inst
}

// NewCast creates a zext, sitofp or fptosi conversion.
func NewCast(ctx *Context, op Opcode, val Value, to Ty) Inst {
	switch op {
	case OpZext, OpSiToFp, OpFpToSi:
	default:
		panic("ir: NewCast with non-cast opcode")
	}
	inst := ctx.allocInst(instData{op: op, operands: []Value{val}, ty: to})
	ctx.setResult(inst, to)
	return inst
}

// NewAlloca creates a stack-slot allocation. The result is a pointer to
// the allocated type.
func NewAlloca(ctx *Context, ty Ty) Inst {
	inst := ctx.allocInst(instData{op: OpAlloca, ty: ty})
	ctx.setResult(inst, PtrTy(ctx))
	return inst
}

// NewLoad reads a value of the given type through ptr.
func NewLoad(ctx *Context, ptr Value, ty Ty) Inst {
	inst := ctx.allocInst(instData{op: OpLoad, operands: []Value{ptr}, ty: ty})
	ctx.setResult(inst, ty)
	return inst
}

// NewStore writes val through ptr. Store produces no result.
func NewStore(ctx *Context, val, ptr Value) Inst {
	return ctx.allocInst(instData{op: OpStore, operands: []Value{val, ptr}})
}

// NewCall calls a function by name. Void calls produce no result.
func NewCall(ctx *Context, callee string, args []Value, retTy Ty) Inst {
	inst := ctx.allocInst(instData{op: OpCall, callee: callee, operands: append([]Value(nil), args...), ty: retTy})
	if !retTy.IsVoid(ctx) {
		ctx.setResult(inst, retTy)
	}
	return inst
}

// NewBr creates an unconditional branch.
func NewBr(ctx *Context, target Block) Inst {
	return ctx.allocInst(instData{op: OpBr, targets: []Block{target}})
}

// NewCondBr branches to then or els on an i1 condition.
func NewCondBr(ctx *Context, cond Value, then, els Block) Inst {
	return ctx.allocInst(instData{op: OpCondBr, operands: []Value{cond}, targets: []Block{then, els}})
}

// NewRet returns from the function. Pass the zero Value for a void return.
func NewRet(ctx *Context, val Value) Inst {
	data := instData{op: OpRet}
	if !val.IsNil() {
		data.operands = []Value{val}
	}
	return ctx.allocInst(data)
}

// NewPhi creates an empty φ of the given type. Incomings are added after
// creation as predecessors become known.
func NewPhi(ctx *Context, ty Ty) Inst {
	inst := ctx.allocInst(instData{op: OpPhi, ty: ty})
	ctx.setResult(inst, ty)
	return inst
}

// AddIncoming appends a (predecessor, value) edge to a φ.
func (i Inst) AddIncoming(ctx *Context, pred Block, val Value) {
	data := ctx.insts.get(i.ref)
	if data.op != OpPhi {
		panic("ir: AddIncoming on non-phi instruction")
	}
	data.operands = append(data.operands, val)
	data.incomingPreds = append(data.incomingPreds, pred)
	val.addUser(ctx, i)
}

func (i Inst) Op(ctx *Context) Opcode { return ctx.insts.get(i.ref).op }

func (i Inst) IsPhi(ctx *Context) bool { return i.Op(ctx) == OpPhi }

func (i Inst) IsTerminator(ctx *Context) bool {
	switch i.Op(ctx) {
	case OpBr, OpCondBr, OpRet:
		return true
	}
	return false
}

// Result returns the defined value, if the instruction defines one.
func (i Inst) Result(ctx *Context) (Value, bool) {
	res := ctx.insts.get(i.ref).result
	return res, !res.IsNil()
}

// Operands returns the operand values in order.
func (i Inst) Operands(ctx *Context) []Value {
	return append([]Value(nil), ctx.insts.get(i.ref).operands...)
}

// Successors returns a terminator's explicit targets, in operand order.
func (i Inst) Successors(ctx *Context) []Block {
	return append([]Block(nil), ctx.insts.get(i.ref).targets...)
}

// Incomings returns a φ's (predecessor, value) pairs in insertion order.
func (i Inst) Incomings(ctx *Context) []Incoming {
	data := ctx.insts.get(i.ref)
	out := make([]Incoming, len(data.incomingPreds))
	for k := range data.incomingPreds {
		out[k] = Incoming{Pred: data.incomingPreds[k], Value: data.operands[k]}
	}
	return out
}

func (i Inst) Callee(ctx *Context) string { return ctx.insts.get(i.ref).callee }

// InstTy returns the opcode-specific type: the allocated type of an
// alloca, the loaded type of a load, the result type otherwise.
func (i Inst) InstTy(ctx *Context) Ty { return ctx.insts.get(i.ref).ty }

func (i Inst) IntCond(ctx *Context) IntCond     { return ctx.insts.get(i.ref).intCond }
func (i Inst) FloatCond(ctx *Context) FloatCond { return ctx.insts.get(i.ref).floatCond }

func (i Inst) Parent(ctx *Context) Block { return ctx.insts.get(i.ref).parent }
func (i Inst) Prev(ctx *Context) Inst    { return ctx.insts.get(i.ref).prev }
func (i Inst) Next(ctx *Context) Inst    { return ctx.insts.get(i.ref).next }

// Unlink removes the instruction from its block and drops its operand
// uses from the def-use graph. The instruction itself (and its result)
// stay allocated until DeallocInst.
func (i Inst) Unlink(ctx *Context) {
	data := ctx.insts.get(i.ref)
	for _, op := range data.operands {
		op.RemoveUser(ctx, i)
	}
	data.operands = nil
	data.incomingPreds = nil

	parent := data.parent
	prev, next := data.prev, data.next
	if !prev.IsNil() {
		ctx.insts.get(prev.ref).next = next
	}
	if !next.IsNil() {
		ctx.insts.get(next.ref).prev = prev
	}
	if !parent.IsNil() {
		bd := ctx.blocks.get(parent.ref)
		if bd.head == i {
			bd.head = next
		}
		if bd.tail == i {
			bd.tail = prev
		}
	}
	data.parent = Block{}
	data.prev = Inst{}
	data.next = Inst{}
}

// DeallocInst releases an unlinked instruction and its result value. The
// result must have no remaining users.
func (ctx *Context) DeallocInst(i Inst) error {
	data := ctx.insts.get(i.ref)
	if !data.result.IsNil() {
		if err := ctx.DeallocValue(data.result); err != nil {
			return err
		}
	}
	ctx.insts.dealloc(i.ref)
	return nil
}

// Display renders the instruction for debug output (CFG labels, logs).
func (i Inst) Display(ctx *Context) string {
	data := ctx.insts.get(i.ref)
	var sb strings.Builder
	if !data.result.IsNil() {
		fmt.Fprintf(&sb, "%s = ", data.result.Display(ctx))
	}
	switch data.op {
	case OpICmp:
		fmt.Fprintf(&sb, "icmp %s %s, %s", data.intCond, data.operands[0].Display(ctx), data.operands[1].Display(ctx))
	case OpFCmp:
		fmt.Fprintf(&sb, "fcmp %s %s, %s", data.floatCond, data.operands[0].Display(ctx), data.operands[1].Display(ctx))
	case OpAlloca:
		fmt.Fprintf(&sb, "alloca %s", data.ty.Display(ctx))
	case OpLoad:
		fmt.Fprintf(&sb, "load %s, %s", data.ty.Display(ctx), data.operands[0].Display(ctx))
	case OpStore:
		fmt.Fprintf(&sb, "store %s, %s", data.operands[0].Display(ctx), data.operands[1].Display(ctx))
	case OpCall:
		args := make([]string, len(data.operands))
		for k, op := range data.operands {
			args[k] = op.Display(ctx)
		}
		fmt.Fprintf(&sb, "call %s @%s(%s)", data.ty.Display(ctx), data.callee, strings.Join(args, ", "))
	case OpBr:
		fmt.Fprintf(&sb, "br label %%%s", data.targets[0].Name(ctx))
	case OpCondBr:
		fmt.Fprintf(&sb, "br %s, label %%%s, label %%%s",
			data.operands[0].Display(ctx), data.targets[0].Name(ctx), data.targets[1].Name(ctx))
	case OpRet:
		if len(data.operands) == 0 {
			sb.WriteString("ret void")
		} else {
			fmt.Fprintf(&sb, "ret %s", data.operands[0].Display(ctx))
		}
	case OpPhi:
		fmt.Fprintf(&sb, "phi %s ", data.ty.Display(ctx))
		for k := range data.incomingPreds {
			if k > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "[ %s, %%%s ]", data.operands[k].Display(ctx), data.incomingPreds[k].Name(ctx))
		}
	default:
		ops := make([]string, len(data.operands))
		for k, op := range data.operands {
			ops[k] = op.Display(ctx)
		}
		fmt.Fprintf(&sb, "%s %s", opcodeNames[data.op], strings.Join(ops, ", "))
	}
	return sb.String()
}
