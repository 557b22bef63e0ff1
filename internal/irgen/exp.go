package irgen

import (
	"sysyc/internal/ir"
	"sysyc/internal/parser"
)

// genLocalExp lowers an expression post-order and returns its IR value.
// The second result is false only for calls of void functions.
func (g *Generator) genLocalExp(e parser.Exp) (ir.Value, bool) {
	switch ex := e.(type) {
	case *parser.ConstExp:
		return g.genLocalComptime(ex.Val, ex.Line), true

	case *parser.BinaryExp:
		return g.genBinary(ex)

	case *parser.UnaryExp:
		return g.genUnary(ex)

	case *parser.LValExp:
		return g.genLValLoad(ex)

	case *parser.CoercionExp:
		return g.genCoercion(ex), true

	case *parser.CallExp:
		args := make([]ir.Value, len(ex.Args))
		for i, arg := range ex.Args {
			val, ok := g.genLocalExp(arg)
			if !ok {
				g.fail(arg.Pos(), "void value used as an argument")
			}
			args[i] = val
		}
		retTy := g.genTy(ex.Ty)
		call := ir.NewCall(g.ctx, ex.Ident, args, retTy)
		g.currBlock.PushBack(g.ctx, call)
		if ex.Ty.IsVoid() {
			return ir.Value{}, false
		}
		res, _ := call.Result(g.ctx)
		return res, true

	case *parser.InitListExp:
		g.fail(ex.Line, "initializer list in expression position")
	}
	panic("irgen: unknown expression kind")
}

func (g *Generator) genBinary(ex *parser.BinaryExp) (ir.Value, bool) {
	if ex.Op == parser.OpLAnd || ex.Op == parser.OpLOr {
		return g.genShortCircuit(ex), true
	}

	isFloat := ex.Lhs.Type().IsFloat()

	lhs, ok := g.genLocalExp(ex.Lhs)
	if !ok {
		g.fail(ex.Line, "void value used as an operand")
	}
	rhs, ok := g.genLocalExp(ex.Rhs)
	if !ok {
		g.fail(ex.Line, "void value used as an operand")
	}
	opTy := lhs.Ty(g.ctx)

	var inst ir.Inst
	switch ex.Op {
	case parser.OpAdd:
		inst = g.binSel(isFloat, ir.OpFAdd, ir.OpAdd, lhs, rhs, opTy)
	case parser.OpSub:
		inst = g.binSel(isFloat, ir.OpFSub, ir.OpSub, lhs, rhs, opTy)
	case parser.OpMul:
		inst = g.binSel(isFloat, ir.OpFMul, ir.OpMul, lhs, rhs, opTy)
	case parser.OpDiv:
		inst = g.binSel(isFloat, ir.OpFDiv, ir.OpSDiv, lhs, rhs, opTy)
	case parser.OpMod:
		inst = g.binSel(isFloat, ir.OpFRem, ir.OpSRem, lhs, rhs, opTy)
	case parser.OpEq:
		inst = g.cmpSel(isFloat, ir.FloatUEq, ir.IntEq, lhs, rhs)
	case parser.OpNe:
		inst = g.cmpSel(isFloat, ir.FloatUNe, ir.IntNe, lhs, rhs)
	case parser.OpLt:
		inst = g.cmpSel(isFloat, ir.FloatULt, ir.IntSlt, lhs, rhs)
	case parser.OpLe:
		inst = g.cmpSel(isFloat, ir.FloatULe, ir.IntSle, lhs, rhs)
	case parser.OpGt:
		// a > b lowers as b < a.
		inst = g.cmpSel(isFloat, ir.FloatULt, ir.IntSlt, rhs, lhs)
	case parser.OpGe:
		inst = g.cmpSel(isFloat, ir.FloatULe, ir.IntSle, rhs, lhs)
	default:
		g.fail(ex.Line, "unsupported binary operator %s", ex.Op)
	}

	g.currBlock.PushBack(g.ctx, inst)
	res, _ := inst.Result(g.ctx)
	return res, true
}

func (g *Generator) binSel(isFloat bool, fop, iop ir.Opcode, lhs, rhs ir.Value, ty ir.Ty) ir.Inst {
	if isFloat {
		return ir.NewFloatBinary(g.ctx, fop, lhs, rhs, ty)
	}
	return ir.NewIntBinary(g.ctx, iop, lhs, rhs, ty)
}

func (g *Generator) cmpSel(isFloat bool, fcond ir.FloatCond, icond ir.IntCond, lhs, rhs ir.Value) ir.Inst {
	if isFloat {
		return ir.NewFCmp(g.ctx, fcond, lhs, rhs)
	}
	return ir.NewICmp(g.ctx, icond, lhs, rhs)
}

// genShortCircuit lowers && and || with explicit control flow and an i1
// φ-merge:
//
//	&&: lhs false -> merge with false, true -> rhs
//	||: lhs true  -> merge with true, false -> rhs
//
// The φ's rhs predecessor is whatever block is current when the right
// operand finishes, which differs from the initial rhs block when the
// right operand itself short-circuited.
func (g *Generator) genShortCircuit(ex *parser.BinaryExp) ir.Value {
	lhs, ok := g.genLocalExp(ex.Lhs)
	if !ok {
		g.fail(ex.Line, "void value used as an operand")
	}
	lhsBlock := g.currBlock

	rhsBlock := ir.NewBlock(g.ctx)
	mergeBlock := ir.NewBlock(g.ctx)
	g.currFunc.PushBack(g.ctx, rhsBlock)
	g.currFunc.PushBack(g.ctx, mergeBlock)

	var br ir.Inst
	if ex.Op == parser.OpLAnd {
		br = ir.NewCondBr(g.ctx, lhs, rhsBlock, mergeBlock)
	} else {
		br = ir.NewCondBr(g.ctx, lhs, mergeBlock, rhsBlock)
	}
	lhsBlock.PushBack(g.ctx, br)

	g.currBlock = rhsBlock
	rhs, ok := g.genLocalExp(ex.Rhs)
	if !ok {
		g.fail(ex.Line, "void value used as an operand")
	}
	rhsEndBlock := g.currBlock
	rhsEndBlock.PushBack(g.ctx, ir.NewBr(g.ctx, mergeBlock))

	phi := ir.NewPhi(g.ctx, ir.I1Ty(g.ctx))
	shortcut := ir.ConstI1(g.ctx, ex.Op == parser.OpLOr)
	phi.AddIncoming(g.ctx, lhsBlock, shortcut)
	phi.AddIncoming(g.ctx, rhsEndBlock, rhs)
	mergeBlock.PushFront(g.ctx, phi)

	g.currBlock = mergeBlock
	res, _ := phi.Result(g.ctx)
	return res
}

func (g *Generator) genUnary(ex *parser.UnaryExp) (ir.Value, bool) {
	switch ex.Op {
	case parser.OpPos:
		return g.genLocalExp(ex.Operand)

	case parser.OpNeg:
		operand, ok := g.genLocalExp(ex.Operand)
		if !ok {
			g.fail(ex.Line, "void value used as an operand")
		}
		var inst ir.Inst
		if ex.Operand.Type().IsFloat() {
			zero := ir.ConstF32(g.ctx, 0)
			inst = ir.NewFloatBinary(g.ctx, ir.OpFSub, zero, operand, ir.F32Ty(g.ctx))
		} else {
			zero := ir.ConstI32(g.ctx, 0)
			inst = ir.NewIntBinary(g.ctx, ir.OpSub, zero, operand, ir.I32Ty(g.ctx))
		}
		g.currBlock.PushBack(g.ctx, inst)
		res, _ := inst.Result(g.ctx)
		return res, true

	case parser.OpNot:
		operand, ok := g.genLocalExp(ex.Operand)
		if !ok {
			g.fail(ex.Line, "void value used as an operand")
		}
		trueVal := ir.ConstI1(g.ctx, true)
		inst := ir.NewIntBinary(g.ctx, ir.OpXor, operand, trueVal, ir.I1Ty(g.ctx))
		g.currBlock.PushBack(g.ctx, inst)
		res, _ := inst.Result(g.ctx)
		return res, true
	}
	panic("irgen: unknown unary operator")
}

// genLValLoad reads a named slot. Globals load through a global
// reference; parameters used by reference are returned as-is; locals
// load from their alloca.
func (g *Generator) genLValLoad(ex *parser.LValExp) (ir.Value, bool) {
	if len(ex.Indices) > 0 {
		g.fail(ex.Line, "runtime array element access is not supported")
	}
	slot, entry := g.lvalSlot(ex.Ident, ex.Line)
	if slot.IsParam(g.ctx) {
		return slot, true
	}
	load := ir.NewLoad(g.ctx, slot, g.genTy(entry.Ty))
	g.currBlock.PushBack(g.ctx, load)
	res, _ := load.Result(g.ctx)
	return res, true
}

// lvalAddress resolves a name to the pointer standing for its storage
// without loading: used for array-to-pointer decay.
func (g *Generator) lvalAddress(ex *parser.LValExp) ir.Value {
	slot, _ := g.lvalSlot(ex.Ident, ex.Line)
	return slot
}

func (g *Generator) genCoercion(ex *parser.CoercionExp) ir.Value {
	from := ex.Inner.Type()
	to := ex.Ty

	// Array-to-pointer decay passes the storage address through.
	if from.IsArray() && to.IsPointer() {
		lval, ok := ex.Inner.(*parser.LValExp)
		if !ok {
			g.fail(ex.Line, "cannot take the address of a temporary array")
		}
		return g.lvalAddress(lval)
	}

	val, ok := g.genLocalExp(ex.Inner)
	if !ok {
		g.fail(ex.Line, "void value used in a conversion")
	}

	push := func(inst ir.Inst) ir.Value {
		g.currBlock.PushBack(g.ctx, inst)
		res, _ := inst.Result(g.ctx)
		return res
	}

	switch {
	case from.IsBool() && to.IsInt():
		return push(ir.NewCast(g.ctx, ir.OpZext, val, ir.I32Ty(g.ctx)))

	case from.IsInt() && to.IsBool():
		zero := ir.ConstI32(g.ctx, 0)
		return push(ir.NewICmp(g.ctx, ir.IntNe, val, zero))

	case from.IsInt() && to.IsFloat():
		return push(ir.NewCast(g.ctx, ir.OpSiToFp, val, ir.F32Ty(g.ctx)))

	case from.IsFloat() && to.IsInt():
		return push(ir.NewCast(g.ctx, ir.OpFpToSi, val, ir.I32Ty(g.ctx)))

	case from.IsBool() && to.IsFloat():
		// Two steps: widen to i32, then convert.
		wide := push(ir.NewCast(g.ctx, ir.OpZext, val, ir.I32Ty(g.ctx)))
		return push(ir.NewCast(g.ctx, ir.OpSiToFp, wide, ir.F32Ty(g.ctx)))

	case from.IsFloat() && to.IsBool():
		zero := ir.ConstF32(g.ctx, 0)
		return push(ir.NewFCmp(g.ctx, ir.FloatUNe, val, zero))

	case from == to:
		return val
	}
	g.fail(ex.Line, "invalid conversion from %s to %s", from, to)
	return ir.Value{}
}
