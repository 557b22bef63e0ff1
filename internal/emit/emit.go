// Package emit converts the in-house IR into an llir/llvm module so the
// compiler can print LLVM-compatible textual assembly: global constant
// definitions, function declares and defines, SSA-numbered values and
// labelled blocks.
package emit

import (
	"strconv"

	llvmir "github.com/llir/llvm/ir"
	llconst "github.com/llir/llvm/ir/constant"
	llenum "github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	llvalue "github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"sysyc/internal/ir"
)

type emitter struct {
	ctx    *ir.Context
	module *llvmir.Module

	funcs   map[string]*llvmir.Func
	globals map[string]*llvmir.Global
}

// Module converts the whole context. The result can be rendered with its
// String method.
func Module(ctx *ir.Context) (*llvmir.Module, error) {
	e := &emitter{
		ctx:     ctx,
		module:  llvmir.NewModule(),
		funcs:   map[string]*llvmir.Func{},
		globals: map[string]*llvmir.Global{},
	}

	for _, g := range ctx.Globals() {
		init, err := e.emitConstant(g.Init(ctx))
		if err != nil {
			return nil, errors.Wrapf(err, "global %s", g.Name(ctx))
		}
		e.globals[g.Name(ctx)] = e.module.NewGlobalDef(g.Name(ctx), init)
	}

	// Declare every function first so calls resolve regardless of order.
	for _, fn := range ctx.Funcs() {
		params := make([]*llvmir.Param, 0, len(fn.Params(ctx)))
		for i, p := range fn.Params(ctx) {
			params = append(params, llvmir.NewParam(paramName(i), e.emitTy(p.Ty(ctx))))
		}
		e.funcs[fn.Name(ctx)] = e.module.NewFunc(fn.Name(ctx), e.emitTy(fn.RetTy(ctx)), params...)
	}

	for _, fn := range ctx.Funcs() {
		if fn.Kind(ctx) != ir.FuncDefine {
			continue
		}
		if err := e.emitFuncBody(fn); err != nil {
			return nil, errors.Wrapf(err, "function %s", fn.Name(ctx))
		}
	}
	return e.module, nil
}

// Text renders the module as LLVM assembly.
func Text(ctx *ir.Context) (string, error) {
	m, err := Module(ctx)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

func paramName(i int) string {
	return "arg" + strconv.Itoa(i)
}

func (e *emitter) emitTy(t ir.Ty) lltypes.Type {
	switch t.Kind(e.ctx) {
	case ir.TyVoid:
		return lltypes.Void
	case ir.TyI1:
		return lltypes.I1
	case ir.TyI32:
		return lltypes.I32
	case ir.TyF32:
		return lltypes.Float
	case ir.TyPtr:
		return lltypes.I8Ptr
	case ir.TyArray:
		elem, n := t.Unwrap(e.ctx)
		return lltypes.NewArray(uint64(n), e.emitTy(elem))
	}
	panic("emit: unknown IR type")
}

func (e *emitter) emitConstant(c ir.ConstantValue) (llconst.Constant, error) {
	switch c.Kind {
	case ir.ConstInt:
		return llconst.NewInt(lltypes.I32, int64(c.I)), nil
	case ir.ConstFloat:
		return llconst.NewFloat(lltypes.Float, float64(c.F)), nil
	case ir.ConstBool:
		return llconst.NewBool(c.B), nil
	case ir.ConstUndef:
		return llconst.NewUndef(e.emitTy(c.Ty)), nil
	case ir.ConstZero:
		return llconst.NewZeroInitializer(e.emitTy(c.Ty)), nil
	case ir.ConstNull:
		return llconst.NewNull(lltypes.I8Ptr), nil
	case ir.ConstArray:
		arrTy, ok := e.emitTy(c.Ty).(*lltypes.ArrayType)
		if !ok {
			return nil, errors.Errorf("array constant with non-array type %s", c.Ty.Display(e.ctx))
		}
		elems := make([]llconst.Constant, len(c.Elems))
		for i, elem := range c.Elems {
			sub, err := e.emitConstant(elem)
			if err != nil {
				return nil, err
			}
			elems[i] = sub
		}
		return llconst.NewArray(arrTy, elems...), nil
	}
	return nil, errors.New("unknown constant kind")
}

func (e *emitter) emitFuncBody(fn ir.Func) error {
	lfn := e.funcs[fn.Name(e.ctx)]

	values := map[ir.Value]llvalue.Value{}
	for i, p := range fn.Params(e.ctx) {
		values[p] = lfn.Params[i]
	}

	blocks := map[ir.Block]*llvmir.Block{}
	for _, b := range fn.Blocks(e.ctx) {
		blocks[b] = lfn.NewBlock(b.Name(e.ctx))
	}

	for _, b := range fn.Blocks(e.ctx) {
		lb := blocks[b]
		for _, inst := range b.Insts(e.ctx) {
			if err := e.emitInst(inst, lb, values, blocks); err != nil {
				return errors.Wrapf(err, "block %s", b.Name(e.ctx))
			}
		}
	}
	return nil
}

// operand resolves an IR value to its llir counterpart, materializing
// constants and global references on demand.
func (e *emitter) operand(v ir.Value, values map[ir.Value]llvalue.Value) (llvalue.Value, error) {
	if lv, ok := values[v]; ok {
		return lv, nil
	}
	if v.IsGlobalRef(e.ctx) {
		g, ok := e.globals[v.GlobalName(e.ctx)]
		if !ok {
			return nil, errors.Errorf("reference to unknown global %s", v.GlobalName(e.ctx))
		}
		values[v] = g
		return g, nil
	}
	if info, ok := v.ConstantInfo(e.ctx); ok {
		c, err := e.emitConstant(info)
		if err != nil {
			return nil, err
		}
		values[v] = c
		return c, nil
	}
	return nil, errors.Errorf("operand %s has no emitted definition", v.Display(e.ctx))
}

func (e *emitter) emitInst(inst ir.Inst, lb *llvmir.Block, values map[ir.Value]llvalue.Value, blocks map[ir.Block]*llvmir.Block) error {
	ops := inst.Operands(e.ctx)
	arg := func(i int) (llvalue.Value, error) { return e.operand(ops[i], values) }

	record := func(lv llvalue.Value) {
		if res, ok := inst.Result(e.ctx); ok {
			values[res] = lv
		}
	}

	switch op := inst.Op(e.ctx); op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpSRem, ir.OpXor, ir.OpAnd, ir.OpOr,
		ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv, ir.OpFRem:
		x, err := arg(0)
		if err != nil {
			return err
		}
		y, err := arg(1)
		if err != nil {
			return err
		}
		record(e.emitBinary(op, lb, x, y))

	case ir.OpICmp:
		x, err := arg(0)
		if err != nil {
			return err
		}
		y, err := arg(1)
		if err != nil {
			return err
		}
		record(lb.NewICmp(ipred(inst.IntCond(e.ctx)), x, y))

	case ir.OpFCmp:
		x, err := arg(0)
		if err != nil {
			return err
		}
		y, err := arg(1)
		if err != nil {
			return err
		}
		record(lb.NewFCmp(fpred(inst.FloatCond(e.ctx)), x, y))

	case ir.OpZext:
		x, err := arg(0)
		if err != nil {
			return err
		}
		record(lb.NewZExt(x, e.emitTy(inst.InstTy(e.ctx))))

	case ir.OpSiToFp:
		x, err := arg(0)
		if err != nil {
			return err
		}
		record(lb.NewSIToFP(x, e.emitTy(inst.InstTy(e.ctx))))

	case ir.OpFpToSi:
		x, err := arg(0)
		if err != nil {
			return err
		}
		record(lb.NewFPToSI(x, e.emitTy(inst.InstTy(e.ctx))))

	case ir.OpAlloca:
		record(lb.NewAlloca(e.emitTy(inst.InstTy(e.ctx))))

	case ir.OpLoad:
		src, err := arg(0)
		if err != nil {
			return err
		}
		record(lb.NewLoad(e.emitTy(inst.InstTy(e.ctx)), src))

	case ir.OpStore:
		val, err := arg(0)
		if err != nil {
			return err
		}
		dst, err := arg(1)
		if err != nil {
			return err
		}
		lb.NewStore(val, dst)

	case ir.OpCall:
		callee, ok := e.funcs[inst.Callee(e.ctx)]
		if !ok {
			return errors.Errorf("call to unknown function %s", inst.Callee(e.ctx))
		}
		args := make([]llvalue.Value, len(ops))
		for i := range ops {
			a, err := arg(i)
			if err != nil {
				return err
			}
			args[i] = a
		}
		record(lb.NewCall(callee, args...))

	case ir.OpBr:
		lb.NewBr(blocks[inst.Successors(e.ctx)[0]])

	case ir.OpCondBr:
		cond, err := arg(0)
		if err != nil {
			return err
		}
		targets := inst.Successors(e.ctx)
		lb.NewCondBr(cond, blocks[targets[0]], blocks[targets[1]])

	case ir.OpRet:
		if len(ops) == 0 {
			lb.NewRet(nil)
			break
		}
		val, err := arg(0)
		if err != nil {
			return err
		}
		lb.NewRet(val)

	case ir.OpPhi:
		incs := inst.Incomings(e.ctx)
		lincs := make([]*llvmir.Incoming, len(incs))
		for i, inc := range incs {
			val, err := e.operand(inc.Value, values)
			if err != nil {
				return err
			}
			lincs[i] = llvmir.NewIncoming(val, blocks[inc.Pred])
		}
		record(lb.NewPhi(lincs...))

	default:
		return errors.Errorf("unsupported opcode %d", op)
	}
	return nil
}

func (e *emitter) emitBinary(op ir.Opcode, lb *llvmir.Block, x, y llvalue.Value) llvalue.Value {
	switch op {
	case ir.OpAdd:
		return lb.NewAdd(x, y)
	case ir.OpSub:
		return lb.NewSub(x, y)
	case ir.OpMul:
		return lb.NewMul(x, y)
	case ir.OpSDiv:
		return lb.NewSDiv(x, y)
	case ir.OpSRem:
		return lb.NewSRem(x, y)
	case ir.OpXor:
		return lb.NewXor(x, y)
	case ir.OpAnd:
		return lb.NewAnd(x, y)
	case ir.OpOr:
		return lb.NewOr(x, y)
	case ir.OpFAdd:
		return lb.NewFAdd(x, y)
	case ir.OpFSub:
		return lb.NewFSub(x, y)
	case ir.OpFMul:
		return lb.NewFMul(x, y)
	case ir.OpFDiv:
		return lb.NewFDiv(x, y)
	case ir.OpFRem:
		return lb.NewFRem(x, y)
	}
	panic("emit: not a binary opcode")
}

func ipred(c ir.IntCond) llenum.IPred {
	switch c {
	case ir.IntEq:
		return llenum.IPredEQ
	case ir.IntNe:
		return llenum.IPredNE
	case ir.IntSlt:
		return llenum.IPredSLT
	case ir.IntSle:
		return llenum.IPredSLE
	}
	panic("emit: unknown integer condition")
}

func fpred(c ir.FloatCond) llenum.FPred {
	switch c {
	case ir.FloatUEq:
		return llenum.FPredUEQ
	case ir.FloatUNe:
		return llenum.FPredUNE
	case ir.FloatULt:
		return llenum.FPredULT
	case ir.FloatULe:
		return llenum.FPredULE
	}
	panic("emit: unknown float condition")
}
