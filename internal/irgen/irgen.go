// Package irgen lowers the type-checked AST to SSA IR: structured control
// flow for if/while/break/continue, φ-merge short-circuit evaluation for
// && and ||, and the return-via-alloca convention with a single return
// block per function.
package irgen

import (
	"fmt"

	cerrors "sysyc/internal/errors"
	"sysyc/internal/ir"
	"sysyc/internal/parser"
	"sysyc/internal/sema"
	"sysyc/internal/types"
)

// Generator holds the lowering state for one module.
type Generator struct {
	ctx      *ir.Context
	reg      *types.Registry
	symtable *sema.SymbolTable

	currFunc  ir.Func
	currBlock ir.Block

	// Branch targets for continue and break.
	loopEntryStack []ir.Block
	loopExitStack  []ir.Block

	currRetSlot  ir.Value
	currRetBlock ir.Block
}

// Generate lowers a checked unit into a fresh IR context. ptrWidth is the
// target pointer width in bytes.
func Generate(cu *parser.CompUnit, reg *types.Registry, ptrWidth int) (ctx *ir.Context, err error) {
	g := &Generator{
		ctx:      ir.NewContext(ptrWidth),
		reg:      reg,
		symtable: sema.NewSymbolTable(),
	}

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*cerrors.CompileError); ok {
				ctx, err = nil, ce
				return
			}
			panic(r)
		}
	}()

	g.symtable.EnterScope()
	g.genRuntimeLib()
	for _, item := range cu.Items {
		g.genItem(item)
	}
	g.symtable.LeaveScope()
	return g.ctx, nil
}

func (g *Generator) fail(line int, format string, args ...any) {
	panic(cerrors.NewBuildError(fmt.Sprintf(format, args...), line))
}

// genRuntimeLib declares the externally linked runtime functions. Bodies
// are supplied at link time; only the signatures enter the module.
func (g *Generator) genRuntimeLib() {
	g.symtable.RegisterRuntimeLib(g.reg)

	void := ir.VoidTy(g.ctx)
	i32 := ir.I32Ty(g.ctx)
	f32 := ir.F32Ty(g.ctx)
	ptr := ir.PtrTy(g.ctx)

	decls := []struct {
		name   string
		params []ir.Ty
		ret    ir.Ty
	}{
		{"getint", nil, i32},
		{"getch", nil, i32},
		{"getfloat", nil, f32},
		{"putint", []ir.Ty{i32}, void},
		{"putch", []ir.Ty{i32}, void},
		{"putfloat", []ir.Ty{f32}, void},
		{"getarray", []ir.Ty{ptr}, i32},
		{"putarray", []ir.Ty{i32, ptr}, void},
		{"getfarray", []ir.Ty{ptr}, i32},
		{"putfarray", []ir.Ty{i32, ptr}, void},
		{"starttime", []ir.Ty{i32}, void},
		{"stoptime", []ir.Ty{i32}, void},
		{"memset", []ir.Ty{ptr, i32, i32}, void},
		{"memcpy", []ir.Ty{ptr, ptr, i32}, void},
	}
	for _, d := range decls {
		fn := ir.DeclareFunc(g.ctx, d.name, d.ret)
		for _, pty := range d.params {
			fn.AddParam(g.ctx, pty)
		}
	}
}

func (g *Generator) genTy(t *types.Type) ir.Ty {
	switch t.Kind() {
	case types.KindVoid:
		return ir.VoidTy(g.ctx)
	case types.KindBool:
		return ir.I1Ty(g.ctx)
	case types.KindInt:
		return ir.I32Ty(g.ctx)
	case types.KindFloat:
		return ir.F32Ty(g.ctx)
	case types.KindPointer:
		return ir.PtrTy(g.ctx)
	case types.KindArray:
		elem, n := t.UnwrapArray()
		return ir.ArrayTy(g.ctx, g.genTy(elem), n)
	}
	panic("irgen: function type has no IR counterpart")
}

// genGlobalComptime lowers a compile-time value to a module-level
// constant. Comptime integers are 64-bit; emission narrows to 32.
func (g *Generator) genGlobalComptime(v *parser.ComptimeVal) ir.ConstantValue {
	switch v.Kind {
	case parser.CvBool:
		return ir.ConstantI1(g.ctx, v.B)
	case parser.CvInt:
		return ir.ConstantI32(g.ctx, int32(v.I))
	case parser.CvFloat:
		return ir.ConstantF32(g.ctx, v.F)
	case parser.CvUndef:
		return ir.ConstantUndef(g.genTy(v.Ty))
	case parser.CvZero:
		return ir.ConstantZero(g.genTy(v.Ty))
	case parser.CvList:
		elems := make([]ir.ConstantValue, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = g.genGlobalComptime(e)
		}
		return ir.ConstantArray(g.genTy(v.GetType(g.reg)), elems)
	}
	panic("irgen: unknown comptime kind")
}

func (g *Generator) genLocalComptime(v *parser.ComptimeVal, line int) ir.Value {
	switch v.Kind {
	case parser.CvBool:
		return ir.ConstI1(g.ctx, v.B)
	case parser.CvInt:
		return ir.ConstI32(g.ctx, int32(v.I))
	case parser.CvFloat:
		return ir.ConstF32(g.ctx, v.F)
	case parser.CvUndef:
		return ir.Undef(g.ctx, g.genTy(v.Ty))
	}
	g.fail(line, "aggregate constant cannot be materialized as a local value")
	return ir.Value{}
}

func (g *Generator) genItem(item parser.Item) {
	switch it := item.(type) {
	case *parser.Decl:
		g.genGlobalDecl(it)
	case *parser.FuncDef:
		g.genFuncDef(it)
	}
}

// genGlobalDecl creates module globals. The checker has already folded
// every global initializer to a constant.
func (g *Generator) genGlobalDecl(d *parser.Decl) {
	for _, def := range d.Defs {
		cexp, ok := def.Init.(*parser.ConstExp)
		if !ok {
			g.fail(def.Line, "global '%s' requires a constant initializer", def.Ident)
		}
		comptime := cexp.Val

		prefix := "__GLOBAL_VAR_"
		if d.Const {
			prefix = "__GLOBAL_CONST_"
		}
		slot := ir.NewGlobal(g.ctx, prefix+def.Ident, g.genGlobalComptime(comptime))

		entry := &sema.SymbolEntry{
			Ty: cexp.Ty,
			Ir: &sema.IrSlot{IsGlobal: true, Global: slot},
		}
		if d.Const {
			entry.Comptime = comptime
		}
		g.symtable.Insert(def.Ident, entry)
	}
}

func (g *Generator) genFuncDef(fd *parser.FuncDef) {
	g.symtable.EnterScope()

	paramTys := make([]*types.Type, len(fd.Params))
	for i, param := range fd.Params {
		paramTys[i] = param.Ty
	}
	funcTy := g.reg.Func(paramTys, fd.RetTy)

	fn := ir.NewFunc(g.ctx, fd.Ident, g.genTy(fd.RetTy))
	g.symtable.InsertUpper(fd.Ident, &sema.SymbolEntry{Ty: funcTy}, 1)

	entry := ir.NewBlock(g.ctx)
	fn.PushBack(g.ctx, entry)

	g.currFunc = fn
	g.currBlock = entry

	// Parameter values, then slots for the pass-by-value scalars. Array
	// and pointer parameters keep the parameter value directly.
	for _, param := range fd.Params {
		val := fn.AddParam(g.ctx, g.genTy(param.Ty))
		g.symtable.Insert(param.Ident, &sema.SymbolEntry{
			Ty: param.Ty,
			Ir: &sema.IrSlot{Value: val},
		})
	}
	for _, param := range fd.Params {
		if !param.Ty.IsScalar() {
			continue
		}
		irTy := g.genTy(param.Ty)
		slotInst := ir.NewAlloca(g.ctx, irTy)
		entry.PushFront(g.ctx, slotInst)
		slot, _ := slotInst.Result(g.ctx)

		paramVal := g.symtable.Lookup(param.Ident).Ir.Value
		entry.PushBack(g.ctx, ir.NewStore(g.ctx, paramVal, slot))

		g.symtable.Insert(param.Ident, &sema.SymbolEntry{
			Ty: param.Ty,
			Ir: &sema.IrSlot{Value: slot},
		})
	}

	// Return block, and a return slot for non-void functions.
	retBlock := ir.NewBlock(g.ctx)
	g.currRetBlock = retBlock
	if !fd.RetTy.IsVoid() {
		retSlot := ir.NewAlloca(g.ctx, g.genTy(fd.RetTy))
		entry.PushFront(g.ctx, retSlot)
		g.currRetSlot, _ = retSlot.Result(g.ctx)
	}

	g.genBlock(fd.Body)

	// Close the fall-through path.
	if !g.blockTerminated(g.currBlock) {
		g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, retBlock))
	}

	fn.PushBack(g.ctx, retBlock)
	if fd.RetTy.IsVoid() {
		retBlock.PushBack(g.ctx, ir.NewRet(g.ctx, ir.Value{}))
	} else {
		load := ir.NewLoad(g.ctx, g.currRetSlot, g.genTy(fd.RetTy))
		retBlock.PushBack(g.ctx, load)
		val, _ := load.Result(g.ctx)
		retBlock.PushBack(g.ctx, ir.NewRet(g.ctx, val))
	}

	g.currFunc = ir.Func{}
	g.currBlock = ir.Block{}
	g.currRetSlot = ir.Value{}
	g.currRetBlock = ir.Block{}

	g.symtable.LeaveScope()
}

func (g *Generator) blockTerminated(b ir.Block) bool {
	tail := b.Tail(g.ctx)
	return !tail.IsNil() && tail.IsTerminator(g.ctx)
}

func (g *Generator) genBlock(b *parser.Block) {
	g.symtable.EnterScope()
	for _, item := range b.Items {
		switch it := item.(type) {
		case *parser.Decl:
			g.genLocalDecl(it)
		case parser.Stmt:
			g.genStmt(it)
		}
	}
	g.symtable.LeaveScope()
}

// genLocalDecl allocates a stack slot at the head of the entry block and
// stores the initializer in the current block. Zero-valued aggregate
// initializers lower to a memset of the slot; undefined initializers
// leave the slot untouched.
func (g *Generator) genLocalDecl(d *parser.Decl) {
	entryBlock := g.currFunc.Entry(g.ctx)
	for _, def := range d.Defs {
		initTy := def.Init.Type()
		irTy := g.genTy(initTy)

		slotInst := ir.NewAlloca(g.ctx, irTy)
		entryBlock.PushFront(g.ctx, slotInst)
		slot, _ := slotInst.Result(g.ctx)

		entry := &sema.SymbolEntry{
			Ty: initTy,
			Ir: &sema.IrSlot{Value: slot},
		}
		if d.Const {
			cexp, ok := def.Init.(*parser.ConstExp)
			if !ok {
				g.fail(def.Line, "const '%s' requires a constant initializer", def.Ident)
			}
			entry.Comptime = cexp.Val
		}
		g.symtable.Insert(def.Ident, entry)

		if cexp, ok := def.Init.(*parser.ConstExp); ok {
			switch cexp.Val.Kind {
			case parser.CvUndef:
				// Nothing to initialize.
				continue
			case parser.CvZero:
				if initTy.IsArray() {
					g.emitMemsetZero(slot, initTy)
					continue
				}
			case parser.CvList:
				g.fail(def.Line, "aggregate initializer for local '%s' is not supported", def.Ident)
			}
		}

		val, ok := g.genLocalExp(def.Init)
		if !ok {
			g.fail(def.Line, "initializer of '%s' produces no value", def.Ident)
		}
		g.currBlock.PushBack(g.ctx, ir.NewStore(g.ctx, val, slot))
	}
}

func (g *Generator) emitMemsetZero(slot ir.Value, ty *types.Type) {
	args := []ir.Value{
		slot,
		ir.ConstI32(g.ctx, 0),
		ir.ConstI32(g.ctx, int32(ty.Bytewidth())),
	}
	call := ir.NewCall(g.ctx, "memset", args, ir.VoidTy(g.ctx))
	g.currBlock.PushBack(g.ctx, call)
}

// lvalSlot resolves a name to the value standing for its storage: a
// global reference, an alloca result, or a parameter value.
func (g *Generator) lvalSlot(ident string, line int) (ir.Value, *sema.SymbolEntry) {
	entry := g.symtable.Lookup(ident)
	if entry == nil || entry.Ir == nil {
		g.fail(line, "no storage for identifier '%s'", ident)
	}
	if entry.Ir.IsGlobal {
		global := entry.Ir.Global
		return ir.GlobalRef(g.ctx, global.Name(g.ctx), global.Ty(g.ctx)), entry
	}
	return entry.Ir.Value, entry
}

func (g *Generator) genStmt(s parser.Stmt) {
	switch st := s.(type) {
	case *parser.AssignStmt:
		if len(st.LVal.Indices) > 0 {
			g.fail(st.Line, "assignment through a runtime array index is not supported")
		}
		slot, _ := g.lvalSlot(st.LVal.Ident, st.Line)
		val, ok := g.genLocalExp(st.Exp)
		if !ok {
			g.fail(st.Line, "assigned expression produces no value")
		}
		g.currBlock.PushBack(g.ctx, ir.NewStore(g.ctx, val, slot))

	case *parser.ExpStmt:
		if st.Exp != nil {
			g.genLocalExp(st.Exp)
		}

	case *parser.BlockStmt:
		g.genBlock(st.Block)

	case *parser.IfStmt:
		g.genIf(st)

	case *parser.WhileStmt:
		g.genWhile(st)

	case *parser.BreakStmt:
		if len(g.loopExitStack) == 0 {
			g.fail(st.Line, "break outside of loop")
		}
		exit := g.loopExitStack[len(g.loopExitStack)-1]
		g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, exit))

	case *parser.ContinueStmt:
		if len(g.loopEntryStack) == 0 {
			g.fail(st.Line, "continue outside of loop")
		}
		header := g.loopEntryStack[len(g.loopEntryStack)-1]
		g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, header))

	case *parser.ReturnStmt:
		if st.Exp != nil {
			val, ok := g.genLocalExp(st.Exp)
			if !ok {
				g.fail(st.Line, "return expression produces no value")
			}
			if g.currRetSlot.IsNil() {
				g.fail(st.Line, "return with a value in a function without a return slot")
			}
			g.currBlock.PushBack(g.ctx, ir.NewStore(g.ctx, val, g.currRetSlot))
		}
		g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, g.currRetBlock))
	}
}

func (g *Generator) genIf(st *parser.IfStmt) {
	cond, ok := g.genLocalExp(st.Cond)
	if !ok {
		g.fail(st.Line, "if condition produces no value")
	}
	condBlock := g.currBlock

	thenBlock := ir.NewBlock(g.ctx)
	var elseBlock ir.Block
	mergeBlock := ir.NewBlock(g.ctx)

	g.currFunc.PushBack(g.ctx, thenBlock)
	if st.Else != nil {
		elseBlock = ir.NewBlock(g.ctx)
		g.currFunc.PushBack(g.ctx, elseBlock)
	}
	g.currFunc.PushBack(g.ctx, mergeBlock)

	falseTarget := mergeBlock
	if st.Else != nil {
		falseTarget = elseBlock
	}
	condBlock.PushBack(g.ctx, ir.NewCondBr(g.ctx, cond, thenBlock, falseTarget))

	g.currBlock = thenBlock
	g.genStmt(st.Then)
	thenTerminated := g.blockTerminated(g.currBlock)
	if !thenTerminated {
		g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, mergeBlock))
	}

	elseTerminated := false
	if st.Else != nil {
		g.currBlock = elseBlock
		g.genStmt(st.Else)
		elseTerminated = g.blockTerminated(g.currBlock)
		if !elseTerminated {
			g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, mergeBlock))
		}
	}

	// When both branches already left the function, the merge block has
	// no live predecessor; it branches to the return block and DCE
	// removes it.
	if thenTerminated && elseTerminated {
		mergeBlock.PushBack(g.ctx, ir.NewBr(g.ctx, g.currRetBlock))
	}
	g.currBlock = mergeBlock
}

func (g *Generator) genWhile(st *parser.WhileStmt) {
	header := ir.NewBlock(g.ctx)
	body := ir.NewBlock(g.ctx)
	exit := ir.NewBlock(g.ctx)

	g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, header))
	g.currFunc.PushBack(g.ctx, header)

	g.currBlock = header
	cond, ok := g.genLocalExp(st.Cond)
	if !ok {
		g.fail(st.Line, "while condition produces no value")
	}
	g.currBlock.PushBack(g.ctx, ir.NewCondBr(g.ctx, cond, body, exit))

	g.currFunc.PushBack(g.ctx, body)
	g.currBlock = body

	g.loopEntryStack = append(g.loopEntryStack, header)
	g.loopExitStack = append(g.loopExitStack, exit)

	g.genStmt(st.Body)

	if !g.blockTerminated(g.currBlock) {
		g.currBlock.PushBack(g.ctx, ir.NewBr(g.ctx, header))
	}

	g.loopEntryStack = g.loopEntryStack[:len(g.loopEntryStack)-1]
	g.loopExitStack = g.loopExitStack[:len(g.loopExitStack)-1]

	g.currFunc.PushBack(g.ctx, exit)
	g.currBlock = exit
}
