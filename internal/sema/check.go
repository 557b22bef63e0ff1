package sema

import (
	"fmt"

	cerrors "sysyc/internal/errors"
	"sysyc/internal/parser"
	"sysyc/internal/types"
)

// Checker runs the single-pass semantic analysis: it resolves names,
// infers and coerces types, folds constants and records symbols. The AST
// is rewritten in place; all errors are fatal and stop the pass.
type Checker struct {
	reg      *types.Registry
	symtable *SymbolTable
}

func NewChecker(reg *types.Registry) *Checker {
	return &Checker{reg: reg, symtable: NewSymbolTable()}
}

// Check type-checks a whole unit. It returns the first diagnostic
// encountered, or nil.
func (c *Checker) Check(cu *parser.CompUnit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*cerrors.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	c.symtable.EnterScope()
	c.symtable.RegisterRuntimeLib(c.reg)
	for _, item := range cu.Items {
		c.checkItem(item)
	}
	c.symtable.LeaveScope()
	return nil
}

func (c *Checker) fail(line int, format string, args ...any) {
	panic(cerrors.NewCheckError(fmt.Sprintf(format, args...), line))
}

func (c *Checker) checkItem(item parser.Item) {
	switch it := item.(type) {
	case *parser.Decl:
		c.checkDecl(it)
	case *parser.FuncDef:
		c.checkFuncDef(it)
	}
}

func (c *Checker) checkFuncDef(fd *parser.FuncDef) {
	// Parameters live in their own scope; the function name goes into the
	// enclosing scope.
	c.symtable.EnterScope()

	paramTys := make([]*types.Type, 0, len(fd.Params))
	for _, param := range fd.Params {
		ty := param.Ty
		if param.IsArray {
			for i := len(param.Dims) - 1; i >= 0; i-- {
				dim, ok := c.tryFold(param.Dims[i])
				if !ok {
					c.fail(param.Line, "array size must be a constant expression")
				}
				ty = c.reg.Array(ty, int(dim.UnwrapInt()))
			}
			ty = c.reg.Pointer(ty)
		}
		// The resolved (decayed) type replaces the parsed base type so
		// later stages see it directly.
		param.Ty = ty
		paramTys = append(paramTys, ty)
		c.symtable.Insert(param.Ident, &SymbolEntry{Ty: ty})
	}

	funcTy := c.reg.Func(paramTys, fd.RetTy)
	c.symtable.InsertUpper(fd.Ident, &SymbolEntry{Ty: funcTy}, 1)
	c.symtable.CurrRetTy = fd.RetTy

	c.checkBlock(fd.Body)

	c.symtable.CurrRetTy = nil
	c.symtable.LeaveScope()
}

// checkDecl resolves array shapes, checks and folds initializers and
// records the declared symbols. Used for both global and local
// declarations.
func (c *Checker) checkDecl(d *parser.Decl) {
	for _, def := range d.Defs {
		shape := make([]int64, len(def.Dims))
		for i, dimExp := range def.Dims {
			dim, ok := c.tryFold(dimExp)
			if !ok {
				c.fail(def.Line, "array size must be a constant expression")
			}
			shape[i] = dim.UnwrapInt()
		}

		ty := d.Ty
		for i := len(shape) - 1; i >= 0; i-- {
			ty = c.reg.Array(ty, int(shape[i]))
		}

		// Rewrite the dimension expressions to their folded constants.
		for i, n := range shape {
			ce := parser.NewConstExp(c.reg, parser.IntVal(n))
			ce.Ty = c.reg.Int()
			def.Dims[i] = ce
		}

		if d.Const {
			if def.Init == nil {
				c.fail(def.Line, "const '%s' lacks an initializer", def.Ident)
			}
			init := c.checkExp(def.Init, ty)
			folded, ok := c.tryFold(init)
			if !ok {
				c.fail(def.Line, "const '%s' requires a constant initializer", def.Ident)
			}
			cexp := parser.NewConstExp(c.reg, folded)
			cexp.Line = def.Line
			def.Init = cexp
			c.symtable.Insert(def.Ident, &SymbolEntry{Ty: ty, Comptime: folded})
			continue
		}

		if def.Init != nil {
			init := c.checkExp(def.Init, ty)
			if folded, ok := c.tryFold(init); ok {
				cexp := parser.NewConstExp(c.reg, folded)
				cexp.Line = def.Line
				init = cexp
			}
			def.Init = init
		} else {
			cexp := parser.NewConstExp(c.reg, parser.UndefVal(ty))
			cexp.Line = def.Line
			def.Init = cexp
		}
		c.symtable.Insert(def.Ident, &SymbolEntry{Ty: ty})
	}
}

func (c *Checker) checkBlock(b *parser.Block) {
	c.symtable.EnterScope()
	for i, item := range b.Items {
		switch it := item.(type) {
		case *parser.Decl:
			c.checkDecl(it)
		case parser.Stmt:
			b.Items[i] = c.checkStmt(it)
		}
	}
	c.symtable.LeaveScope()
}

func (c *Checker) checkStmt(s parser.Stmt) parser.Stmt {
	switch st := s.(type) {
	case *parser.AssignStmt:
		entry := c.symtable.Lookup(st.LVal.Ident)
		if entry == nil {
			c.fail(st.Line, "undefined identifier '%s'", st.LVal.Ident)
		}
		ty := entry.Ty
		for i, idx := range st.LVal.Indices {
			st.LVal.Indices[i] = c.checkExp(idx, c.reg.Int())
			switch ty.Kind() {
			case types.KindArray:
				elem, _ := ty.UnwrapArray()
				ty = elem
			case types.KindPointer:
				ty = ty.UnwrapPointer()
			default:
				c.fail(st.Line, "indexing a non-aggregate type %s", ty)
			}
		}
		st.LVal.Ty = ty
		st.Exp = c.checkExp(st.Exp, ty)
		return st

	case *parser.ExpStmt:
		if st.Exp != nil {
			st.Exp = c.checkExp(st.Exp, nil)
		}
		return st

	case *parser.BlockStmt:
		c.checkBlock(st.Block)
		return st

	case *parser.IfStmt:
		st.Cond = c.checkExp(st.Cond, c.reg.Bool())
		st.Then = c.checkStmt(st.Then)
		if st.Else != nil {
			st.Else = c.checkStmt(st.Else)
		}
		return st

	case *parser.WhileStmt:
		st.Cond = c.checkExp(st.Cond, c.reg.Bool())
		st.Body = c.checkStmt(st.Body)
		return st

	case *parser.BreakStmt, *parser.ContinueStmt:
		return s

	case *parser.ReturnStmt:
		retTy := c.symtable.CurrRetTy
		if st.Exp == nil {
			return st
		}
		if retTy == nil || retTy.IsVoid() {
			c.fail(st.Line, "value returned from a void function")
		}
		exp := c.checkExp(st.Exp, retTy)
		// The expression is coerced to the declared return type for both
		// int- and float-returning functions.
		st.Exp = parser.NewCoercion(exp, retTy)
		return st
	}
	return s
}

// checkExp type-checks an expression bottom-up. When expect is non-nil the
// result is coerced to that type; permitted coercions are all scalar
// combinations among bool, int and float, plus array-to-pointer decay.
// After synthesis the folder runs; a foldable node is replaced by its
// constant.
func (c *Checker) checkExp(e parser.Exp, expect *types.Type) parser.Exp {
	if e.Type() != nil && expect == nil {
		return e
	}

	var exp parser.Exp
	switch ex := e.(type) {
	case *parser.ConstExp:
		exp = ex

	case *parser.BinaryExp:
		exp = c.checkBinary(ex)

	case *parser.UnaryExp:
		exp = c.checkUnary(ex)

	case *parser.CallExp:
		entry := c.symtable.Lookup(ex.Ident)
		if entry == nil {
			c.fail(ex.Line, "undefined identifier '%s'", ex.Ident)
		}
		if !entry.Ty.IsFunc() {
			c.fail(ex.Line, "'%s' is not a function", ex.Ident)
		}
		paramTys, retTy := entry.Ty.UnwrapFunc()
		if len(ex.Args) != len(paramTys) {
			c.fail(ex.Line, "'%s' expects %d arguments, got %d", ex.Ident, len(paramTys), len(ex.Args))
		}
		for i, arg := range ex.Args {
			ex.Args[i] = c.checkExp(arg, paramTys[i])
		}
		ex.Ty = retTy
		exp = ex

	case *parser.LValExp:
		entry := c.symtable.Lookup(ex.Ident)
		if entry == nil {
			c.fail(ex.Line, "undefined identifier '%s'", ex.Ident)
		}
		ty := entry.Ty
		for i, idx := range ex.Indices {
			ex.Indices[i] = c.checkExp(idx, c.reg.Int())
			switch ty.Kind() {
			case types.KindArray:
				elem, _ := ty.UnwrapArray()
				ty = elem
			case types.KindPointer:
				ty = ty.UnwrapPointer()
			default:
				c.fail(ex.Line, "indexing a non-aggregate type %s", ty)
			}
		}
		ex.Ty = ty
		exp = ex

	case *parser.InitListExp:
		if expect == nil || !expect.IsArray() {
			c.fail(ex.Pos(), "initializer list needs an array context")
		}
		checked, _ := c.checkInitList(ex.Elems, expect)
		return checked

	case *parser.CoercionExp:
		panic("checker: coercion node before checking")
	}

	// Coerce to the expected type if one was given.
	if expect != nil {
		switch {
		case expect.IsScalar():
			got := exp.Type()
			if !got.IsScalar() {
				c.fail(exp.Pos(), "cannot coerce %s to %s", got, expect)
			}
			exp = parser.NewCoercion(exp, expect)
		case expect.IsPointer():
			got := exp.Type()
			if got != expect {
				if !got.IsArray() {
					c.fail(exp.Pos(), "cannot coerce %s to %s", got, expect)
				}
				elem, _ := got.UnwrapArray()
				if elem != expect.UnwrapPointer() {
					c.fail(exp.Pos(), "cannot coerce %s to %s", got, expect)
				}
				exp = parser.NewCoercion(exp, expect)
			}
		default:
			if expect != exp.Type() {
				c.fail(exp.Pos(), "cannot coerce %s to %s", exp.Type(), expect)
			}
		}
	}

	if folded, ok := c.tryFold(exp); ok {
		cexp := parser.NewConstExp(c.reg, folded)
		cexp.Line = exp.Pos()
		return cexp
	}
	return exp
}

func (c *Checker) checkBinary(ex *parser.BinaryExp) parser.Exp {
	lhs := c.checkExp(ex.Lhs, nil)
	rhs := c.checkExp(ex.Rhs, nil)

	if ex.Op == parser.OpLAnd || ex.Op == parser.OpLOr {
		// Logical operands become booleans so the short-circuit lowering
		// can branch on them directly.
		ex.Lhs = c.coerceScalar(lhs, c.reg.Bool())
		ex.Rhs = c.coerceScalar(rhs, c.reg.Bool())
		ex.Ty = c.reg.Bool()
		return ex
	}

	lt, rt := lhs.Type(), rhs.Type()
	if lt != rt {
		// Promote the lower side along bool < int < float.
		if !lt.IsScalar() || !rt.IsScalar() {
			c.fail(ex.Line, "invalid operands to '%s': %s and %s", ex.Op, lt, rt)
		}
		if scalarRank(lt) < scalarRank(rt) {
			lhs = parser.NewCoercion(lhs, rt)
		} else {
			rhs = parser.NewCoercion(rhs, lt)
		}
	}
	ex.Lhs, ex.Rhs = lhs, rhs

	if ex.Op.IsComparison() {
		ex.Ty = c.reg.Bool()
	} else {
		ex.Ty = lhs.Type()
	}
	return ex
}

func (c *Checker) checkUnary(ex *parser.UnaryExp) parser.Exp {
	operand := c.checkExp(ex.Operand, nil)
	ty := operand.Type()

	switch ex.Op {
	case parser.OpNeg:
		if ty.IsBool() {
			operand = parser.NewCoercion(operand, c.reg.Int())
			ty = c.reg.Int()
		}
		if !ty.IsInt() && !ty.IsFloat() {
			c.fail(ex.Line, "invalid operand to unary '-': %s", ty)
		}
		ex.Operand = operand
		ex.Ty = ty
		return ex

	case parser.OpNot:
		switch {
		case ty.IsBool():
			// nothing to do
		case ty.IsInt():
			zero := parser.NewConstExp(c.reg, parser.IntVal(0))
			operand = &parser.BinaryExp{Op: parser.OpNe, Lhs: operand, Rhs: zero, Ty: c.reg.Bool(), Line: ex.Line}
		case ty.IsFloat():
			zero := parser.NewConstExp(c.reg, parser.FloatVal(0))
			operand = &parser.BinaryExp{Op: parser.OpNe, Lhs: operand, Rhs: zero, Ty: c.reg.Bool(), Line: ex.Line}
		default:
			c.fail(ex.Line, "invalid operand to unary '!': %s", ty)
		}
		ex.Operand = operand
		ex.Ty = c.reg.Bool()
		return ex

	case parser.OpPos:
		if !ty.IsInt() && !ty.IsFloat() {
			c.fail(ex.Line, "invalid operand to unary '+': %s", ty)
		}
		ex.Operand = operand
		ex.Ty = ty
		return ex
	}
	return ex
}

func (c *Checker) coerceScalar(e parser.Exp, to *types.Type) parser.Exp {
	if !e.Type().IsScalar() {
		c.fail(e.Pos(), "cannot coerce %s to %s", e.Type(), to)
	}
	return parser.NewCoercion(e, to)
}

// checkInitList consumes elements greedily against the expected array
// type. It returns the checked expression for this nesting level and the
// number of input elements consumed.
func (c *Checker) checkInitList(list []parser.Exp, ty *types.Type) (parser.Exp, int) {
	elemTy, length := ty.UnwrapArray()

	vals := make([]parser.Exp, 0, length)
	consumed := 0
	for i := 0; i < length; i++ {
		if consumed >= len(list) {
			// The input ran out; remaining slots become zero.
			vals = append(vals, parser.NewConstExp(c.reg, parser.ZeroVal(elemTy)))
			continue
		}
		elem := list[consumed]
		if sub, ok := elem.(*parser.InitListExp); ok {
			if !elemTy.IsArray() {
				c.fail(sub.Pos(), "nested initializer for scalar element")
			}
			checked, _ := c.checkInitList(sub.Elems, elemTy)
			vals = append(vals, checked)
			consumed++
			continue
		}
		if elemTy.IsArray() {
			// A scalar against an array element opens an implicit nested
			// aggregate, consuming successive scalars until it is filled.
			checked, n := c.checkInitList(list[consumed:], elemTy)
			vals = append(vals, checked)
			consumed += n
			continue
		}
		vals = append(vals, c.checkExp(elem, elemTy))
		consumed++
	}

	// A level that is entirely zero collapses to a single zero value.
	allZero := true
	for _, val := range vals {
		cexp, ok := val.(*parser.ConstExp)
		if !ok || !cexp.Val.IsZero() {
			allZero = false
			break
		}
	}
	if allZero {
		return parser.NewConstExp(c.reg, parser.ZeroVal(ty)), consumed
	}
	return &parser.InitListExp{Elems: vals, Ty: ty}, consumed
}

// scalarRank orders the scalar kinds along the promotion lattice.
func scalarRank(t *types.Type) int {
	switch t.Kind() {
	case types.KindBool:
		return 0
	case types.KindInt:
		return 1
	case types.KindFloat:
		return 2
	}
	return -1
}
