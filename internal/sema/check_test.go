package sema

import (
	"strings"
	"testing"

	"sysyc/internal/lexer"
	"sysyc/internal/parser"
	"sysyc/internal/types"
)

func checkSource(t *testing.T, src string) (*parser.CompUnit, *types.Registry) {
	t.Helper()
	reg := types.NewRegistry()
	tokens := lexer.NewScanner(src).ScanTokens()
	cu, err := parser.NewParser(tokens, reg).ParseCompUnit()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := NewChecker(reg).Check(cu); err != nil {
		t.Fatalf("check: %v", err)
	}
	return cu, reg
}

func checkError(t *testing.T, src string) error {
	t.Helper()
	reg := types.NewRegistry()
	tokens := lexer.NewScanner(src).ScanTokens()
	cu, err := parser.NewParser(tokens, reg).ParseCompUnit()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	err = NewChecker(reg).Check(cu)
	if err == nil {
		t.Fatalf("check of %q succeeded, want error", src)
	}
	return err
}

func TestConstFolding(t *testing.T) {
	cu, _ := checkSource(t, "const int N = 3 * 2 + 1; int main() { return N; }")
	decl := cu.Items[0].(*parser.Decl)
	c, ok := decl.Defs[0].Init.(*parser.ConstExp)
	if !ok {
		t.Fatalf("const init did not fold: %s", parser.DumpExp(decl.Defs[0].Init))
	}
	if c.Val.Kind != parser.CvInt || c.Val.I != 7 {
		t.Errorf("N = %s, want 7", c.Val)
	}

	// The use of N in main folds to the same constant.
	fd := cu.Items[1].(*parser.FuncDef)
	ret := fd.Body.Items[0].(*parser.ReturnStmt)
	rc, ok := ret.Exp.(*parser.ConstExp)
	if !ok || rc.Val.UnwrapInt() != 7 {
		t.Errorf("return exp = %s, want folded 7", parser.DumpExp(ret.Exp))
	}
}

func TestArrayBoundFolding(t *testing.T) {
	cu, reg := checkSource(t, "const int N = 2; int a[N * 3];")
	decl := cu.Items[1].(*parser.Decl)
	dim, ok := decl.Defs[0].Dims[0].(*parser.ConstExp)
	if !ok || dim.Val.UnwrapInt() != 6 {
		t.Fatalf("dim did not fold to 6: %s", parser.DumpExp(decl.Defs[0].Dims[0]))
	}
	// Missing initializer binds undef of the resolved array type.
	init := decl.Defs[0].Init.(*parser.ConstExp)
	if init.Val.Kind != parser.CvUndef {
		t.Fatalf("init = %s, want undef", init.Val)
	}
	if init.Val.Ty != reg.Array(reg.Int(), 6) {
		t.Errorf("undef type = %s, want int[6]", init.Val.Ty)
	}
}

func TestNonConstArrayBound(t *testing.T) {
	err := checkError(t, "int main() { int n = 3; int a[n]; return 0; }")
	if !strings.Contains(err.Error(), "constant") {
		t.Errorf("error = %v, want constant-bound diagnostic", err)
	}
}

func TestEveryExpressionTyped(t *testing.T) {
	cu, _ := checkSource(t, "int f(int x) { return x + 1; }")
	fd := cu.Items[0].(*parser.FuncDef)
	ret := fd.Body.Items[0].(*parser.ReturnStmt)
	var walk func(e parser.Exp)
	walk = func(e parser.Exp) {
		if e.Type() == nil {
			t.Errorf("untyped expression %s", parser.DumpExp(e))
		}
		switch ex := e.(type) {
		case *parser.BinaryExp:
			if ex.Lhs.Type() != ex.Rhs.Type() {
				t.Errorf("binary operands differ: %s vs %s", ex.Lhs.Type(), ex.Rhs.Type())
			}
			walk(ex.Lhs)
			walk(ex.Rhs)
		case *parser.UnaryExp:
			walk(ex.Operand)
		case *parser.CoercionExp:
			walk(ex.Inner)
		}
	}
	walk(ret.Exp)
}

func TestFloatCoercions(t *testing.T) {
	cu, reg := checkSource(t, "int main() { float f = 1; int i = f + 2; return i; }")
	fd := cu.Items[0].(*parser.FuncDef)

	// `float f = 1` folds through the inserted int->float coercion.
	fDecl := fd.Body.Items[0].(*parser.Decl)
	fInit, ok := fDecl.Defs[0].Init.(*parser.ConstExp)
	if !ok || fInit.Val.Kind != parser.CvFloat || fInit.Val.F != 1 {
		t.Fatalf("f init = %s, want float 1", parser.DumpExp(fDecl.Defs[0].Init))
	}

	// `f + 2` is a float add with the 2 coerced; the assignment context
	// adds a float->int coercion on top.
	iDecl := fd.Body.Items[1].(*parser.Decl)
	co, ok := iDecl.Defs[0].Init.(*parser.CoercionExp)
	if !ok || co.Ty != reg.Int() {
		t.Fatalf("i init = %s, want outer coercion to int", parser.DumpExp(iDecl.Defs[0].Init))
	}
	add, ok := co.Inner.(*parser.BinaryExp)
	if !ok || add.Ty != reg.Float() {
		t.Fatalf("inner = %s, want float add", parser.DumpExp(co.Inner))
	}
	if _, ok := add.Rhs.(*parser.CoercionExp); !ok {
		t.Errorf("rhs = %s, want inserted int->float coercion", parser.DumpExp(add.Rhs))
	}
	if add.Rhs.Type() != reg.Float() {
		t.Errorf("rhs type = %s, want float", add.Rhs.Type())
	}
}

func TestShortCircuitFolding(t *testing.T) {
	cu, _ := checkSource(t, "int main() { int a = 1 && (2 || 0); return a; }")
	fd := cu.Items[0].(*parser.FuncDef)
	decl := fd.Body.Items[0].(*parser.Decl)
	c, ok := decl.Defs[0].Init.(*parser.ConstExp)
	if !ok {
		t.Fatalf("init did not fold: %s", parser.DumpExp(decl.Defs[0].Init))
	}
	if c.Val.Kind != parser.CvInt || c.Val.I != 1 {
		t.Errorf("a = %s, want int 1", c.Val)
	}
}

func TestBangRewrite(t *testing.T) {
	cu, reg := checkSource(t, "int main() { int x = getint(); if (!x) return 1; return 0; }")
	fd := cu.Items[0].(*parser.FuncDef)
	ifStmt := fd.Body.Items[1].(*parser.IfStmt)
	// The condition is !(x != 0), typed bool.
	not, ok := ifStmt.Cond.(*parser.UnaryExp)
	if !ok || not.Op != parser.OpNot {
		t.Fatalf("cond = %s", parser.DumpExp(ifStmt.Cond))
	}
	ne, ok := not.Operand.(*parser.BinaryExp)
	if !ok || ne.Op != parser.OpNe {
		t.Fatalf("operand = %s, want x != 0", parser.DumpExp(not.Operand))
	}
	if not.Ty != reg.Bool() {
		t.Errorf("! type = %s, want bool", not.Ty)
	}
}

func TestCallChecking(t *testing.T) {
	checkSource(t, "int f(int x) { return x; } int main() { return f(3); }")

	err := checkError(t, "int f(int x) { return x; } int main() { return f(1, 2); }")
	if !strings.Contains(err.Error(), "argument") {
		t.Errorf("arity error = %v", err)
	}

	err = checkError(t, "int main() { return g(); }")
	if !strings.Contains(err.Error(), "undefined") {
		t.Errorf("undefined error = %v", err)
	}
}

func TestRuntimeLibKnown(t *testing.T) {
	checkSource(t, `
int main() {
	int x = getint();
	putint(x);
	putfloat(getfloat());
	starttime(1);
	stoptime(1);
	return 0;
}`)
}

func TestArrayDecayInCall(t *testing.T) {
	cu, reg := checkSource(t, "int a[10]; int main() { return getarray(a); }")
	fd := cu.Items[1].(*parser.FuncDef)
	ret := fd.Body.Items[0].(*parser.ReturnStmt)
	call := ret.Exp.(*parser.CallExp)
	co, ok := call.Args[0].(*parser.CoercionExp)
	if !ok || co.Ty != reg.Pointer(reg.Int()) {
		t.Fatalf("arg = %s, want decay to int*", parser.DumpExp(call.Args[0]))
	}
}

func TestUndefinedIdent(t *testing.T) {
	err := checkError(t, "int main() { return x; }")
	if !strings.Contains(err.Error(), "undefined") {
		t.Errorf("error = %v", err)
	}
}

func TestIndexingScalar(t *testing.T) {
	err := checkError(t, "int main() { int x = 0; return x[1]; }")
	if !strings.Contains(err.Error(), "non-aggregate") {
		t.Errorf("error = %v", err)
	}
}

func TestConstNeedsConstInit(t *testing.T) {
	err := checkError(t, "int main() { const int c = getint(); return c; }")
	if !strings.Contains(err.Error(), "constant") {
		t.Errorf("error = %v", err)
	}
}

func TestComptimeDivisionByZero(t *testing.T) {
	err := checkError(t, "const int c = 1 / 0;")
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("error = %v", err)
	}
}

func TestVoidReturnWithValue(t *testing.T) {
	err := checkError(t, "void f() { return 1; }")
	if !strings.Contains(err.Error(), "void") {
		t.Errorf("error = %v", err)
	}
}

func TestReturnCoercion(t *testing.T) {
	cu, reg := checkSource(t, "float f() { return 1; } int g() { return 2.5; }")
	fRet := cu.Items[0].(*parser.FuncDef).Body.Items[0].(*parser.ReturnStmt)
	if fRet.Exp.Type() != reg.Float() {
		t.Errorf("float return exp type = %s", fRet.Exp.Type())
	}
	gRet := cu.Items[1].(*parser.FuncDef).Body.Items[0].(*parser.ReturnStmt)
	if gRet.Exp.Type() != reg.Int() {
		t.Errorf("int return exp type = %s", gRet.Exp.Type())
	}
	if c, ok := gRet.Exp.(*parser.ConstExp); !ok || c.Val.UnwrapInt() != 2 {
		t.Errorf("2.5 as int return = %s, want folded 2", parser.DumpExp(gRet.Exp))
	}
}

func TestInitListChecking(t *testing.T) {
	cu, reg := checkSource(t, "int a[2][2] = {{1, 2}, {3}};")
	decl := cu.Items[0].(*parser.Decl)
	c, ok := decl.Defs[0].Init.(*parser.ConstExp)
	if !ok || c.Val.Kind != parser.CvList {
		t.Fatalf("init = %s, want folded list", parser.DumpExp(decl.Defs[0].Init))
	}
	if c.Ty != reg.Array(reg.Array(reg.Int(), 2), 2) {
		t.Fatalf("list type = %s", c.Ty)
	}
	// {3} pads with zero: the missing slot folds to zero.
	sub := c.Val.Elems[1]
	if sub.Kind != parser.CvList || len(sub.Elems) != 2 {
		t.Fatalf("sub = %s", sub)
	}
	if sub.Elems[0].UnwrapInt() != 3 || !sub.Elems[1].IsZero() {
		t.Errorf("sub = %s, want [3, zero]", sub)
	}
}

func TestInitListZeroCollapse(t *testing.T) {
	cu, reg := checkSource(t, "int a[4] = {};")
	decl := cu.Items[0].(*parser.Decl)
	c, ok := decl.Defs[0].Init.(*parser.ConstExp)
	if !ok || c.Val.Kind != parser.CvZero {
		t.Fatalf("init = %s, want zero const", parser.DumpExp(decl.Defs[0].Init))
	}
	if c.Val.Ty != reg.Array(reg.Int(), 4) {
		t.Errorf("zero type = %s", c.Val.Ty)
	}
}

func TestInitListImplicitAggregate(t *testing.T) {
	// Scalars flow into the implicit inner aggregate until it fills.
	cu, _ := checkSource(t, "int a[2][2] = {1, 2, 3, 4};")
	decl := cu.Items[0].(*parser.Decl)
	c, ok := decl.Defs[0].Init.(*parser.ConstExp)
	if !ok || c.Val.Kind != parser.CvList {
		t.Fatalf("init = %s, want folded list", parser.DumpExp(decl.Defs[0].Init))
	}
	want := [2][2]int64{{1, 2}, {3, 4}}
	for i, row := range c.Val.Elems {
		if row.Kind != parser.CvList || len(row.Elems) != 2 {
			t.Fatalf("row %d = %s", i, row)
		}
		for j, el := range row.Elems {
			if el.UnwrapInt() != want[i][j] {
				t.Errorf("a[%d][%d] = %s, want %d", i, j, el, want[i][j])
			}
		}
	}
}

func TestConstArrayElementFold(t *testing.T) {
	cu, _ := checkSource(t, "const int a[3] = {1, 2, 3}; int main() { return a[1]; }")
	fd := cu.Items[1].(*parser.FuncDef)
	ret := fd.Body.Items[0].(*parser.ReturnStmt)
	c, ok := ret.Exp.(*parser.ConstExp)
	if !ok || c.Val.UnwrapInt() != 2 {
		t.Errorf("a[1] = %s, want folded 2", parser.DumpExp(ret.Exp))
	}
}

func TestSymbolShadowing(t *testing.T) {
	cu, _ := checkSource(t, `
const int x = 1;
int main() {
	int x = 2;
	{
		const int x = 3;
		putint(x);
	}
	return x;
}`)
	fd := cu.Items[1].(*parser.FuncDef)
	inner := fd.Body.Items[1].(*parser.BlockStmt).Block
	call := inner.Items[1].(*parser.ExpStmt).Exp.(*parser.CallExp)
	c, ok := call.Args[0].(*parser.ConstExp)
	if !ok || c.Val.UnwrapInt() != 3 {
		t.Errorf("inner x = %s, want folded 3", parser.DumpExp(call.Args[0]))
	}
	// The outer x is a variable, so the return does not fold.
	ret := fd.Body.Items[2].(*parser.ReturnStmt)
	if _, ok := ret.Exp.(*parser.ConstExp); ok {
		t.Error("outer variable x folded to a constant")
	}
}
