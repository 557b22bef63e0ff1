package parser

import (
	"testing"

	"sysyc/internal/lexer"
	"sysyc/internal/types"
)

func parse(t *testing.T, src string) *CompUnit {
	t.Helper()
	reg := types.NewRegistry()
	tokens := lexer.NewScanner(src).ScanTokens()
	cu, err := NewParser(tokens, reg).ParseCompUnit()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return cu
}

func TestParseGlobalDecl(t *testing.T) {
	cu := parse(t, "const int N = 3 * 2 + 1;")
	if len(cu.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(cu.Items))
	}
	decl, ok := cu.Items[0].(*Decl)
	if !ok || !decl.Const {
		t.Fatalf("item is not a const decl: %#v", cu.Items[0])
	}
	if len(decl.Defs) != 1 || decl.Defs[0].Ident != "N" {
		t.Fatalf("defs = %#v", decl.Defs)
	}
	// Initializer parses with * binding tighter than +.
	add, ok := decl.Defs[0].Init.(*BinaryExp)
	if !ok || add.Op != OpAdd {
		t.Fatalf("init = %s", DumpExp(decl.Defs[0].Init))
	}
	if mul, ok := add.Lhs.(*BinaryExp); !ok || mul.Op != OpMul {
		t.Errorf("lhs of + is not *: %s", DumpExp(add.Lhs))
	}
}

func TestParseMultipleDefs(t *testing.T) {
	cu := parse(t, "int a = 1, b[2][3], c;")
	decl := cu.Items[0].(*Decl)
	if len(decl.Defs) != 3 {
		t.Fatalf("defs = %d, want 3", len(decl.Defs))
	}
	if len(decl.Defs[1].Dims) != 2 {
		t.Errorf("b dims = %d, want 2", len(decl.Defs[1].Dims))
	}
	if decl.Defs[2].Init != nil {
		t.Error("c has an initializer")
	}
}

func TestParseFuncDef(t *testing.T) {
	cu := parse(t, "int f(int x, float y[], int z[][4]) { return x; }")
	fd, ok := cu.Items[0].(*FuncDef)
	if !ok {
		t.Fatalf("item is not a funcdef")
	}
	if fd.Ident != "f" || len(fd.Params) != 3 {
		t.Fatalf("funcdef = %s/%d params", fd.Ident, len(fd.Params))
	}
	if fd.Params[0].IsArray {
		t.Error("x parsed as array")
	}
	if !fd.Params[1].IsArray || len(fd.Params[1].Dims) != 0 {
		t.Error("y should be an array parameter with no extra dims")
	}
	if !fd.Params[2].IsArray || len(fd.Params[2].Dims) != 1 {
		t.Error("z should be an array parameter with one extra dim")
	}
}

func TestParseStatements(t *testing.T) {
	cu := parse(t, `
int main() {
	int a = 0;
	while (a < 10) {
		if (a == 5) break;
		a = a + 1;
	}
	return a;
}`)
	fd := cu.Items[0].(*FuncDef)
	items := fd.Body.Items
	if len(items) != 3 {
		t.Fatalf("body items = %d, want 3", len(items))
	}
	if _, ok := items[0].(*Decl); !ok {
		t.Error("first item is not a decl")
	}
	loop, ok := items[1].(*WhileStmt)
	if !ok {
		t.Fatalf("second item is not a while")
	}
	body := loop.Body.(*BlockStmt).Block.Items
	ifStmt, ok := body[0].(*IfStmt)
	if !ok {
		t.Fatalf("loop body does not start with if")
	}
	if _, ok := ifStmt.Then.(*BreakStmt); !ok {
		t.Error("if-then is not break")
	}
	if _, ok := body[1].(*AssignStmt); !ok {
		t.Error("second loop statement is not an assignment")
	}
	if _, ok := items[2].(*ReturnStmt); !ok {
		t.Error("third item is not return")
	}
}

func TestParseIfElse(t *testing.T) {
	cu := parse(t, "int f(int x) { if (x > 0) return 1; else return -1; }")
	fd := cu.Items[0].(*FuncDef)
	ifStmt := fd.Body.Items[0].(*IfStmt)
	if ifStmt.Else == nil {
		t.Fatal("else branch missing")
	}
	ret := ifStmt.Else.(*ReturnStmt)
	neg, ok := ret.Exp.(*UnaryExp)
	if !ok || neg.Op != OpNeg {
		t.Errorf("else returns %s, want -1", DumpExp(ret.Exp))
	}
}

func TestParsePrecedence(t *testing.T) {
	cu := parse(t, "int main() { int a = 1 && (2 || 0); return a; }")
	fd := cu.Items[0].(*FuncDef)
	decl := fd.Body.Items[0].(*Decl)
	and, ok := decl.Defs[0].Init.(*BinaryExp)
	if !ok || and.Op != OpLAnd {
		t.Fatalf("init = %s, want top-level &&", DumpExp(decl.Defs[0].Init))
	}
	if or, ok := and.Rhs.(*BinaryExp); !ok || or.Op != OpLOr {
		t.Errorf("rhs = %s, want ||", DumpExp(and.Rhs))
	}
}

func TestParseComparisonChain(t *testing.T) {
	cu := parse(t, "int main() { return 1 < 2 == 1; }")
	fd := cu.Items[0].(*FuncDef)
	ret := fd.Body.Items[0].(*ReturnStmt)
	eq := ret.Exp.(*BinaryExp)
	if eq.Op != OpEq {
		t.Fatalf("top op = %s, want ==", eq.Op)
	}
	if lt, ok := eq.Lhs.(*BinaryExp); !ok || lt.Op != OpLt {
		t.Error("relational does not bind tighter than equality")
	}
}

func TestParseInitList(t *testing.T) {
	cu := parse(t, "int a[2][2] = {{1, 2}, {3}};")
	decl := cu.Items[0].(*Decl)
	list, ok := decl.Defs[0].Init.(*InitListExp)
	if !ok || len(list.Elems) != 2 {
		t.Fatalf("init = %s", DumpExp(decl.Defs[0].Init))
	}
	sub, ok := list.Elems[1].(*InitListExp)
	if !ok || len(sub.Elems) != 1 {
		t.Error("nested list malformed")
	}
}

func TestParseEmptyInitList(t *testing.T) {
	cu := parse(t, "int a[4] = {};")
	decl := cu.Items[0].(*Decl)
	list, ok := decl.Defs[0].Init.(*InitListExp)
	if !ok || len(list.Elems) != 0 {
		t.Fatalf("init = %s", DumpExp(decl.Defs[0].Init))
	}
}

func TestParseCallAndIndex(t *testing.T) {
	cu := parse(t, "int main() { putarray(2, a); return f(a[1], 3); }")
	fd := cu.Items[0].(*FuncDef)
	call := fd.Body.Items[0].(*ExpStmt).Exp.(*CallExp)
	if call.Ident != "putarray" || len(call.Args) != 2 {
		t.Fatalf("call = %s", DumpExp(call))
	}
	ret := fd.Body.Items[1].(*ReturnStmt)
	f := ret.Exp.(*CallExp)
	lval, ok := f.Args[0].(*LValExp)
	if !ok || len(lval.Indices) != 1 {
		t.Errorf("first arg = %s, want a[1]", DumpExp(f.Args[0]))
	}
}

func TestParseNumericLiterals(t *testing.T) {
	tests := []struct {
		src  string
		kind CvKind
		i    int64
		f    float32
	}{
		{"int a = 0x1F;", CvInt, 31, 0},
		{"int a = 017;", CvInt, 15, 0},
		{"float a = 0x1.8p+1;", CvFloat, 0, 3},
		{"float a = 2.5e1;", CvFloat, 0, 25},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			cu := parse(t, tt.src)
			c, ok := cu.Items[0].(*Decl).Defs[0].Init.(*ConstExp)
			if !ok {
				t.Fatal("literal did not parse to a const")
			}
			if c.Val.Kind != tt.kind {
				t.Fatalf("kind = %d, want %d", c.Val.Kind, tt.kind)
			}
			if tt.kind == CvInt && c.Val.I != tt.i {
				t.Errorf("value = %d, want %d", c.Val.I, tt.i)
			}
			if tt.kind == CvFloat && c.Val.F != tt.f {
				t.Errorf("value = %g, want %g", c.Val.F, tt.f)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"int main( { return 0; }",
		"int main() { return 0 }",
		"int = 3;",
		"int main() { if return; }",
	}
	reg := types.NewRegistry()
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			tokens := lexer.NewScanner(src).ScanTokens()
			if _, err := NewParser(tokens, reg).ParseCompUnit(); err == nil {
				t.Errorf("parse %q succeeded, want syntax error", src)
			}
		})
	}
}
