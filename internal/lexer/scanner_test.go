package lexer

import "testing"

func scanTypes(src string) []TokenType {
	toks := NewScanner(src).ScanTokens()
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestScanKeywordsAndSymbols(t *testing.T) {
	got := scanTypes("const int a = 1;")
	want := []TokenType{TokenConst, TokenInt, TokenIdent, TokenEqual, TokenIntConst, TokenSemicolon, TokenEOF}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanOperators(t *testing.T) {
	got := scanTypes("a <= b && c != d || !e >= f")
	want := []TokenType{
		TokenIdent, TokenLE, TokenIdent, TokenAnd, TokenIdent, TokenNotEqual,
		TokenIdent, TokenOr, TokenNot, TokenIdent, TokenGE, TokenIdent, TokenEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanComments(t *testing.T) {
	src := "int a; // line comment\n/* block\ncomment */ int b;"
	toks := NewScanner(src).ScanTokens()
	var idents []string
	for _, tok := range toks {
		if tok.Type == TokenIdent {
			idents = append(idents, tok.Lexeme)
		}
	}
	if len(idents) != 2 || idents[0] != "a" || idents[1] != "b" {
		t.Errorf("idents = %v, want [a b]", idents)
	}
	// The block comment spans a newline, so b is on line 3.
	last := toks[len(toks)-2]
	if last.Line != 3 {
		t.Errorf("line of last token = %d, want 3", last.Line)
	}
}

func TestScanNumbers(t *testing.T) {
	tests := []struct {
		src  string
		ty   TokenType
		text string
	}{
		{"42", TokenIntConst, "42"},
		{"0x1F", TokenIntConst, "0x1F"},
		{"017", TokenIntConst, "017"},
		{"3.14", TokenFloatConst, "3.14"},
		{"1e9", TokenFloatConst, "1e9"},
		{"2.5e-3", TokenFloatConst, "2.5e-3"},
		{"0x1.8p+1", TokenFloatConst, "0x1.8p+1"},
		{"0x1p4", TokenFloatConst, "0x1p4"},
		{".5", TokenFloatConst, ".5"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks := NewScanner(tt.src).ScanTokens()
			if len(toks) != 2 {
				t.Fatalf("token count = %d, want 2 (%v)", len(toks), toks)
			}
			if toks[0].Type != tt.ty || toks[0].Lexeme != tt.text {
				t.Errorf("got %s %q, want %s %q", toks[0].Type, toks[0].Lexeme, tt.ty, tt.text)
			}
		})
	}
}
