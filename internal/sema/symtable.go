// Package sema implements the scoped symbol table and the type checker:
// type inference, implicit coercions, constant folding and array-shape
// resolution over the parsed AST.
package sema

import (
	"sysyc/internal/ir"
	"sysyc/internal/parser"
	"sysyc/internal/types"
)

// IrSlot records the IR handle generated for a declared name: either a
// module-level global or a local value (an alloca slot or a parameter).
type IrSlot struct {
	IsGlobal bool
	Global   ir.Global
	Value    ir.Value
}

// SymbolEntry stores what is known about one name: its type, its
// compile-time value when the declaration is constant, and the IR handle
// once IR generation has produced one.
type SymbolEntry struct {
	Ty       *types.Type
	Comptime *parser.ComptimeVal
	Ir       *IrSlot
}

// SymbolTable is a stack of lexical scopes.
type SymbolTable struct {
	stack []map[string]*SymbolEntry

	// CurrRetTy is the return type of the function being checked.
	CurrRetTy *types.Type
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// EnterScope pushes a fresh scope.
func (s *SymbolTable) EnterScope() {
	s.stack = append(s.stack, map[string]*SymbolEntry{})
}

// LeaveScope pops the innermost scope.
func (s *SymbolTable) LeaveScope() {
	s.stack = s.stack[:len(s.stack)-1]
}

// Insert binds a name in the innermost scope.
func (s *SymbolTable) Insert(name string, entry *SymbolEntry) {
	s.stack[len(s.stack)-1][name] = entry
}

// InsertUpper binds a name in the scope `upper` levels below the innermost
// one. Used to register a function's own name while standing inside its
// parameter scope.
func (s *SymbolTable) InsertUpper(name string, entry *SymbolEntry, upper int) {
	s.stack[len(s.stack)-1-upper][name] = entry
}

// Lookup searches scopes innermost-first.
func (s *SymbolTable) Lookup(name string) *SymbolEntry {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if entry, ok := s.stack[i][name]; ok {
			return entry
		}
	}
	return nil
}

// RegisterRuntimeLib binds the SysY runtime library signatures in the
// current (top-level) scope. The functions are externally linked; the
// compiler only ever emits declarations for them.
func (s *SymbolTable) RegisterRuntimeLib(reg *types.Registry) {
	i := reg.Int()
	f := reg.Float()
	v := reg.Void()
	ip := reg.Pointer(i)
	fp := reg.Pointer(f)

	sigs := []struct {
		name   string
		params []*types.Type
		ret    *types.Type
	}{
		{"getint", nil, i},
		{"getch", nil, i},
		{"getfloat", nil, f},
		{"putint", []*types.Type{i}, v},
		{"putch", []*types.Type{i}, v},
		{"putfloat", []*types.Type{f}, v},
		{"getarray", []*types.Type{ip}, i},
		{"putarray", []*types.Type{i, ip}, v},
		{"getfarray", []*types.Type{fp}, i},
		{"putfarray", []*types.Type{i, fp}, v},
		{"starttime", []*types.Type{i}, v},
		{"stoptime", []*types.Type{i}, v},
		{"memset", []*types.Type{ip, i, i}, v},
		{"memcpy", []*types.Type{ip, ip, i}, v},
	}
	for _, sig := range sigs {
		s.Insert(sig.name, &SymbolEntry{Ty: reg.Func(sig.params, sig.ret)})
	}
}
