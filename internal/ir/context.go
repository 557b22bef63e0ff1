// Package ir implements the SSA intermediate representation: a
// compilation-wide arena context, typed values with def-use tracking,
// instructions and basic blocks on intrusive doubly-linked lists, defined
// and declared functions, and module-level global constants.
package ir

// TargetInfo carries what little the mid-level IR needs to know about the
// target platform.
type TargetInfo struct {
	// PtrSize is the pointer width in bytes.
	PtrSize int
}

// Context is the compilation-wide arena. Every handle issued by this
// package is only meaningful together with the context that produced it.
// A context is exclusively owned for the duration of a compilation; all
// mutation goes through it sequentially.
type Context struct {
	target TargetInfo

	tys     arena[tyData]
	tyPool  map[tyKey]Ty
	values  arena[valueData]
	insts   arena[instData]
	blocks  arena[blockData]
	funcs   arena[funcData]
	globals arena[globalData]

	// Creation order, preserved for deterministic output.
	funcList   []Func
	globalList []Global

	nextBlockID int
	nextValueID int
}

func NewContext(ptrSize int) *Context {
	return &Context{
		target: TargetInfo{PtrSize: ptrSize},
		tyPool: map[tyKey]Ty{},
	}
}

func (ctx *Context) Target() TargetInfo { return ctx.target }

func (ctx *Context) SetTarget(info TargetInfo) { ctx.target = info }

// Funcs returns all functions in creation order.
func (ctx *Context) Funcs() []Func {
	return append([]Func(nil), ctx.funcList...)
}

// Globals returns all globals in creation order.
func (ctx *Context) Globals() []Global {
	return append([]Global(nil), ctx.globalList...)
}

// FuncByName finds a function by its symbol name.
func (ctx *Context) FuncByName(name string) (Func, bool) {
	for _, fn := range ctx.funcList {
		if fn.Name(ctx) == name {
			return fn, true
		}
	}
	return Func{}, false
}
