// Package passes hosts the IR optimization passes. The only pass so far
// is unreachable-code elimination: it drops everything after a block's
// first terminator and removes blocks the entry can no longer reach.
package passes

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sysyc/internal/cfg"
	"sysyc/internal/ir"
)

// ErrValueStillInUse reports that a dead instruction's result still has
// users. A well-typed front-end never produces this; hitting it means a
// builder bug.
type ErrValueStillInUse struct {
	Value ir.Value
}

func (e *ErrValueStillInUse) Error() string {
	return "dead value still in use"
}

// UnreachableCodeElimination removes post-terminator instructions and
// unreachable blocks from defined functions. The pass is idempotent at a
// fixed point.
type UnreachableCodeElimination struct{}

// sweepAfterTerminator unlinks every instruction that follows the first
// terminator of its block. Instructions are removed back-to-front so the
// def-use graph is consistent at each step.
func (p *UnreachableCodeElimination) sweepAfterTerminator(ctx *ir.Context, fn ir.Func) (bool, error) {
	var dead []ir.Inst
	for _, block := range fn.Blocks(ctx) {
		seenTerminator := false
		for _, inst := range block.Insts(ctx) {
			if seenTerminator {
				dead = append(dead, inst)
			} else if inst.IsTerminator(ctx) {
				seenTerminator = true
			}
		}
	}

	changed := false
	for i := len(dead) - 1; i >= 0; i-- {
		inst := dead[i]
		if result, ok := inst.Result(ctx); ok {
			if users := result.Users(ctx); len(users) > 0 {
				return changed, &ErrValueStillInUse{Value: result}
			}
		}
		inst.Unlink(ctx)
		if err := ctx.DeallocInst(inst); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// sweepUnreachableBlocks removes blocks the CFG cannot reach from the
// entry, dropping their def-use edges first.
func (p *UnreachableCodeElimination) sweepUnreachableBlocks(ctx *ir.Context, fn ir.Func) bool {
	info := cfg.New(ctx, fn)
	reachable := info.ReachableNodes(ctx)

	var deadBlocks []ir.Block
	var deadInsts []ir.Inst
	for _, block := range fn.Blocks(ctx) {
		if reachable[block] {
			continue
		}
		deadInsts = append(deadInsts, block.Insts(ctx)...)
		deadBlocks = append(deadBlocks, block)
	}

	changed := false
	for i := len(deadInsts) - 1; i >= 0; i-- {
		inst := deadInsts[i]
		// Results of dead instructions may still be referenced from other
		// dead instructions; sever those edges before unlinking.
		if result, ok := inst.Result(ctx); ok {
			for _, user := range result.Users(ctx) {
				result.RemoveUser(ctx, user)
			}
		}
		inst.Unlink(ctx)
		changed = true
	}
	for _, block := range deadBlocks {
		block.Unlink(ctx)
		changed = true
	}
	return changed
}

// Run eliminates dead code in one function. Declared functions are
// skipped.
func (p *UnreachableCodeElimination) Run(ctx *ir.Context, fn ir.Func) (bool, error) {
	if fn.Kind(ctx) == ir.FuncDeclare {
		return false, nil
	}

	changed, err := p.sweepAfterTerminator(ctx, fn)
	if err != nil {
		return changed, errors.Wrapf(err, "post-terminator sweep in %s", fn.Name(ctx))
	}
	if p.sweepUnreachableBlocks(ctx, fn) {
		changed = true
	}
	return changed, nil
}

// RunOnModule eliminates dead code in every function of the module.
func (p *UnreachableCodeElimination) RunOnModule(ctx *ir.Context) (bool, error) {
	changed := false
	for _, fn := range ctx.Funcs() {
		c, err := p.Run(ctx, fn)
		if c {
			changed = true
		}
		if err != nil {
			return changed, err
		}
		if c {
			Logger().Debug("dce changed function", zap.String("func", fn.Name(ctx)))
		}
	}
	return changed, nil
}
