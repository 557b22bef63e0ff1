package cfg

import (
	"strings"
	"testing"

	"sysyc/internal/ir"
)

// buildLoopFunc builds the canonical test shape:
//
//	entry -> header -> body -> tail -> header
//	              \-> exit
func buildLoopFunc(ctx *ir.Context) (ir.Func, []ir.Block) {
	fn := ir.NewFunc(ctx, "test_func", ir.VoidTy(ctx))

	entry := ir.NewBlock(ctx)
	header := ir.NewBlock(ctx)
	body := ir.NewBlock(ctx)
	tail := ir.NewBlock(ctx)
	exit := ir.NewBlock(ctx)

	fn.PushBack(ctx, entry)
	fn.PushBack(ctx, header)
	fn.PushBack(ctx, body)
	fn.PushBack(ctx, tail)
	fn.PushBack(ctx, exit)

	cond := ir.ConstI1(ctx, true)

	entry.PushBack(ctx, ir.NewBr(ctx, header))
	header.PushBack(ctx, ir.NewCondBr(ctx, cond, body, exit))
	body.PushBack(ctx, ir.NewBr(ctx, tail))
	tail.PushBack(ctx, ir.NewBr(ctx, header))
	exit.PushBack(ctx, ir.NewRet(ctx, ir.Value{}))

	return fn, []ir.Block{entry, header, body, tail, exit}
}

func contains(blocks []ir.Block, b ir.Block) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}
	return false
}

func TestCfgSuccessors(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, blocks := buildLoopFunc(ctx)
	entry, header, body, tail, exit := blocks[0], blocks[1], blocks[2], blocks[3], blocks[4]

	info := New(ctx, fn)

	if succs := info.Succs(entry); len(succs) != 1 || succs[0] != header {
		t.Errorf("entry succs = %v", succs)
	}
	succs := info.Succs(header)
	if len(succs) != 2 || !contains(succs, body) || !contains(succs, exit) {
		t.Errorf("header succs = %v", succs)
	}
	if succs := info.Succs(body); len(succs) != 1 || succs[0] != tail {
		t.Errorf("body succs = %v", succs)
	}
	if succs := info.Succs(tail); len(succs) != 1 || succs[0] != header {
		t.Errorf("tail succs = %v", succs)
	}
	if succs := info.Succs(exit); len(succs) != 0 {
		t.Errorf("exit succs = %v", succs)
	}
}

func TestCfgPredecessors(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, blocks := buildLoopFunc(ctx)
	entry, header, body, tail, exit := blocks[0], blocks[1], blocks[2], blocks[3], blocks[4]

	info := New(ctx, fn)

	if preds := info.Preds(entry); len(preds) != 0 {
		t.Errorf("entry preds = %v", preds)
	}
	preds := info.Preds(header)
	if len(preds) != 2 || !contains(preds, entry) || !contains(preds, tail) {
		t.Errorf("header preds = %v", preds)
	}
	if preds := info.Preds(body); len(preds) != 1 || preds[0] != header {
		t.Errorf("body preds = %v", preds)
	}
	if preds := info.Preds(exit); len(preds) != 1 || preds[0] != header {
		t.Errorf("exit preds = %v", preds)
	}
}

func TestCfgReachableNodes(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, _ := buildLoopFunc(ctx)
	info := New(ctx, fn)
	if got := len(info.ReachableNodes(ctx)); got != 5 {
		t.Errorf("reachable = %d, want 5", got)
	}
}

func TestCfgUnreachableBlockExcluded(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, _ := buildLoopFunc(ctx)
	orphan := ir.NewBlock(ctx)
	orphan.PushBack(ctx, ir.NewRet(ctx, ir.Value{}))
	fn.PushBack(ctx, orphan)

	info := New(ctx, fn)
	reachable := info.ReachableNodes(ctx)
	if reachable[orphan] {
		t.Error("orphan block reported reachable")
	}
	if len(reachable) != 5 {
		t.Errorf("reachable = %d, want 5", len(reachable))
	}
}

func TestCfgDot(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, blocks := buildLoopFunc(ctx)
	info := New(ctx, fn)
	dot := info.Dot(ctx)
	if !strings.HasPrefix(dot, "digraph CFG {") {
		t.Error("dot output missing header")
	}
	for _, b := range blocks {
		if !strings.Contains(dot, b.Name(ctx)) {
			t.Errorf("dot output missing node %s", b.Name(ctx))
		}
	}
	if !strings.Contains(dot, "->") {
		t.Error("dot output has no edges")
	}
}
