package cfg

import (
	"testing"

	"sysyc/internal/ir"
)

func TestDfsCoversReachableSet(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, _ := buildLoopFunc(ctx)

	dfs := NewDfsContext()
	pre := dfs.PreOrder(ctx, fn)
	post := dfs.PostOrder(ctx, fn)

	if len(pre) != 5 {
		t.Errorf("pre-order visits %d blocks, want 5", len(pre))
	}
	if len(post) != 5 {
		t.Errorf("post-order visits %d blocks, want 5", len(post))
	}
	if len(pre) != len(post) {
		t.Error("pre- and post-order visit different counts")
	}

	// Both orders enumerate exactly the reachable set.
	reachable := New(ctx, fn).ReachableNodes(ctx)
	for _, b := range pre {
		if !reachable[b] {
			t.Errorf("pre-order visited unreachable block %s", b.Name(ctx))
		}
	}
	seen := map[ir.Block]bool{}
	for _, b := range post {
		if seen[b] {
			t.Errorf("post-order visited %s twice", b.Name(ctx))
		}
		seen[b] = true
	}
}

func TestDfsPreOrderStartsAtEntry(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, blocks := buildLoopFunc(ctx)

	pre := NewDfsContext().PreOrder(ctx, fn)
	if pre[0] != blocks[0] {
		t.Errorf("pre-order starts at %s, want entry", pre[0].Name(ctx))
	}
	// Successors are visited left-to-right: header's first target is the
	// loop body, so it precedes exit.
	idx := map[ir.Block]int{}
	for i, b := range pre {
		idx[b] = i
	}
	if idx[blocks[2]] > idx[blocks[4]] {
		t.Error("first successor (body) visited after second (exit)")
	}
}

func TestDfsPostOrderEndsAtEntry(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, blocks := buildLoopFunc(ctx)

	post := NewDfsContext().PostOrder(ctx, fn)
	if post[len(post)-1] != blocks[0] {
		t.Error("entry block is not last in post-order")
	}
}

func TestDfsEvents(t *testing.T) {
	ctx := ir.NewContext(8)
	fn, _ := buildLoopFunc(ctx)

	it := NewDfsContext().Iter(ctx, fn)
	depth := 0
	enters, leaves := 0, 0
	for {
		event, _, ok := it.Next()
		if !ok {
			break
		}
		if event == Enter {
			depth++
			enters++
		} else {
			depth--
			leaves++
		}
		if depth < 0 {
			t.Fatal("Leave before matching Enter")
		}
	}
	if depth != 0 {
		t.Errorf("unbalanced events, final depth %d", depth)
	}
	if enters != 5 || leaves != 5 {
		t.Errorf("enters=%d leaves=%d, want 5/5", enters, leaves)
	}
}
