package recency

import (
	"fmt"
	"sync"
	"testing"
)

func TestEvictsOldestPastCapacity(t *testing.T) {
	f := New(5)
	const k = 3
	for i := 0; i < 5+k; i++ {
		f.MarkServed("beginner:fork", fmt.Sprintf("p%d", i))
	}
	if n := f.Len("beginner:fork"); n != 5 {
		t.Fatalf("expected size 5, got %d", n)
	}
	for i := 0; i < k; i++ {
		if f.WasRecentlyServed("beginner:fork", fmt.Sprintf("p%d", i)) {
			t.Fatalf("p%d should have been evicted", i)
		}
	}
	for i := 5; i < 5+k; i++ {
		if !f.WasRecentlyServed("beginner:fork", fmt.Sprintf("p%d", i)) {
			t.Fatalf("p%d should be present", i)
		}
	}
	snap := f.Snapshot("beginner:fork")
	if snap[0] != "p3" || snap[len(snap)-1] != "p7" {
		t.Fatalf("unexpected order: %v", snap)
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	f := New(2)
	f.MarkServed("a", "x")
	f.MarkServed("b", "y")
	if f.WasRecentlyServed("a", "y") || f.WasRecentlyServed("b", "x") {
		t.Fatalf("categories leaked into each other")
	}
	if !f.WasRecentlyServed(" A ", "x") {
		t.Fatalf("category lookup should be case and space insensitive")
	}
}

func TestRemarkDoesNotGrow(t *testing.T) {
	f := New(3)
	f.MarkServed("c", "1")
	f.MarkServed("c", "1")
	f.MarkServed("c", "")
	if f.Len("c") != 1 {
		t.Fatalf("expected 1 entry, got %d", f.Len("c"))
	}
}

func TestSnapshotListsRecent(t *testing.T) {
	f := New(10)
	f.MarkServed("c", "a")
	f.MarkServed("c", "b")
	got := f.Snapshot("c")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected snapshot: %v", got)
	}
	if got := f.Snapshot("other"); len(got) != 0 {
		t.Fatalf("unknown category should be empty: %v", got)
	}
}

func TestConcurrentMarksKeepBound(t *testing.T) {
	f := New(50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				f.MarkServed("shared", fmt.Sprintf("g%d-%d", g, i))
				_ = f.WasRecentlyServed("shared", "g0-0")
			}
		}(g)
	}
	wg.Wait()
	if n := f.Len("shared"); n != 50 {
		t.Fatalf("expected capacity bound 50, got %d", n)
	}
}

func TestDefaultCapacity(t *testing.T) {
	if New(0).Capacity() != DefaultCapacity {
		t.Fatalf("expected default capacity")
	}
}
