package mailindex

import (
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestConcurrency_SharedRelease(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	q, err := db.CreateQuery("tag:inbox")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}

	const holders = 50
	refs := make([]Ref[*Query], holders)
	for i := range refs {
		refs[i] = q.Share()
	}
	q.Close()

	var g errgroup.Group
	for _, ref := range refs {
		g.Go(func() error {
			_ = ref.Value().Sort()
			ref.Release()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("release: %v", err)
	}

	if !q.Closed() {
		t.Fatal("expected query destroyed")
	}
	if got := eng.Stats().Destroyed["query"]; got != 1 {
		t.Errorf("expected exactly one destroy, got %d", got)
	}
}

func TestConcurrency_SharedSearches(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)

	q, err := CreateQuery(db.Share(), "tag:inbox")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}
	want, err := q.CountMessages()
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	const workers = 10
	var (
		mu     sync.Mutex
		counts []int
	)
	var g errgroup.Group
	for range workers {
		msgs, err := SearchMessagesFrom(q.Share())
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		g.Go(func() error {
			defer msgs.Close()
			n := 0
			for msg := range msgs.All() {
				msg.Close()
				n++
			}
			mu.Lock()
			counts = append(counts, n)
			mu.Unlock()
			return nil
		})
	}
	q.Close()
	db.Close()

	if err := g.Wait(); err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, n := range counts {
		if uint32(n) != want {
			t.Errorf("drained %d messages, want %d", n, want)
		}
	}
	if live := eng.Stats().TotalLive(); live != 0 {
		t.Errorf("expected no live handles, got %d", live)
	}
}
