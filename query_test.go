package mailindex

import (
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/engine/memory"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// countingEngine counts how often the query string is read back.
type countingEngine struct {
	engine.Engine
	queryStrings atomic.Int32
}

func (e *countingEngine) QueryString(q engine.Handle) string {
	e.queryStrings.Add(1)
	return e.Engine.QueryString(q)
}

func drainIDs(t *testing.T, msgs *Messages) []string {
	t.Helper()
	var ids []string
	for msg := range msgs.All() {
		ids = append(ids, msg.ID())
		msg.Close()
	}
	return ids
}

func TestCreateQuery(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	t.Run("defaults", func(t *testing.T) {
		q, err := db.CreateQuery("tag:inbox")
		if err != nil {
			t.Fatalf("create query: %v", err)
		}
		defer q.Close()
		if q.String() != "tag:inbox" {
			t.Errorf("expected query string, got %q", q.String())
		}
		if q.Sort() != SortNewestFirst {
			t.Errorf("expected newest-first, got %v", q.Sort())
		}
		q.SetSort(SortMessageID)
		if q.Sort() != SortMessageID {
			t.Errorf("expected message-id, got %v", q.Sort())
		}
	})

	t.Run("malformed releases database borrow", func(t *testing.T) {
		_, err := db.CreateQuery("bogus:value")
		if !errors.Is(err, ErrCreationFailed) {
			t.Fatalf("expected ErrCreationFailed, got %v", err)
		}
		if n := db.borrows.Load(); n != 0 {
			t.Errorf("expected no outstanding borrows, got %d", n)
		}
	})
}

func TestSearchMessages(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	tests := []struct {
		name  string
		query string
		sort  Sort
		want  []string
	}{
		{"inbox oldest first", "tag:inbox", SortOldestFirst, []string{"d@x", "a@x", "b@x"}},
		{"inbox newest first", "tag:inbox", SortNewestFirst, []string{"b@x", "a@x", "d@x"}},
		{"all by id", "", SortMessageID, []string{"a@x", "b@x", "c@x", "d@x"}},
		{"negation", "tag:inbox not tag:spam", SortOldestFirst, []string{"a@x", "b@x"}},
		{"or", "from:carol or from:dave", SortOldestFirst, []string{"c@x", "d@x"}},
		{"thread", "thread:t1", SortOldestFirst, []string{"a@x", "b@x"}},
		{"no match", "tag:nothing", SortOldestFirst, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := db.CreateQuery(tt.query)
			if err != nil {
				t.Fatalf("create query: %v", err)
			}
			defer q.Close()
			q.SetSort(tt.sort)

			msgs, err := q.SearchMessages()
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			defer msgs.Close()

			got := drainIDs(t, msgs)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCountMatchesSearch(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	q, err := db.CreateQuery("tag:inbox")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}
	defer q.Close()
	q.SetSort(SortOldestFirst)

	first, err := q.CountMessages()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	second, err := q.CountMessages()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if first != second {
		t.Fatalf("counts differ: %d != %d", first, second)
	}

	msgs, err := q.SearchMessages()
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	defer msgs.Close()
	if got := len(drainIDs(t, msgs)); uint32(got) != first {
		t.Errorf("drained %d messages, count was %d", got, first)
	}
	if first != 3 {
		t.Errorf("expected 3 inbox messages, got %d", first)
	}

	threads, err := q.CountThreads()
	if err != nil {
		t.Fatalf("count threads: %v", err)
	}
	if threads != 2 {
		t.Errorf("expected 2 threads, got %d", threads)
	}
}

func TestExcludeTag(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	t.Run("omits excluded messages", func(t *testing.T) {
		q, err := db.CreateQuery("tag:inbox")
		if err != nil {
			t.Fatalf("create query: %v", err)
		}
		defer q.Close()
		if err := q.ExcludeTag("spam"); err != nil {
			t.Fatalf("exclude: %v", err)
		}
		if n, _ := q.CountMessages(); n != 2 {
			t.Errorf("expected 2 messages, got %d", n)
		}
	})

	t.Run("explicit tag wins", func(t *testing.T) {
		q, err := db.CreateQuery("tag:spam")
		if err != nil {
			t.Fatalf("create query: %v", err)
		}
		defer q.Close()
		if err := q.ExcludeTag("spam"); err != nil {
			t.Fatalf("exclude: %v", err)
		}
		if n, _ := q.CountMessages(); n != 1 {
			t.Errorf("expected 1 message, got %d", n)
		}
	})

	t.Run("invalid tag", func(t *testing.T) {
		q, err := db.CreateQuery("")
		if err != nil {
			t.Fatalf("create query: %v", err)
		}
		defer q.Close()
		err = q.ExcludeTag("")
		if StatusOf(err) != engine.StatusNullPointer {
			t.Errorf("expected StatusNullPointer, got %v", err)
		}
	})
}

func TestSearchFailureReleasesToken(t *testing.T) {
	// database + query fill the table.
	eng := newEngine(t, memory.WithHandleLimit(2))
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	q, err := db.CreateQuery("tag:inbox")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}

	_, err = q.SearchMessages()
	if StatusOf(err) != engine.StatusOutOfMemory {
		t.Fatalf("expected StatusOutOfMemory, got %v", err)
	}
	if n := q.borrows.Load(); n != 0 {
		t.Errorf("expected borrow released, got %d", n)
	}

	_, err = SearchThreadsFrom(q.Share())
	if StatusOf(err) != engine.StatusOutOfMemory {
		t.Fatalf("expected StatusOutOfMemory, got %v", err)
	}
	if n := q.refs.Load(); n != 1 {
		t.Errorf("expected shared token released, got %d refs", n)
	}

	q.Close()
	if got := eng.Stats().Destroyed["query"]; got != 1 {
		t.Errorf("expected query destroyed once, got %d", got)
	}
}

func TestSpanAttributes(t *testing.T) {
	run := func(t *testing.T, eng *countingEngine, opts ...Option) {
		t.Helper()
		db := openDB(t, eng, ModeReadOnly, opts...)
		defer db.Close()
		q, err := db.CreateQuery("tag:inbox")
		if err != nil {
			t.Fatalf("create query: %v", err)
		}
		defer q.Close()
		if _, err := q.CountMessages(); err != nil {
			t.Fatalf("count: %v", err)
		}
		msgs, err := q.SearchMessages()
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		msgs.Close()
		threads, err := q.SearchThreads()
		if err != nil {
			t.Fatalf("search threads: %v", err)
		}
		threads.Close()
	}

	t.Run("tracing disabled skips query string", func(t *testing.T) {
		eng := &countingEngine{Engine: newEngine(t)}
		run(t, eng)
		if n := eng.queryStrings.Load(); n != 0 {
			t.Errorf("expected no query string reads, got %d", n)
		}
	})

	t.Run("tracing enabled records query string", func(t *testing.T) {
		eng := &countingEngine{Engine: newEngine(t)}
		run(t, eng, WithTracing(true), WithTracerProvider(tracenoop.NewTracerProvider()))
		if n := eng.queryStrings.Load(); n != 3 {
			t.Errorf("expected one query string read per span, got %d", n)
		}
	})
}
