package mailindex

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/rbaliyan/mailindex/engine/memory"
	"github.com/rbaliyan/mailindex/index"
	indexmem "github.com/rbaliyan/mailindex/index/memory"
)

func TestSearchThreads(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	q, err := db.CreateQuery("tag:inbox")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}
	defer q.Close()

	threads, err := q.SearchThreads()
	if err != nil {
		t.Fatalf("search threads: %v", err)
	}
	defer threads.Close()

	var ids []string
	for th := range threads.All() {
		ids = append(ids, th.ID())
		th.Close()
	}
	// Newest first: t1 holds b@x (day 4), t3 holds d@x (day 2).
	if !slices.Equal(ids, []string{"t1", "t3"}) {
		t.Errorf("unexpected threads %v", ids)
	}
	if _, ok := threads.Next(); ok {
		t.Error("expected exhausted threads")
	}
	if err := threads.Err(); err != nil {
		t.Errorf("expected no error after a full drain, got %v", err)
	}
}

func TestThreadsCreationFailure(t *testing.T) {
	// database, query, threads and one thread fill the table.
	eng := newEngine(t, memory.WithHandleLimit(4))
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	q, err := db.CreateQuery("tag:inbox")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}
	defer q.Close()
	threads, err := q.SearchThreads()
	if err != nil {
		t.Fatalf("search threads: %v", err)
	}
	defer threads.Close()

	first, ok := threads.Next()
	if !ok {
		t.Fatal("expected a thread")
	}
	defer first.Close()

	if _, ok := threads.Next(); ok {
		t.Fatal("expected the second thread to fail at the handle limit")
	}
	if !errors.Is(threads.Err(), ErrCreationFailed) {
		t.Errorf("expected ErrCreationFailed, got %v", threads.Err())
	}
	if !threads.Exhausted() {
		t.Error("expected the failed iterator to be exhausted")
	}
}

func TestThread(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	q, err := db.CreateQuery("from:bob")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}
	defer q.Close()

	threads, err := q.SearchThreads()
	if err != nil {
		t.Fatalf("search threads: %v", err)
	}
	th, ok := threads.Next()
	if !ok {
		t.Fatal("expected a thread")
	}
	threads.Close()
	defer th.Close()

	if th.ID() != "t1" {
		t.Errorf("expected t1, got %q", th.ID())
	}
	if th.Subject() != "plans" {
		t.Errorf("expected subject of oldest message, got %q", th.Subject())
	}
	if th.Authors() != "alice, bob" {
		t.Errorf("unexpected authors %q", th.Authors())
	}
	if th.TotalMessages() != 2 || th.MatchedMessages() != 1 {
		t.Errorf("expected 2 total, 1 matched, got %d, %d", th.TotalMessages(), th.MatchedMessages())
	}
	if !th.OldestDate().Equal(day(4)) || !th.NewestDate().Equal(day(4)) {
		t.Errorf("unexpected dates %v %v", th.OldestDate(), th.NewestDate())
	}

	t.Run("messages oldest first", func(t *testing.T) {
		msgs, err := th.Messages()
		if err != nil {
			t.Fatalf("messages: %v", err)
		}
		defer msgs.Close()
		if got := drainIDs(t, msgs); !slices.Equal(got, []string{"a@x", "b@x"}) {
			t.Errorf("unexpected messages %v", got)
		}
	})

	t.Run("top level", func(t *testing.T) {
		msgs, err := th.TopLevelMessages()
		if err != nil {
			t.Fatalf("top level: %v", err)
		}
		defer msgs.Close()
		if got := drainIDs(t, msgs); !slices.Equal(got, []string{"a@x"}) {
			t.Errorf("unexpected top level %v", got)
		}
	})

	t.Run("tags", func(t *testing.T) {
		tags, err := th.Tags()
		if err != nil {
			t.Fatalf("tags: %v", err)
		}
		defer tags.Close()
		if got := tags.Collect(); !slices.Equal(got, []string{"inbox", "unread"}) {
			t.Errorf("unexpected tags %v", got)
		}
	})

	t.Run("thread messages borrow the thread", func(t *testing.T) {
		msgs, err := th.Messages()
		if err != nil {
			t.Fatalf("messages: %v", err)
		}
		msg, ok := msgs.Next()
		if !ok {
			t.Fatal("expected a message")
		}
		msgs.Close()
		expectMisuse(t, func() { th.Close() })
		msg.Close()
	})
}

func TestDatelessTimes(t *testing.T) {
	const plain = "/plain"
	eng := newEngine(t, memory.WithIndex(plain, indexmem.New(
		index.Document{ID: "n@x", ThreadID: "tn", Filenames: []string{"misc/n"}, From: "nobody", Subject: "undated", Tags: []string{"inbox"}},
	)))
	db, err := Open(context.Background(), plain, ModeReadOnly, WithEngine(eng), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	t.Run("message", func(t *testing.T) {
		msg, err := db.FindMessage("n@x")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		defer msg.Close()
		if !msg.Date().IsZero() {
			t.Errorf("expected zero date, got %v", msg.Date())
		}
	})

	t.Run("thread", func(t *testing.T) {
		q, err := db.CreateQuery("tag:inbox")
		if err != nil {
			t.Fatalf("create query: %v", err)
		}
		defer q.Close()
		threads, err := q.SearchThreads()
		if err != nil {
			t.Fatalf("search threads: %v", err)
		}
		defer threads.Close()
		th, ok := threads.Next()
		if !ok {
			t.Fatalf("expected a thread, err %v", threads.Err())
		}
		defer th.Close()
		if !th.OldestDate().IsZero() || !th.NewestDate().IsZero() {
			t.Errorf("expected zero dates, got %v and %v", th.OldestDate(), th.NewestDate())
		}
	})

	t.Run("directory", func(t *testing.T) {
		dir, err := db.Directory("misc")
		if err != nil {
			t.Fatalf("directory: %v", err)
		}
		defer dir.Close()
		if !dir.Mtime().IsZero() {
			t.Errorf("expected zero mtime, got %v", dir.Mtime())
		}
	})
}
