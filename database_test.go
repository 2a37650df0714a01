package mailindex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/engine/memory"
	"github.com/rbaliyan/mailindex/index"
	indexmem "github.com/rbaliyan/mailindex/index/memory"
)

const root = "/mail"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func day(n int) time.Time {
	return time.Date(2024, 1, n, 12, 0, 0, 0, time.UTC)
}

func fixtureDocs() []index.Document {
	return []index.Document{
		{ID: "a@x", ThreadID: "t1", Filenames: []string{"INBOX/cur/a"}, Date: day(3), From: "alice", Subject: "plans", Tags: []string{"inbox", "unread"}},
		{ID: "b@x", ThreadID: "t1", InReplyTo: "a@x", Filenames: []string{"INBOX/cur/b"}, Date: day(4), From: "bob", Subject: "Re: plans", Tags: []string{"inbox"}},
		{ID: "c@x", ThreadID: "t2", Filenames: []string{"archive/c"}, Date: day(1), From: "carol", Subject: "old", Tags: []string{"archived"}},
		{ID: "d@x", ThreadID: "t3", Filenames: []string{"INBOX/new/d"}, Date: day(2), From: "dave", Subject: "spam", Tags: []string{"inbox", "spam"}, Headers: map[string]string{"X-Spam": "yes"}},
	}
}

func newEngine(t *testing.T, opts ...memory.Option) *memory.Engine {
	t.Helper()
	opts = append([]memory.Option{
		memory.WithIndex(root, indexmem.New(fixtureDocs()...)),
		memory.WithLogger(quietLogger),
	}, opts...)
	return memory.New(opts...)
}

func openDB(t *testing.T, eng engine.Engine, mode DatabaseMode, opts ...Option) *Database {
	t.Helper()
	opts = append([]Option{WithEngine(eng), WithLogger(quietLogger)}, opts...)
	db, err := Open(context.Background(), root, mode, opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

// expectMisuse runs fn and returns the *MisuseError it panicked with.
func expectMisuse(t *testing.T, fn func()) (me *MisuseError) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatal("expected misuse panic")
		}
		var ok bool
		if me, ok = r.(*MisuseError); !ok {
			t.Fatalf("expected *MisuseError, got %T: %v", r, r)
		}
	}()
	fn()
	return nil
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("requires engine", func(t *testing.T) {
		_, err := Open(ctx, root, ModeReadOnly)
		if !errors.Is(err, ErrEngineRequired) {
			t.Errorf("expected ErrEngineRequired, got %v", err)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		eng := newEngine(t)
		_, err := Open(ctx, "/nowhere", ModeReadOnly, WithEngine(eng), WithLogger(quietLogger))
		if !errors.Is(err, ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
		if got := StatusOf(err); got != engine.StatusFileError {
			t.Errorf("expected StatusFileError, got %v", got)
		}
		if live := eng.Stats().TotalLive(); live != 0 {
			t.Errorf("expected no live handles, got %d", live)
		}
	})

	t.Run("handle limit", func(t *testing.T) {
		eng := newEngine(t, memory.WithHandleLimit(1))
		db := openDB(t, eng, ModeReadOnly)
		defer db.Close()

		_, err := Open(ctx, root, ModeReadOnly, WithEngine(eng), WithLogger(quietLogger))
		if StatusOf(err) != engine.StatusOutOfMemory {
			t.Errorf("expected StatusOutOfMemory, got %v", err)
		}
	})

	t.Run("accessors", func(t *testing.T) {
		eng := newEngine(t)
		db := openDB(t, eng, ModeReadWrite)
		defer db.Close()

		if db.Path() != root {
			t.Errorf("expected path %q, got %q", root, db.Path())
		}
		if db.Version() != memory.Version {
			t.Errorf("expected version %d, got %d", memory.Version, db.Version())
		}
		if db.Mode() != ModeReadWrite {
			t.Errorf("expected read-write, got %v", db.Mode())
		}
		if db.Events() == nil {
			t.Error("expected events")
		}
	})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	db, err := Create(ctx, "/new", WithEngine(eng), WithLogger(quietLogger))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if db.Mode() != ModeReadWrite {
		t.Errorf("expected read-write, got %v", db.Mode())
	}
	q, err := db.CreateQuery("")
	if err != nil {
		t.Fatalf("create query: %v", err)
	}
	if n, err := q.CountMessages(); err != nil || n != 0 {
		t.Errorf("expected empty database, got %d, %v", n, err)
	}
	q.Close()
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = Create(ctx, "/new", WithEngine(eng), WithLogger(quietLogger))
	if StatusOf(err) != engine.StatusFileError {
		t.Errorf("expected StatusFileError for existing database, got %v", err)
	}
}

func TestDatabaseClose(t *testing.T) {
	t.Run("destroys once", func(t *testing.T) {
		eng := newEngine(t)
		db := openDB(t, eng, ModeReadOnly)
		if err := db.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("second close: %v", err)
		}
		if !db.Closed() {
			t.Error("expected closed")
		}
		if got := eng.Stats().Destroyed["database"]; got != 1 {
			t.Errorf("expected 1 destroy, got %d", got)
		}
	})

	t.Run("use after close panics", func(t *testing.T) {
		eng := newEngine(t)
		db := openDB(t, eng, ModeReadOnly)
		db.Close()
		me := expectMisuse(t, func() { db.Path() })
		if me.Kind != kindDatabase {
			t.Errorf("expected kind %q, got %q", kindDatabase, me.Kind)
		}
	})

	t.Run("outstanding borrow panics", func(t *testing.T) {
		eng := newEngine(t)
		db := openDB(t, eng, ModeReadOnly)
		q, err := db.CreateQuery("tag:inbox")
		if err != nil {
			t.Fatalf("create query: %v", err)
		}

		expectMisuse(t, func() { db.Close() })
		if db.Closed() {
			t.Fatal("database destroyed despite borrow")
		}

		q.Close()
		if err := db.Close(); err != nil {
			t.Fatalf("close after release: %v", err)
		}
		stats := eng.Stats()
		if stats.TotalLive() != 0 {
			t.Errorf("expected no live handles, got %v", stats.Live)
		}
	})
}

func TestFindMessage(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	t.Run("found", func(t *testing.T) {
		msg, err := db.FindMessage("<d@x>")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		defer msg.Close()
		if msg.ID() != "d@x" {
			t.Errorf("expected d@x, got %q", msg.ID())
		}
		if msg.Header("x-spam") != "yes" {
			t.Errorf("expected X-Spam header, got %q", msg.Header("x-spam"))
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := db.FindMessage("missing@x")
		if !IsNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAllTags(t *testing.T) {
	eng := newEngine(t)
	db := openDB(t, eng, ModeReadOnly)
	defer db.Close()

	tags, err := db.AllTags()
	if err != nil {
		t.Fatalf("all tags: %v", err)
	}
	defer tags.Close()

	got := tags.Collect()
	slices.Sort(got)
	want := []string{"archived", "inbox", "spam", "unread"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !tags.Exhausted() {
		t.Error("expected exhausted tags")
	}
}
