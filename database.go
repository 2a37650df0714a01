package mailindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/mailindex/engine"
	"go.opentelemetry.io/otel/attribute"
)

// DatabaseMode selects how a database is opened.
type DatabaseMode = engine.DatabaseMode

const (
	ModeReadOnly  = engine.ModeReadOnly
	ModeReadWrite = engine.ModeReadWrite
)

// Sort is the result order of a query.
type Sort = engine.Sort

const (
	SortOldestFirst = engine.SortOldestFirst
	SortNewestFirst = engine.SortNewestFirst
	SortMessageID   = engine.SortMessageID
	SortUnsorted    = engine.SortUnsorted
)

// env is shared by a database and every resource created from it.
type env struct {
	eng    engine.Engine
	path   string
	logger *slog.Logger
	otel   *otelInstrumentation
	opts   *options
	bus    *event.Bus
	events *DatabaseEvents
}

// Database is an open mail index. It is the root of every ownership
// chain: all other resources hold a token on it, directly or through
// their parents, and must be released before it closes.
type Database struct {
	handle
	path string
	mode DatabaseMode
}

// Open opens the existing database at path.
func Open(ctx context.Context, path string, mode DatabaseMode, opts ...Option) (*Database, error) {
	return open(ctx, "open", path, mode, opts, func(eng engine.Engine) (engine.Handle, engine.Status) {
		return eng.DatabaseOpen(path, mode)
	})
}

// Create creates a new database at path and opens it read-write.
func Create(ctx context.Context, path string, opts ...Option) (*Database, error) {
	return open(ctx, "create", path, ModeReadWrite, opts, func(eng engine.Engine) (engine.Handle, engine.Status) {
		return eng.DatabaseCreate(path)
	})
}

func open(ctx context.Context, op, path string, mode DatabaseMode, opts []Option, fn func(engine.Engine) (engine.Handle, engine.Status)) (db *Database, err error) {
	o := newOptions(opts...)
	if o.engine == nil {
		return nil, ErrEngineRequired
	}
	instr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	ctx, endSpan := instr.startSpan(ctx, "mailindex."+op,
		attribute.String("path", path),
		attribute.String("mode", mode.String()),
	)
	defer func() { endSpan(err) }()

	raw, status := fn(o.engine)
	if err := created(op+" database", raw, status, nil); err != nil {
		return nil, err
	}

	e := &env{eng: o.engine, path: path, logger: o.logger, otel: instr, opts: o}
	if err := e.initEventBus(ctx); err != nil {
		o.engine.DatabaseDestroy(raw)
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	db = &Database{path: path, mode: mode}
	db.init(e, kindDatabase, raw, nil, db.destroyDatabase)
	e.logger.Info("database opened", "path", path, "mode", mode)
	return db, nil
}

func (db *Database) destroyDatabase(raw engine.Handle) error {
	var errs []error
	if status := db.env.eng.DatabaseDestroy(raw); !status.OK() {
		db.env.logger.Warn("database close reported failure", "path", db.path, "status", status)
		errs = append(errs, &OperationError{Op: "close database", Status: status})
	}
	if err := db.env.closeEventBus(context.Background()); err != nil {
		errs = append(errs, err)
	}
	db.env.logger.Info("database closed", "path", db.path)
	return errors.Join(errs...)
}

// Close releases the database's own reference. The engine database is
// destroyed once no Shared Ref remains; closing with outstanding borrows
// panics with *MisuseError. Closing twice is a no-op.
func (db *Database) Close() error {
	return db.close()
}

// Borrow returns a Borrowed Ref. The database cannot be destroyed until
// it is released.
func (db *Database) Borrow() Ref[*Database] { return borrowRef(db) }

// Share returns a Shared Ref that keeps the database open until released.
func (db *Database) Share() Ref[*Database] { return shareRef(db) }

// Path returns the root directory of the database as the engine reports it.
func (db *Database) Path() string {
	return db.env.eng.DatabasePath(db.ptr("path"))
}

// Mode returns the mode the database was opened with.
func (db *Database) Mode() DatabaseMode { return db.mode }

// Version returns the engine's database format version.
func (db *Database) Version() uint {
	return db.env.eng.DatabaseVersion(db.ptr("version"))
}

// Events returns the tag events of this database.
func (db *Database) Events() *DatabaseEvents { return db.env.events }

// CreateQuery creates a query that borrows the database.
func (db *Database) CreateQuery(s string) (*Query, error) {
	return CreateQuery(db.Borrow(), s)
}

// FindMessage looks up a message by its Message-ID, with or without angle
// brackets. A missing message returns ErrNotFound.
func (db *Database) FindMessage(id string) (*Message, error) {
	tok := db.borrow("find message")
	raw, status := db.env.eng.DatabaseFindMessage(db.ptr("find message"), id)
	if status.OK() && raw.IsNil() {
		tok.release()
		return nil, fmt.Errorf("find message %q: %w", id, ErrNotFound)
	}
	if err := created("find message", raw, status, tok); err != nil {
		return nil, err
	}
	return newMessage(db.env, raw, tok), nil
}

// AllTags returns every tag used in the database.
func (db *Database) AllTags() (*Tags, error) {
	tok := db.borrow("all tags")
	raw := db.env.eng.DatabaseAllTags(db.ptr("all tags"))
	return newTags(db.env, "all tags", raw, tok)
}

// Directory returns the indexed directory at path, which may be absolute
// or relative to the database root. A directory that is not indexed
// returns ErrNotFound.
func (db *Database) Directory(path string) (*Directory, error) {
	return DirectoryFrom(db.Borrow(), path)
}
