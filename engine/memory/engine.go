// Package memory provides an in-process implementation of engine.Engine.
//
// Handles index a table that records each resource's kind and parent.
// Contract violations that a native engine would leave undefined (double
// destroy, destroying a parent before its children, using a destroyed
// handle) panic with a diagnostic instead.
//
// Databases are backed by index.Index values resolved through an Opener.
// Searches snapshot their results, so cursors are unaffected by later
// index writes.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/index"
)

// Compile-time check
var _ engine.Engine = (*Engine)(nil)

// Engine implements engine.Engine.
// Thread-safe for concurrent use; index calls run without holding the
// table lock.
type Engine struct {
	opts   *options
	logger *slog.Logger

	mu        sync.Mutex
	next      engine.Handle
	objects   map[engine.Handle]*object
	destroyed [numKinds]int
}

// New creates an engine.
func New(opts ...Option) *Engine {
	o := newOptions(opts...)
	return &Engine{
		opts:    o,
		logger:  o.logger,
		objects: make(map[engine.Handle]*object),
	}
}

type database struct {
	path string
	mode engine.DatabaseMode
	idx  index.Index
}

func (e *Engine) indexContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.opts.timeout)
}

func (e *Engine) database(h engine.Handle) *database {
	return e.lookup(h, kindDatabase).value.(*database)
}

// DatabaseCreate implements engine.DatabaseEngine.
func (e *Engine) DatabaseCreate(path string) (engine.Handle, engine.Status) {
	ctx, cancel := e.indexContext()
	defer cancel()

	idx, err := e.opts.opener.Create(ctx, path)
	if err != nil {
		e.logger.Warn("create database failed", "path", path, "error", err)
		return engine.Nil, statusOf(err)
	}
	return e.openDatabase(path, engine.ModeReadWrite, idx)
}

// DatabaseOpen implements engine.DatabaseEngine.
func (e *Engine) DatabaseOpen(path string, mode engine.DatabaseMode) (engine.Handle, engine.Status) {
	ctx, cancel := e.indexContext()
	defer cancel()

	idx, err := e.opts.opener.Open(ctx, path)
	if err != nil {
		e.logger.Warn("open database failed", "path", path, "error", err)
		return engine.Nil, statusOf(err)
	}
	return e.openDatabase(path, mode, idx)
}

func (e *Engine) openDatabase(path string, mode engine.DatabaseMode, idx index.Index) (engine.Handle, engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.alloc(kindDatabase, engine.Nil, &database{path: filepath.Clean(path), mode: mode, idx: idx})
	if h == engine.Nil {
		return engine.Nil, engine.StatusOutOfMemory
	}
	return h, engine.StatusSuccess
}

func statusOf(err error) engine.Status {
	switch {
	case errors.Is(err, ErrDatabaseExists), errors.Is(err, ErrNoDatabase):
		return engine.StatusFileError
	default:
		return engine.StatusIndexException
	}
}

// DatabaseDestroy implements engine.DatabaseEngine.
func (e *Engine) DatabaseDestroy(db engine.Handle) engine.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(db, kindDatabase)
	return engine.StatusSuccess
}

// DatabasePath implements engine.DatabaseEngine.
func (e *Engine) DatabasePath(db engine.Handle) string {
	return e.database(db).path
}

// DatabaseVersion implements engine.DatabaseEngine.
func (e *Engine) DatabaseVersion(db engine.Handle) uint {
	e.database(db)
	return Version
}

// DatabaseGetDirectory implements engine.DatabaseEngine. path may be
// absolute (under the database root) or relative to it.
func (e *Engine) DatabaseGetDirectory(db engine.Handle, path string) (engine.Handle, engine.Status) {
	d := e.database(db)

	rel, ok := relative(d.path, path)
	if !ok {
		return engine.Nil, engine.StatusFileError
	}

	ctx, cancel := e.indexContext()
	defer cancel()

	names, err := d.idx.Filenames(ctx)
	if err != nil {
		e.logger.Warn("list filenames failed", "path", d.path, "error", err)
		return engine.Nil, engine.StatusIndexException
	}
	listing := index.List(names, rel)
	if !listing.Exists && d.mode == engine.ModeReadOnly {
		return engine.Nil, engine.StatusSuccess
	}

	var mtime int64
	if listing.Exists {
		q := index.PathQuery(rel)
		docs, err := d.idx.Find(ctx, q)
		if err != nil {
			e.logger.Warn("find directory documents failed", "path", rel, "error", err)
			return engine.Nil, engine.StatusIndexException
		}
		for _, doc := range index.Filter(q, docs) {
			if t := unixDate(doc.Date); t > mtime {
				mtime = t
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.alloc(kindDirectory, db, &directory{listing: listing, mtime: mtime})
	if h == engine.Nil {
		return engine.Nil, engine.StatusOutOfMemory
	}
	return h, engine.StatusSuccess
}

// relative maps path to a slash-separated path relative to root.
func relative(root, path string) (string, bool) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// DatabaseFindMessage implements engine.DatabaseEngine.
func (e *Engine) DatabaseFindMessage(db engine.Handle, messageID string) (engine.Handle, engine.Status) {
	d := e.database(db)

	ctx, cancel := e.indexContext()
	defer cancel()

	doc, err := d.idx.Get(ctx, strings.Trim(messageID, "<>"))
	if index.IsNotFound(err) || errors.Is(err, index.ErrInvalidID) {
		return engine.Nil, engine.StatusSuccess
	}
	if err != nil {
		e.logger.Warn("find message failed", "id", messageID, "error", err)
		return engine.Nil, engine.StatusIndexException
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.alloc(kindMessage, db, &message{db: d, doc: doc})
	if h == engine.Nil {
		return engine.Nil, engine.StatusOutOfMemory
	}
	return h, engine.StatusSuccess
}

// DatabaseAllTags implements engine.DatabaseEngine.
func (e *Engine) DatabaseAllTags(db engine.Handle) engine.Handle {
	d := e.database(db)

	ctx, cancel := e.indexContext()
	defer cancel()

	docs, err := d.idx.Find(ctx, index.PathQuery(""))
	if err != nil {
		e.logger.Warn("list tags failed", "path", d.path, "error", err)
		return engine.Nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alloc(kindTags, db, &cursor[string]{items: tagUnion(docs)})
}

// tagUnion returns the sorted, duplicate-free tags of docs.
func tagUnion(docs []index.Document) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range docs {
		for _, t := range d.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}
