package memory

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/rbaliyan/mailindex/index"
	indexmem "github.com/rbaliyan/mailindex/index/memory"
)

// Sentinel errors for database resolution.
var (
	// ErrDatabaseExists is returned when creating a database at a path
	// that already has one.
	ErrDatabaseExists = errors.New("memory: database already exists")

	// ErrNoDatabase is returned when opening a path without a database.
	ErrNoDatabase = errors.New("memory: no database at path")
)

// Opener resolves database paths to indexes.
type Opener interface {
	// Open returns the index of an existing database.
	Open(ctx context.Context, path string) (index.Index, error)
	// Create makes a new, empty database.
	Create(ctx context.Context, path string) (index.Index, error)
}

// Registry is the default Opener: a set of indexes keyed by cleaned path.
// Create makes in-memory indexes.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]index.Index
}

// Compile-time check
var _ Opener = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]index.Index)}
}

// Register associates idx with path, replacing any previous index.
func (r *Registry) Register(path string, idx index.Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[filepath.Clean(path)] = idx
}

// Open implements Opener.
func (r *Registry) Open(_ context.Context, path string) (index.Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[filepath.Clean(path)]
	if !ok {
		return nil, ErrNoDatabase
	}
	return idx, nil
}

// Create implements Opener.
func (r *Registry) Create(_ context.Context, path string) (index.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := filepath.Clean(path)
	if _, ok := r.indexes[key]; ok {
		return nil, ErrDatabaseExists
	}
	idx := indexmem.New()
	r.indexes[key] = idx
	return idx, nil
}
