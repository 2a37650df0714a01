package memory

import (
	"slices"

	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/index"
)

type directory struct {
	listing index.Listing
	mtime   int64
}

func (e *Engine) directory(h engine.Handle) *directory {
	return e.get(h, kindDirectory).value.(*directory)
}

// DirectoryMtime implements engine.DirectoryEngine. It is the newest date
// of any message stored at or below the directory.
func (e *Engine) DirectoryMtime(d engine.Handle) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.directory(d).mtime
}

// DirectoryChildDirectories implements engine.DirectoryEngine.
func (e *Engine) DirectoryChildDirectories(d engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := slices.Clone(e.directory(d).listing.Directories)
	return e.alloc(kindFilenames, d, &cursor[string]{items: names})
}

// DirectoryChildFiles implements engine.DirectoryEngine.
func (e *Engine) DirectoryChildFiles(d engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := slices.Clone(e.directory(d).listing.Files)
	return e.alloc(kindFilenames, d, &cursor[string]{items: names})
}

// DirectoryDestroy implements engine.DirectoryEngine.
func (e *Engine) DirectoryDestroy(d engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(d, kindDirectory)
}
