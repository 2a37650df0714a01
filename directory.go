package mailindex

import (
	"fmt"
	"time"

	"github.com/rbaliyan/mailindex/engine"
)

// Directory is one indexed directory of a database.
type Directory struct {
	handle
}

// DirectoryFrom returns the directory at path on the database held by db.
// The directory takes over db's token.
func DirectoryFrom(db Ref[*Database], path string) (*Directory, error) {
	db.tok.check("directory")
	d := db.value
	raw, status := d.env.eng.DatabaseGetDirectory(d.ptr("directory"), path)
	if status.OK() && raw.IsNil() {
		db.tok.release()
		return nil, fmt.Errorf("directory %q: %w", path, ErrNotFound)
	}
	if err := created("directory", raw, status, db.tok); err != nil {
		return nil, err
	}
	dir := &Directory{}
	dir.init(d.env, kindDirectory, raw, db.tok, func(h engine.Handle) error {
		d.env.eng.DirectoryDestroy(h)
		return nil
	})
	return dir, nil
}

// Close releases the directory's own reference.
func (d *Directory) Close() { _ = d.close() }

// Mtime returns the modification time the engine recorded for the
// directory, or the zero time when it has none.
func (d *Directory) Mtime() time.Time {
	return unixTime(d.env.eng.DirectoryMtime(d.ptr("mtime")))
}

// ChildDirectories lists the subdirectories. It never fails; a leaf
// directory yields an iterator that is immediately exhausted. The result
// borrows d.
func (d *Directory) ChildDirectories() *Filenames {
	raw := d.ptr("child directories")
	tok := d.borrow("child directories")
	return newFilenames(d.env, d.env.eng.DirectoryChildDirectories(raw), tok)
}

// ChildFiles lists the files directly in the directory.
func (d *Directory) ChildFiles() *Filenames {
	raw := d.ptr("child files")
	tok := d.borrow("child files")
	return newFilenames(d.env, d.env.eng.DirectoryChildFiles(raw), tok)
}
