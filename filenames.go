package mailindex

import (
	"iter"

	"github.com/rbaliyan/mailindex/engine"
)

// Filenames is a single-pass iterator over paths.
type Filenames struct {
	handle
	cursor
}

// newFilenames never fails. When the engine returns the null handle the
// parent token is released at once and the iterator starts exhausted.
func newFilenames(env *env, raw engine.Handle, parent *token) *Filenames {
	f := &Filenames{}
	if raw.IsNil() {
		env.logger.Warn("engine returned null filenames, treating as empty")
		parent.release()
		f.init(env, kindFilenames, engine.Nil, nil, nil)
		f.exhaust()
		return f
	}
	f.init(env, kindFilenames, raw, parent, func(h engine.Handle) error {
		env.eng.FilenamesDestroy(h)
		return nil
	})
	return f
}

// Close releases the iterator's own reference.
func (f *Filenames) Close() { _ = f.close() }

// Next returns the current path and advances.
func (f *Filenames) Next() (string, bool) {
	raw := f.ptr("next")
	if raw.IsNil() {
		return "", false
	}
	eng := f.env.eng
	return step(&f.cursor,
		func() bool { return eng.FilenamesValid(raw) },
		func() (string, error) {
			name := eng.FilenamesGet(raw)
			eng.FilenamesMoveToNext(raw)
			return name, nil
		})
}

// All returns an iterator over the remaining paths.
func (f *Filenames) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			name, ok := f.Next()
			if !ok || !yield(name) {
				return
			}
		}
	}
}
