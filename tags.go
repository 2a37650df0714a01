package mailindex

import (
	"iter"

	"github.com/rbaliyan/mailindex/engine"
)

// Tags is a single-pass iterator over a set of tags. Order is the
// engine's.
type Tags struct {
	handle
	cursor
}

func newTags(env *env, op string, raw engine.Handle, parent *token) (*Tags, error) {
	if err := created(op, raw, engine.StatusSuccess, parent); err != nil {
		return nil, err
	}
	t := &Tags{}
	t.init(env, kindTags, raw, parent, func(h engine.Handle) error {
		env.eng.TagsDestroy(h)
		return nil
	})
	return t, nil
}

// Close releases the iterator's own reference.
func (t *Tags) Close() { _ = t.close() }

// Next returns the current tag and advances.
func (t *Tags) Next() (string, bool) {
	raw := t.ptr("next")
	eng := t.env.eng
	return step(&t.cursor,
		func() bool { return eng.TagsValid(raw) },
		func() (string, error) {
			tag := eng.TagsGet(raw)
			eng.TagsMoveToNext(raw)
			return tag, nil
		})
}

// All returns an iterator over the remaining tags.
func (t *Tags) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			tag, ok := t.Next()
			if !ok || !yield(tag) {
				return
			}
		}
	}
}

// Collect drains the iterator into a slice.
func (t *Tags) Collect() []string {
	var out []string
	for tag := range t.All() {
		out = append(out, tag)
	}
	return out
}
