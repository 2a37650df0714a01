package mailindex

import (
	"fmt"
	"iter"

	"github.com/rbaliyan/mailindex/engine"
)

// Threads is a single-pass iterator over the threads matching a query.
type Threads struct {
	handle
	cursor
}

func newThreads(env *env, raw engine.Handle, parent *token) *Threads {
	t := &Threads{}
	t.init(env, kindThreads, raw, parent, func(h engine.Handle) error {
		env.eng.ThreadsDestroy(h)
		return nil
	})
	return t
}

// Close releases the iterator's own reference.
func (t *Threads) Close() { _ = t.close() }

// Next returns the current thread and advances. Like messages, threads
// hold a token derived from the iterator's parent token. A thread the
// engine cannot produce ends iteration with Err set.
func (t *Threads) Next() (*Thread, bool) {
	raw := t.ptr("next")
	eng := t.env.eng
	return step(&t.cursor,
		func() bool { return eng.ThreadsValid(raw) },
		func() (*Thread, error) {
			th := eng.ThreadsGet(raw)
			if th.IsNil() {
				t.env.logger.Warn("engine returned null thread", "threads", uint64(raw))
				return nil, fmt.Errorf("next thread: %w", ErrCreationFailed)
			}
			eng.ThreadsMoveToNext(raw)
			return newThread(t.env, th, t.parent.derive("next")), nil
		})
}

// All returns an iterator over the remaining threads. Check Err after the
// loop.
func (t *Threads) All() iter.Seq[*Thread] {
	return func(yield func(*Thread) bool) {
		for {
			th, ok := t.Next()
			if !ok || !yield(th) {
				return
			}
		}
	}
}
