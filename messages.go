package mailindex

import (
	"fmt"
	"iter"

	"github.com/rbaliyan/mailindex/engine"
)

// Messages is a single-pass iterator over search results. Each Message it
// yields holds a token derived from the Messages' own parent token, so
// messages may outlive the iterator but not its owner.
type Messages struct {
	handle
	cursor
}

func newMessages(env *env, raw engine.Handle, parent *token) *Messages {
	m := &Messages{}
	m.init(env, kindMessages, raw, parent, func(h engine.Handle) error {
		env.eng.MessagesDestroy(h)
		return nil
	})
	return m
}

// Close releases the iterator's own reference.
func (m *Messages) Close() { _ = m.close() }

// Next returns the current message and advances. It returns false once
// the iterator is exhausted and on every call after that. If the engine
// cannot produce the current message, Next returns false and Err reports
// ErrCreationFailed.
func (m *Messages) Next() (*Message, bool) {
	raw := m.ptr("next")
	eng := m.env.eng
	return step(&m.cursor,
		func() bool { return eng.MessagesValid(raw) },
		func() (*Message, error) {
			mh := eng.MessagesGet(raw)
			if mh.IsNil() {
				m.env.logger.Warn("engine returned null message", "messages", uint64(raw))
				return nil, fmt.Errorf("next message: %w", ErrCreationFailed)
			}
			eng.MessagesMoveToNext(raw)
			return newMessage(m.env, mh, m.parent.derive("next")), nil
		})
}

// All returns an iterator over the remaining messages. Messages are not
// closed by the iterator. Check Err after the loop.
func (m *Messages) All() iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		for {
			msg, ok := m.Next()
			if !ok || !yield(msg) {
				return
			}
		}
	}
}

// CollectTags consumes every remaining message and returns the union of
// their tags. Next returns nothing afterwards. The Tags borrow m.
func (m *Messages) CollectTags() (*Tags, error) {
	raw := m.ptr("collect tags")
	tok := m.borrow("collect tags")
	th := m.env.eng.MessagesCollectTags(raw)
	m.exhaust()
	return newTags(m.env, "collect tags", th, tok)
}
