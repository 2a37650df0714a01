package mailindex

import (
	"time"

	"github.com/rbaliyan/mailindex/engine"
)

// Thread is one conversation.
type Thread struct {
	handle
}

func newThread(env *env, raw engine.Handle, parent *token) *Thread {
	t := &Thread{}
	t.init(env, kindThread, raw, parent, func(h engine.Handle) error {
		env.eng.ThreadDestroy(h)
		return nil
	})
	return t
}

// Close releases the thread's own reference.
func (t *Thread) Close() { _ = t.close() }

// ID returns the engine's thread identifier.
func (t *Thread) ID() string {
	return t.env.eng.ThreadID(t.ptr("id"))
}

// Subject returns the subject of the thread's first message.
func (t *Thread) Subject() string {
	return t.env.eng.ThreadSubject(t.ptr("subject"))
}

// Authors returns the senders of the thread as one comma-separated string.
func (t *Thread) Authors() string {
	return t.env.eng.ThreadAuthors(t.ptr("authors"))
}

// TotalMessages returns how many messages the thread holds.
func (t *Thread) TotalMessages() int {
	return t.env.eng.ThreadTotalMessages(t.ptr("total messages"))
}

// MatchedMessages returns how many messages of the thread matched the
// query.
func (t *Thread) MatchedMessages() int {
	return t.env.eng.ThreadMatchedMessages(t.ptr("matched messages"))
}

// OldestDate returns the date of the oldest matched message, or the zero
// time when none carries a date.
func (t *Thread) OldestDate() time.Time {
	return unixTime(t.env.eng.ThreadOldestDate(t.ptr("oldest date")))
}

// NewestDate returns the date of the newest matched message.
func (t *Thread) NewestDate() time.Time {
	return unixTime(t.env.eng.ThreadNewestDate(t.ptr("newest date")))
}

// Messages returns every message of the thread, oldest first. The result
// borrows t.
func (t *Thread) Messages() (*Messages, error) {
	return t.messages("messages", t.env.eng.ThreadMessages)
}

// TopLevelMessages returns the messages that do not reply to another
// message of the thread.
func (t *Thread) TopLevelMessages() (*Messages, error) {
	return t.messages("top level messages", t.env.eng.ThreadTopLevelMessages)
}

func (t *Thread) messages(op string, fn func(engine.Handle) engine.Handle) (*Messages, error) {
	raw := t.ptr(op)
	tok := t.borrow(op)
	mh := fn(raw)
	if err := created("thread "+op, mh, engine.StatusSuccess, tok); err != nil {
		return nil, err
	}
	return newMessages(t.env, mh, tok), nil
}

// Tags returns the union of the tags of every message in the thread.
func (t *Thread) Tags() (*Tags, error) {
	raw := t.ptr("tags")
	tok := t.borrow("tags")
	return newTags(t.env, "thread tags", t.env.eng.ThreadTags(raw), tok)
}
