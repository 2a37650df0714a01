package mailindex

import (
	"context"
	"time"

	"github.com/rbaliyan/mailindex/engine"
	"go.opentelemetry.io/otel/attribute"
)

// Message is the metadata of one email.
type Message struct {
	handle
}

func newMessage(env *env, raw engine.Handle, parent *token) *Message {
	m := &Message{}
	m.init(env, kindMessage, raw, parent, func(h engine.Handle) error {
		env.eng.MessageDestroy(h)
		return nil
	})
	return m
}

// Close releases the message's own reference.
func (m *Message) Close() { _ = m.close() }

// ID returns the Message-ID without angle brackets.
func (m *Message) ID() string {
	return m.env.eng.MessageID(m.ptr("id"))
}

// ThreadID returns the id of the thread the message belongs to.
func (m *Message) ThreadID() string {
	return m.env.eng.MessageThreadID(m.ptr("thread id"))
}

// Filename returns the path of the first file holding the message.
func (m *Message) Filename() string {
	return m.env.eng.MessageFilename(m.ptr("filename"))
}

// Filenames returns every file holding the message. The result borrows m.
func (m *Message) Filenames() *Filenames {
	raw := m.ptr("filenames")
	tok := m.borrow("filenames")
	return newFilenames(m.env, m.env.eng.MessageFilenames(raw), tok)
}

// Date returns the message date, or the zero time when it has none.
func (m *Message) Date() time.Time {
	return unixTime(m.env.eng.MessageDate(m.ptr("date")))
}

// unixTime converts an engine timestamp. The engine reports 0 for a
// missing date.
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// Header returns the named header, or "" when absent.
func (m *Message) Header(name string) string {
	return m.env.eng.MessageHeader(m.ptr("header"), name)
}

// Tags returns the tags of the message. The result borrows m.
func (m *Message) Tags() (*Tags, error) {
	raw := m.ptr("tags")
	tok := m.borrow("tags")
	return newTags(m.env, "message tags", m.env.eng.MessageTags(raw), tok)
}

// AddTag adds tag to the message and publishes a TagAdded event.
func (m *Message) AddTag(ctx context.Context, tag string) error {
	return m.mutateTag(ctx, "add", tag)
}

// RemoveTag removes tag from the message and publishes a TagRemoved event.
func (m *Message) RemoveTag(ctx context.Context, tag string) error {
	return m.mutateTag(ctx, "remove", tag)
}

func (m *Message) mutateTag(ctx context.Context, operation, tag string) (err error) {
	raw := m.ptr(operation + " tag")
	eng := m.env.eng
	id := eng.MessageID(raw)

	start := time.Now()
	ctx, endSpan := m.env.otel.startSpan(ctx, "mailindex.tag."+operation,
		attribute.String("message_id", id),
		attribute.String("tag", tag),
	)
	defer func() {
		endSpan(err)
		m.env.otel.recordTag(ctx, time.Since(start), operation, err)
	}()

	var status engine.Status
	if operation == "add" {
		status = eng.MessageAddTag(raw, tag)
	} else {
		status = eng.MessageRemoveTag(raw, tag)
	}
	if !status.OK() {
		return &OperationError{Op: operation + " tag", Status: status}
	}

	payload := TagEvent{
		MessageID: id,
		ThreadID:  eng.MessageThreadID(raw),
		Tag:       tag,
		Database:  m.env.path,
		At:        time.Now().UTC(),
	}
	if m.env.events == nil {
		return nil
	}
	if operation == "add" {
		return m.env.publishTag(ctx, "TagAdded", m.env.events.TagAdded, payload)
	}
	return m.env.publishTag(ctx, "TagRemoved", m.env.events.TagRemoved, payload)
}
