package memory

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/index"
)

type message struct {
	db  *database
	doc index.Document
}

func (e *Engine) message(h engine.Handle) *message {
	return e.lookup(h, kindMessage).value.(*message)
}

// MessageID implements engine.MessageEngine.
func (e *Engine) MessageID(m engine.Handle) string {
	return e.message(m).doc.ID
}

// MessageThreadID implements engine.MessageEngine.
func (e *Engine) MessageThreadID(m engine.Handle) string {
	return threadKey(e.message(m).doc)
}

// MessageFilename implements engine.MessageEngine. It returns the first
// file of the message as an absolute path.
func (e *Engine) MessageFilename(m engine.Handle) string {
	msg := e.message(m)
	if len(msg.doc.Filenames) == 0 {
		return ""
	}
	return filepath.Join(msg.db.path, filepath.FromSlash(msg.doc.Filenames[0]))
}

// MessageFilenames implements engine.MessageEngine.
func (e *Engine) MessageFilenames(m engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg := e.get(m, kindMessage).value.(*message)
	names := make([]string, len(msg.doc.Filenames))
	for i, f := range msg.doc.Filenames {
		names[i] = filepath.Join(msg.db.path, filepath.FromSlash(f))
	}
	return e.alloc(kindFilenames, m, &cursor[string]{items: names})
}

// MessageDate implements engine.MessageEngine.
func (e *Engine) MessageDate(m engine.Handle) int64 {
	return unixDate(e.message(m).doc.Date)
}

// unixDate reports a missing date as 0.
func unixDate(d time.Time) int64 {
	if d.IsZero() {
		return 0
	}
	return d.Unix()
}

// MessageHeader implements engine.MessageEngine. Names are
// case-insensitive; a missing header is "".
func (e *Engine) MessageHeader(m engine.Handle, name string) string {
	doc := e.message(m).doc
	switch strings.ToLower(name) {
	case "from":
		return doc.From
	case "to":
		return doc.To
	case "subject":
		return doc.Subject
	case "message-id":
		return "<" + doc.ID + ">"
	case "in-reply-to":
		if doc.InReplyTo == "" {
			return ""
		}
		return "<" + doc.InReplyTo + ">"
	}
	for k, v := range doc.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// MessageTags implements engine.MessageEngine.
func (e *Engine) MessageTags(m engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg := e.get(m, kindMessage).value.(*message)
	return e.alloc(kindTags, m, &cursor[string]{items: tagUnion([]index.Document{msg.doc})})
}

// MessageAddTag implements engine.MessageEngine.
func (e *Engine) MessageAddTag(m engine.Handle, tag string) engine.Status {
	return e.mutateTag(m, tag, true)
}

// MessageRemoveTag implements engine.MessageEngine.
func (e *Engine) MessageRemoveTag(m engine.Handle, tag string) engine.Status {
	return e.mutateTag(m, tag, false)
}

func (e *Engine) mutateTag(m engine.Handle, tag string, add bool) engine.Status {
	if tag == "" {
		return engine.StatusNullPointer
	}
	if len(tag) > MaxTagLength {
		return engine.StatusTagTooLong
	}

	msg := e.message(m)
	id := msg.doc.ID
	if msg.db.mode == engine.ModeReadOnly {
		return engine.StatusReadOnlyDatabase
	}

	ctx, cancel := e.indexContext()
	defer cancel()

	var err error
	if add {
		err = msg.db.idx.AddTag(ctx, id, tag)
	} else {
		err = msg.db.idx.RemoveTag(ctx, id, tag)
	}
	if err != nil {
		e.logger.Warn("tag update failed", "id", id, "tag", tag, "error", err)
		return engine.StatusIndexException
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	msg = e.get(m, kindMessage).value.(*message)
	if add {
		if !msg.doc.HasTag(tag) {
			msg.doc.Tags = append(msg.doc.Tags, tag)
		}
	} else {
		msg.doc.Tags = removeTag(msg.doc.Tags, tag)
	}
	return engine.StatusSuccess
}

func removeTag(tags []string, tag string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}

// MessageDestroy implements engine.MessageEngine.
func (e *Engine) MessageDestroy(m engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(m, kindMessage)
}
