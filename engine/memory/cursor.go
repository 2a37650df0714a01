package memory

import (
	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/index"
)

// cursor is a single-pass position over a snapshot.
type cursor[T any] struct {
	items []T
	pos   int
}

func (c *cursor[T]) valid() bool { return c.pos < len(c.items) }

func (c *cursor[T]) current() (T, bool) {
	if !c.valid() {
		var zero T
		return zero, false
	}
	return c.items[c.pos], true
}

func (c *cursor[T]) advance() {
	if c.valid() {
		c.pos++
	}
}

// rest returns the unvisited items and moves past the end.
func (c *cursor[T]) rest() []T {
	out := c.items[c.pos:]
	c.pos = len(c.items)
	return out
}

type messages struct {
	cursor[index.Document]
	db *database
}

type threads struct {
	cursor[*threadData]
	db *database
}

func (e *Engine) messages(h engine.Handle) *messages {
	return e.get(h, kindMessages).value.(*messages)
}

func (e *Engine) threads(h engine.Handle) *threads {
	return e.get(h, kindThreads).value.(*threads)
}

func (e *Engine) stringCursor(h engine.Handle, k kind) *cursor[string] {
	return e.get(h, k).value.(*cursor[string])
}

// MessagesValid implements engine.MessagesEngine.
func (e *Engine) MessagesValid(m engine.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messages(m).valid()
}

// MessagesGet implements engine.MessagesEngine. The message is a child
// of the cursor's parent so it can outlive the cursor.
func (e *Engine) MessagesGet(m engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj := e.get(m, kindMessages)
	ms := obj.value.(*messages)
	doc, ok := ms.current()
	if !ok {
		return engine.Nil
	}
	return e.alloc(kindMessage, obj.parent, &message{db: ms.db, doc: doc.Clone()})
}

// MessagesMoveToNext implements engine.MessagesEngine.
func (e *Engine) MessagesMoveToNext(m engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages(m).advance()
}

// MessagesCollectTags implements engine.MessagesEngine.
func (e *Engine) MessagesCollectTags(m engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	tags := tagUnion(e.messages(m).rest())
	return e.alloc(kindTags, m, &cursor[string]{items: tags})
}

// MessagesDestroy implements engine.MessagesEngine.
func (e *Engine) MessagesDestroy(m engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(m, kindMessages)
}

// ThreadsValid implements engine.ThreadsEngine.
func (e *Engine) ThreadsValid(t engine.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threads(t).valid()
}

// ThreadsGet implements engine.ThreadsEngine.
func (e *Engine) ThreadsGet(t engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj := e.get(t, kindThreads)
	ts := obj.value.(*threads)
	td, ok := ts.current()
	if !ok {
		return engine.Nil
	}
	return e.alloc(kindThread, obj.parent, &thread{db: ts.db, data: td})
}

// ThreadsMoveToNext implements engine.ThreadsEngine.
func (e *Engine) ThreadsMoveToNext(t engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threads(t).advance()
}

// ThreadsDestroy implements engine.ThreadsEngine.
func (e *Engine) ThreadsDestroy(t engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(t, kindThreads)
}

// TagsValid implements engine.TagsEngine.
func (e *Engine) TagsValid(t engine.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stringCursor(t, kindTags).valid()
}

// TagsGet implements engine.TagsEngine. It returns "" past the end.
func (e *Engine) TagsGet(t engine.Handle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _ := e.stringCursor(t, kindTags).current()
	return s
}

// TagsMoveToNext implements engine.TagsEngine.
func (e *Engine) TagsMoveToNext(t engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stringCursor(t, kindTags).advance()
}

// TagsDestroy implements engine.TagsEngine.
func (e *Engine) TagsDestroy(t engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(t, kindTags)
}

// FilenamesValid implements engine.FilenamesEngine.
func (e *Engine) FilenamesValid(f engine.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stringCursor(f, kindFilenames).valid()
}

// FilenamesGet implements engine.FilenamesEngine. It returns "" past the end.
func (e *Engine) FilenamesGet(f engine.Handle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _ := e.stringCursor(f, kindFilenames).current()
	return s
}

// FilenamesMoveToNext implements engine.FilenamesEngine.
func (e *Engine) FilenamesMoveToNext(f engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stringCursor(f, kindFilenames).advance()
}

// FilenamesDestroy implements engine.FilenamesEngine.
func (e *Engine) FilenamesDestroy(f engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(f, kindFilenames)
}
