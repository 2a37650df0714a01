package mailindex

import (
	"fmt"
	"sync/atomic"

	"github.com/rbaliyan/mailindex/engine"
)

// Resource kinds, used in logs, metrics and MisuseError.
const (
	kindDatabase  = "database"
	kindQuery     = "query"
	kindMessages  = "messages"
	kindMessage   = "message"
	kindTags      = "tags"
	kindThreads   = "threads"
	kindThread    = "thread"
	kindDirectory = "directory"
	kindFilenames = "filenames"
)

// States of a resource's own reference.
const (
	selfHeld int32 = iota
	selfReleased
	selfMoved
)

// handle is embedded by every resource. It owns exactly one engine handle
// and one token on its parent.
//
// refs counts the resource's own reference plus every Shared and
// Exclusive token; the engine handle is destroyed when it drops to zero.
// borrows counts outstanding Borrowed tokens, which must all be released
// before that happens.
type handle struct {
	env     *env
	kind    string
	raw     engine.Handle
	parent  *token
	destroy func(engine.Handle) error

	refs      atomic.Int32
	borrows   atomic.Int32
	self      atomic.Int32
	destroyed atomic.Bool
}

func (h *handle) base() *handle { return h }

// init takes ownership of raw and of the parent token.
func (h *handle) init(env *env, kind string, raw engine.Handle, parent *token, destroy func(engine.Handle) error) {
	h.env = env
	h.kind = kind
	h.raw = raw
	h.parent = parent
	h.destroy = destroy
	h.refs.Store(1)
	env.logger.Debug("handle created", "kind", kind, "handle", uint64(raw))
	env.otel.recordHandle(kind, true)
}

// created checks the result of an engine constructor. On failure the
// parent token is released before the error is returned.
func created(op string, raw engine.Handle, status engine.Status, parent *token) error {
	var err error
	switch {
	case !status.OK():
		err = &OperationError{Op: op, Status: status}
	case raw.IsNil():
		err = fmt.Errorf("%s: %w", op, ErrCreationFailed)
	}
	if err != nil && parent != nil {
		parent.release()
	}
	return err
}

// ptr returns the engine handle of a live resource.
func (h *handle) ptr(op string) engine.Handle {
	if h.destroyed.Load() {
		panic(misuse(h.kind, op, "use after destroy"))
	}
	return h.raw
}

// Closed reports whether the engine handle has been destroyed.
func (h *handle) Closed() bool {
	return h.destroyed.Load()
}

func (h *handle) share(op string) *token {
	for {
		n := h.refs.Load()
		if n <= 0 || h.destroyed.Load() {
			panic(misuse(h.kind, op, "share of destroyed resource"))
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return &token{h: h, mode: Shared}
		}
	}
}

func (h *handle) borrow(op string) *token {
	h.ptr(op)
	h.borrows.Add(1)
	return &token{h: h, mode: Borrowed}
}

// own moves the resource's own reference into an Exclusive token.
func (h *handle) own() *token {
	h.ptr("own")
	if !h.self.CompareAndSwap(selfHeld, selfMoved) {
		if h.self.Load() == selfMoved {
			panic(misuse(h.kind, "own", "resource is already owned by a Ref"))
		}
		panic(misuse(h.kind, "own", "resource is already closed"))
	}
	return &token{h: h, mode: Exclusive}
}

// close drops the resource's own reference. A second close is a no-op;
// closing a resource whose reference was moved by Own panics.
func (h *handle) close() (err error) {
	if !h.self.CompareAndSwap(selfHeld, selfReleased) {
		if h.self.Load() == selfMoved {
			panic(misuse(h.kind, "close", "resource is owned by a Ref, release the Ref instead"))
		}
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			h.self.Store(selfHeld)
			panic(r)
		}
	}()
	return h.unref("close")
}

func (h *handle) unref(op string) error {
	for {
		n := h.refs.Load()
		if n <= 0 {
			panic(misuse(h.kind, op, "resource already destroyed"))
		}
		if n == 1 {
			if b := h.borrows.Load(); b > 0 {
				panic(misuse(h.kind, op, fmt.Sprintf("destroy with %d outstanding borrows", b)))
			}
		}
		if h.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				return h.teardown()
			}
			return nil
		}
	}
}

// teardown destroys the engine handle, then releases the parent token.
func (h *handle) teardown() error {
	h.destroyed.Store(true)
	var err error
	if h.destroy != nil && !h.raw.IsNil() {
		err = h.destroy(h.raw)
	}
	h.env.logger.Debug("handle destroyed", "kind", h.kind, "handle", uint64(h.raw))
	h.env.otel.recordHandle(h.kind, false)
	if h.parent != nil {
		h.parent.release()
	}
	return err
}
