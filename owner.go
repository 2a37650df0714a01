package mailindex

import "sync/atomic"

// Mode is how a token holds its resource.
type Mode int

const (
	// Exclusive tokens hold the resource's only reference. Releasing the
	// token destroys the resource.
	Exclusive Mode = iota
	// Shared tokens are reference counted. The resource is destroyed when
	// the last shared token and its own reference are released.
	Shared
	// Borrowed tokens carry no destruction responsibility. The resource
	// cannot be destroyed while any borrow is outstanding.
	Borrowed
)

func (m Mode) String() string {
	switch m {
	case Exclusive:
		return "exclusive"
	case Shared:
		return "shared"
	case Borrowed:
		return "borrowed"
	default:
		return "unknown"
	}
}

type resource interface {
	base() *handle
}

// token is one hold on a resource. It is released exactly once.
type token struct {
	h        *handle
	mode     Mode
	released atomic.Bool
}

func (t *token) check(op string) {
	if t == nil {
		panic(misuse("ref", op, "zero Ref"))
	}
	if t.released.Load() {
		panic(misuse(t.h.kind, op, "token already released"))
	}
	t.h.ptr(op)
}

func (t *token) release() {
	if t == nil {
		panic(misuse("ref", "release", "zero Ref"))
	}
	if !t.released.CompareAndSwap(false, true) {
		panic(misuse(t.h.kind, "release", "token released twice"))
	}
	if t.mode == Borrowed {
		t.h.borrows.Add(-1)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.released.Store(false)
			panic(r)
		}
	}()
	if err := t.h.unref("release"); err != nil {
		t.h.env.logger.Warn("teardown on release failed", "kind", t.h.kind, "error", err)
	}
}

// derive returns a new token on the same resource for a child that
// outlives the call creating it. Exclusive is promoted to Shared so the
// child co-owns rather than steals.
func (t *token) derive(op string) *token {
	t.check(op)
	if t.mode == Borrowed {
		return t.h.borrow(op)
	}
	return t.h.share(op)
}

// Ref pairs a resource with one ownership token. Refs are values; copying
// one does not create a new token, and each token is released once.
type Ref[T resource] struct {
	value T
	tok   *token
}

// Value returns the referenced resource. It panics if the Ref was
// released or its resource destroyed.
func (r Ref[T]) Value() T {
	r.tok.check("value")
	return r.value
}

// Mode returns the ownership mode of the Ref.
func (r Ref[T]) Mode() Mode {
	if r.tok == nil {
		return Borrowed
	}
	return r.tok.mode
}

// Release drops the Ref's token. Releasing an Exclusive Ref, or the last
// Shared one, destroys the resource. Releasing twice panics.
func (r Ref[T]) Release() {
	r.tok.release()
}

// Own moves r's own reference into an Exclusive Ref. Afterwards r can no
// longer be closed directly.
func Own[T resource](r T) Ref[T] {
	return Ref[T]{value: r, tok: r.base().own()}
}

func shareRef[T resource](r T) Ref[T] {
	return Ref[T]{value: r, tok: r.base().share("share")}
}

func borrowRef[T resource](r T) Ref[T] {
	return Ref[T]{value: r, tok: r.base().borrow("borrow")}
}
