package mailindex

// cursorState is the state of a single-pass iterator. Exhausted is
// terminal: iterators cannot be rewound, only recreated from their owner.
type cursorState int

const (
	stateActive cursorState = iota
	stateExhausted
)

type cursor struct {
	state cursorState
	err   error
}

// Exhausted reports whether the iterator has been fully consumed.
func (c *cursor) Exhausted() bool { return c.state == stateExhausted }

// Err returns the error that ended iteration early, or nil when the
// iterator ran to its natural end.
func (c *cursor) Err() error { return c.err }

func (c *cursor) exhaust() { c.state = stateExhausted }

// step runs one read-and-advance. valid reports whether the engine cursor
// still has an element; get reads it. A get error is kept for Err and
// exhausts the iterator like the end of the sequence does.
func step[T any](c *cursor, valid func() bool, get func() (T, error)) (T, bool) {
	var zero T
	if c.state == stateExhausted {
		return zero, false
	}
	if !valid() {
		c.exhaust()
		return zero, false
	}
	v, err := get()
	if err != nil {
		c.err = err
		c.exhaust()
		return zero, false
	}
	return v, true
}
