package memory

import (
	"fmt"

	"github.com/rbaliyan/mailindex/engine"
)

// kind identifies what a handle refers to.
type kind int

const (
	kindDatabase kind = iota
	kindQuery
	kindMessages
	kindMessage
	kindThreads
	kindThread
	kindTags
	kindDirectory
	kindFilenames
	numKinds
)

var kindNames = [numKinds]string{
	kindDatabase:  "database",
	kindQuery:     "query",
	kindMessages:  "messages",
	kindMessage:   "message",
	kindThreads:   "threads",
	kindThread:    "thread",
	kindTags:      "tags",
	kindDirectory: "directory",
	kindFilenames: "filenames",
}

func (k kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

type object struct {
	kind     kind
	parent   engine.Handle
	children int
	value    any
}

// alloc registers a new object. It returns engine.Nil when the handle
// limit is reached. Caller holds e.mu.
func (e *Engine) alloc(k kind, parent engine.Handle, value any) engine.Handle {
	if e.opts.handleLimit > 0 && len(e.objects) >= e.opts.handleLimit {
		e.logger.Debug("handle limit reached", "kind", k, "limit", e.opts.handleLimit)
		return engine.Nil
	}
	if parent != engine.Nil {
		p, ok := e.objects[parent]
		if !ok {
			panic(fmt.Sprintf("memory: %s created under destroyed handle %d", k, parent))
		}
		p.children++
	}
	e.next++
	h := e.next
	e.objects[h] = &object{kind: k, parent: parent, value: value}
	return h
}

// free removes an object. Destroying twice, with the wrong kind, or while
// children are alive panics. Caller holds e.mu.
func (e *Engine) free(h engine.Handle, k kind) *object {
	obj := e.get(h, k)
	if obj.children > 0 {
		panic(fmt.Sprintf("memory: destroying %s %d with %d live children", k, h, obj.children))
	}
	if obj.parent != engine.Nil {
		if p, ok := e.objects[obj.parent]; ok {
			p.children--
		}
	}
	delete(e.objects, h)
	e.destroyed[k]++
	return obj
}

// get returns a live object of kind k or panics. Caller holds e.mu.
func (e *Engine) get(h engine.Handle, k kind) *object {
	obj, ok := e.objects[h]
	if !ok {
		panic(fmt.Sprintf("memory: use of destroyed or unknown %s handle %d", k, h))
	}
	if obj.kind != k {
		panic(fmt.Sprintf("memory: handle %d is a %s, not a %s", h, obj.kind, k))
	}
	return obj
}

// lookup is get under the table lock.
func (e *Engine) lookup(h engine.Handle, k kind) *object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.get(h, k)
}

// Stats is a snapshot of the handle table.
type Stats struct {
	// Live is the number of live handles per kind name.
	Live map[string]int
	// Destroyed is the number of destroy calls per kind name.
	Destroyed map[string]int
}

// TotalLive returns the number of live handles of every kind.
func (s Stats) TotalLive() int {
	n := 0
	for _, c := range s.Live {
		n += c
	}
	return n
}

// Stats returns a snapshot of live and destroyed handle counts.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Live:      make(map[string]int),
		Destroyed: make(map[string]int),
	}
	for _, obj := range e.objects {
		s.Live[obj.kind.String()]++
	}
	for k := kind(0); k < numKinds; k++ {
		if n := e.destroyed[k]; n > 0 {
			s.Destroyed[k.String()] = n
		}
	}
	return s
}
