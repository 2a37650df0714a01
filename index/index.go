// Package index provides the document model and backend interface behind
// the in-process mail-indexing engine.
//
// An Index stores one Document per message. Engines evaluate parsed
// queries against it: backends may narrow candidates natively (for
// example by tag) but the engine always applies Query.Match to the
// returned documents, so push-down is an optimization, never a
// correctness requirement.
//
// Implementations live in index/memory, index/postgres, index/mongo and
// index/redis.
package index

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the index package.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("index: not found")

	// ErrInvalidID is returned when an empty document id is given.
	ErrInvalidID = errors.New("index: invalid id")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("index: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("index: already connected")

	// ErrMalformedQuery is returned by Parse for query strings it cannot read.
	ErrMalformedQuery = errors.New("index: malformed query")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Document is the indexed metadata of one message.
type Document struct {
	// ID is the Message-ID. Backends assign one when it is empty.
	ID        string
	ThreadID  string
	InReplyTo string
	// Filenames are relative to the database root, in the order the
	// files were indexed.
	Filenames []string
	Date      time.Time
	From      string
	To        string
	Subject   string
	Headers   map[string]string
	Tags      []string
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	c := d
	c.Filenames = append([]string(nil), d.Filenames...)
	c.Tags = append([]string(nil), d.Tags...)
	if d.Headers != nil {
		c.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			c.Headers[k] = v
		}
	}
	return c
}

// HasTag reports whether d carries tag.
func (d Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Index is a document store.
//
// All operations must be safe for concurrent use.
type Index interface {
	// Put inserts or replaces a document and returns it as stored.
	Put(ctx context.Context, doc Document) (Document, error)

	// Get retrieves a document by id.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (Document, error)

	// Find returns the candidates for q in index order. The result may
	// be a superset of the matches.
	Find(ctx context.Context, q *Query) ([]Document, error)

	// AddTag adds tag to a document. Adding a present tag is a no-op.
	AddTag(ctx context.Context, id, tag string) error

	// RemoveTag removes tag from a document. Removing an absent tag is a no-op.
	RemoveTag(ctx context.Context, id, tag string) error

	// Filenames returns every indexed filename in index order.
	Filenames(ctx context.Context) ([]string, error)
}

// Filter applies q to candidates and returns the matches, preserving order.
func Filter(q *Query, candidates []Document) []Document {
	out := candidates[:0:0]
	for _, d := range candidates {
		if q.Match(d) {
			out = append(out, d)
		}
	}
	return out
}
