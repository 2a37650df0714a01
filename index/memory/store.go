// Package memory provides an in-memory index.Index implementation.
// Data is not persisted; it is intended for tests and small corpora.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rbaliyan/mailindex/index"
)

// Compile-time check
var _ index.Index = (*Store)(nil)

// Store implements index.Index with in-memory storage.
// Thread-safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	docs  map[string]*index.Document
	order []string // ids in insertion order
}

// New creates a new in-memory index, optionally seeded with documents.
// Seed documents without an ID are assigned one.
func New(docs ...index.Document) *Store {
	s := &Store{docs: make(map[string]*index.Document)}
	for _, d := range docs {
		s.put(d)
	}
	return s
}

// Put inserts or replaces a document.
func (s *Store) Put(_ context.Context, doc index.Document) (index.Document, error) {
	return s.put(doc), nil
}

func (s *Store) put(doc index.Document) index.Document {
	d := doc.Clone()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.ThreadID == "" {
		d.ThreadID = d.ID
	}
	d.Tags = dedupe(d.Tags)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[d.ID]; !exists {
		s.order = append(s.order, d.ID)
	}
	s.docs[d.ID] = &d
	return d.Clone()
}

// Get retrieves a document by ID.
func (s *Store) Get(_ context.Context, id string) (index.Document, error) {
	if id == "" {
		return index.Document{}, index.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return index.Document{}, index.ErrNotFound
	}
	return d.Clone(), nil
}

// Find returns the documents matching q in insertion order.
func (s *Store) Find(_ context.Context, q *index.Query) ([]index.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := q.RequiredID(); ok {
		d, exists := s.docs[id]
		if !exists || !q.Match(*d) {
			return nil, nil
		}
		return []index.Document{d.Clone()}, nil
	}

	var out []index.Document
	for _, id := range s.order {
		d := s.docs[id]
		if q.Match(*d) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// AddTag adds a tag to a document.
func (s *Store) AddTag(_ context.Context, id, tag string) error {
	if id == "" {
		return index.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return index.ErrNotFound
	}
	if !d.HasTag(tag) {
		d.Tags = append(d.Tags, tag)
	}
	return nil
}

// RemoveTag removes a tag from a document.
func (s *Store) RemoveTag(_ context.Context, id, tag string) error {
	if id == "" {
		return index.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return index.ErrNotFound
	}
	for i, t := range d.Tags {
		if t == tag {
			d.Tags = append(d.Tags[:i], d.Tags[i+1:]...)
			break
		}
	}
	return nil
}

// Filenames returns every indexed filename in insertion order.
func (s *Store) Filenames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		out = append(out, s.docs[id].Filenames...)
	}
	return out, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
