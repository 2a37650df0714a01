package memory

import (
	"slices"
	"strings"

	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/index"
)

type query struct {
	db       *database
	parsed   *index.Query
	sort     engine.Sort
	excludes []string
}

func (e *Engine) query(h engine.Handle) *query {
	return e.get(h, kindQuery).value.(*query)
}

// QueryCreate implements engine.QueryEngine.
func (e *Engine) QueryCreate(db engine.Handle, s string) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.get(db, kindDatabase).value.(*database)
	parsed, err := index.Parse(s)
	if err != nil {
		e.logger.Debug("rejecting query", "query", s, "error", err)
		return engine.Nil
	}
	return e.alloc(kindQuery, db, &query{db: d, parsed: parsed, sort: engine.SortNewestFirst})
}

// QueryString implements engine.QueryEngine.
func (e *Engine) QueryString(q engine.Handle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query(q).parsed.String()
}

// QuerySetSort implements engine.QueryEngine.
func (e *Engine) QuerySetSort(q engine.Handle, sort engine.Sort) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query(q).sort = sort
}

// QuerySort implements engine.QueryEngine.
func (e *Engine) QuerySort(q engine.Handle) engine.Sort {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query(q).sort
}

// QueryAddTagExclude implements engine.QueryEngine. Exclusions of tags
// the query names explicitly are ignored at search time.
func (e *Engine) QueryAddTagExclude(q engine.Handle, tag string) engine.Status {
	if tag == "" {
		return engine.StatusNullPointer
	}
	if len(tag) > MaxTagLength {
		return engine.StatusTagTooLong
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	qv := e.query(q)
	if !slices.Contains(qv.excludes, tag) {
		qv.excludes = append(qv.excludes, tag)
	}
	return engine.StatusSuccess
}

// QueryDestroy implements engine.QueryEngine.
func (e *Engine) QueryDestroy(q engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(q, kindQuery)
}

// snapshot copies what a search needs out of the table.
func (e *Engine) snapshot(q engine.Handle) query {
	e.mu.Lock()
	defer e.mu.Unlock()
	qv := e.query(q)
	c := *qv
	c.excludes = slices.Clone(qv.excludes)
	return c
}

// matches runs q against its index: candidates are fetched, matched,
// filtered by exclusions and sorted.
func (e *Engine) matches(q query) ([]index.Document, engine.Status) {
	ctx, cancel := e.indexContext()
	defer cancel()

	candidates, err := q.db.idx.Find(ctx, q.parsed)
	if err != nil {
		e.logger.Warn("search failed", "query", q.parsed.String(), "error", err)
		return nil, engine.StatusIndexException
	}
	docs := index.Filter(q.parsed, candidates)

	var excluded []string
	for _, tag := range q.excludes {
		if !q.parsed.MentionsTag(tag) {
			excluded = append(excluded, tag)
		}
	}
	if len(excluded) > 0 {
		docs = slices.DeleteFunc(docs, func(d index.Document) bool {
			return slices.ContainsFunc(excluded, d.HasTag)
		})
	}

	sortDocuments(docs, q.sort)
	return docs, engine.StatusSuccess
}

func sortDocuments(docs []index.Document, sort engine.Sort) {
	switch sort {
	case engine.SortOldestFirst:
		slices.SortStableFunc(docs, func(a, b index.Document) int { return a.Date.Compare(b.Date) })
	case engine.SortNewestFirst:
		slices.SortStableFunc(docs, func(a, b index.Document) int { return b.Date.Compare(a.Date) })
	case engine.SortMessageID:
		slices.SortStableFunc(docs, func(a, b index.Document) int { return strings.Compare(a.ID, b.ID) })
	}
}

// QuerySearchMessages implements engine.QueryEngine.
func (e *Engine) QuerySearchMessages(q engine.Handle) (engine.Handle, engine.Status) {
	qv := e.snapshot(q)
	docs, status := e.matches(qv)
	if !status.OK() {
		return engine.Nil, status
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.alloc(kindMessages, q, &messages{cursor: cursor[index.Document]{items: docs}, db: qv.db})
	if h == engine.Nil {
		return engine.Nil, engine.StatusOutOfMemory
	}
	return h, engine.StatusSuccess
}

// QueryCountMessages implements engine.QueryEngine.
func (e *Engine) QueryCountMessages(q engine.Handle) (uint32, engine.Status) {
	docs, status := e.matches(e.snapshot(q))
	if !status.OK() {
		return 0, status
	}
	return uint32(len(docs)), engine.StatusSuccess
}

// QuerySearchThreads implements engine.QueryEngine.
func (e *Engine) QuerySearchThreads(q engine.Handle) (engine.Handle, engine.Status) {
	qv := e.snapshot(q)
	docs, status := e.matches(qv)
	if !status.OK() {
		return engine.Nil, status
	}
	data, status := e.buildThreads(qv.db, docs)
	if !status.OK() {
		return engine.Nil, status
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.alloc(kindThreads, q, &threads{cursor: cursor[*threadData]{items: data}, db: qv.db})
	if h == engine.Nil {
		return engine.Nil, engine.StatusOutOfMemory
	}
	return h, engine.StatusSuccess
}

// QueryCountThreads implements engine.QueryEngine.
func (e *Engine) QueryCountThreads(q engine.Handle) (uint32, engine.Status) {
	docs, status := e.matches(e.snapshot(q))
	if !status.OK() {
		return 0, status
	}
	return uint32(len(groupByThread(docs))), engine.StatusSuccess
}
