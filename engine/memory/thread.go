package memory

import (
	"slices"
	"strings"

	"github.com/rbaliyan/mailindex/engine"
	"github.com/rbaliyan/mailindex/index"
)

// threadData is the immutable result of grouping one conversation.
type threadData struct {
	id       string
	all      []index.Document // oldest first
	matched  []index.Document // in search order
	topLevel []index.Document
}

type thread struct {
	db   *database
	data *threadData
}

// group is the matched documents of one thread, in search order.
type group struct {
	id   string
	docs []index.Document
}

func threadKey(d index.Document) string {
	if d.ThreadID != "" {
		return d.ThreadID
	}
	return d.ID
}

// groupByThread groups docs by thread in order of first appearance.
func groupByThread(docs []index.Document) []*group {
	var out []*group
	byID := make(map[string]*group)
	for _, d := range docs {
		key := threadKey(d)
		g, ok := byID[key]
		if !ok {
			g = &group{id: key}
			byID[key] = g
			out = append(out, g)
		}
		g.docs = append(g.docs, d)
	}
	return out
}

// buildThreads loads every message of each matched thread.
func (e *Engine) buildThreads(db *database, matched []index.Document) ([]*threadData, engine.Status) {
	ctx, cancel := e.indexContext()
	defer cancel()

	groups := groupByThread(matched)
	out := make([]*threadData, 0, len(groups))
	for _, g := range groups {
		q := index.ThreadQuery(g.id)
		candidates, err := db.idx.Find(ctx, q)
		if err != nil {
			e.logger.Warn("load thread failed", "thread", g.id, "error", err)
			return nil, engine.StatusIndexException
		}
		all := index.Filter(q, candidates)
		if len(all) == 0 {
			// Documents without a thread id form their own thread.
			all = slices.Clone(g.docs)
		}
		sortDocuments(all, engine.SortOldestFirst)
		out = append(out, &threadData{
			id:       g.id,
			all:      all,
			matched:  g.docs,
			topLevel: topLevel(all),
		})
	}
	return out, engine.StatusSuccess
}

// topLevel returns the messages that do not reply to another message of
// the same thread.
func topLevel(all []index.Document) []index.Document {
	ids := make(map[string]bool, len(all))
	for _, d := range all {
		ids[d.ID] = true
	}
	var out []index.Document
	for _, d := range all {
		if d.InReplyTo == "" || !ids[d.InReplyTo] {
			out = append(out, d)
		}
	}
	return out
}

func (e *Engine) thread(h engine.Handle) *threadData {
	return e.lookup(h, kindThread).value.(*thread).data
}

// ThreadID implements engine.ThreadEngine.
func (e *Engine) ThreadID(t engine.Handle) string {
	return e.thread(t).id
}

// ThreadSubject implements engine.ThreadEngine. It is the subject of the
// oldest message.
func (e *Engine) ThreadSubject(t engine.Handle) string {
	td := e.thread(t)
	if len(td.all) == 0 {
		return ""
	}
	return td.all[0].Subject
}

// ThreadAuthors implements engine.ThreadEngine: the distinct senders of
// the thread, oldest first, joined by ", ".
func (e *Engine) ThreadAuthors(t engine.Handle) string {
	td := e.thread(t)
	var authors []string
	for _, d := range td.all {
		if d.From != "" && !slices.Contains(authors, d.From) {
			authors = append(authors, d.From)
		}
	}
	return strings.Join(authors, ", ")
}

// ThreadTotalMessages implements engine.ThreadEngine.
func (e *Engine) ThreadTotalMessages(t engine.Handle) int {
	return len(e.thread(t).all)
}

// ThreadMatchedMessages implements engine.ThreadEngine.
func (e *Engine) ThreadMatchedMessages(t engine.Handle) int {
	return len(e.thread(t).matched)
}

// ThreadOldestDate implements engine.ThreadEngine. Dates are taken from
// the matched messages; dateless messages are skipped and a thread with
// no dates reports 0.
func (e *Engine) ThreadOldestDate(t engine.Handle) int64 {
	var oldest int64
	for _, d := range e.thread(t).matched {
		if ts := unixDate(d.Date); ts != 0 && (oldest == 0 || ts < oldest) {
			oldest = ts
		}
	}
	return oldest
}

// ThreadNewestDate implements engine.ThreadEngine.
func (e *Engine) ThreadNewestDate(t engine.Handle) int64 {
	var newest int64
	for _, d := range e.thread(t).matched {
		if ts := unixDate(d.Date); ts > newest {
			newest = ts
		}
	}
	return newest
}

// ThreadMessages implements engine.ThreadEngine.
func (e *Engine) ThreadMessages(t engine.Handle) engine.Handle {
	return e.threadMessages(t, func(td *threadData) []index.Document { return td.all })
}

// ThreadTopLevelMessages implements engine.ThreadEngine.
func (e *Engine) ThreadTopLevelMessages(t engine.Handle) engine.Handle {
	return e.threadMessages(t, func(td *threadData) []index.Document { return td.topLevel })
}

func (e *Engine) threadMessages(t engine.Handle, pick func(*threadData) []index.Document) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.get(t, kindThread).value.(*thread)
	docs := make([]index.Document, 0, len(pick(th.data)))
	for _, d := range pick(th.data) {
		docs = append(docs, d.Clone())
	}
	return e.alloc(kindMessages, t, &messages{cursor: cursor[index.Document]{items: docs}, db: th.db})
}

// ThreadTags implements engine.ThreadEngine.
func (e *Engine) ThreadTags(t engine.Handle) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.get(t, kindThread).value.(*thread)
	return e.alloc(kindTags, t, &cursor[string]{items: tagUnion(th.data.all)})
}

// ThreadDestroy implements engine.ThreadEngine.
func (e *Engine) ThreadDestroy(t engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.free(t, kindThread)
}
