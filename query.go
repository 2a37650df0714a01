package mailindex

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/mailindex/engine"
	"go.opentelemetry.io/otel/attribute"
)

// Query is a search string with a sort order. Creating one never touches
// the index; SearchMessages, SearchThreads and the counts do.
type Query struct {
	handle
}

// CreateQuery creates a query on db. The query takes over db's token and
// releases it when destroyed, so the caller must not release db itself.
// The mode of db decides whether the query borrows, shares or owns the
// database.
func CreateQuery(db Ref[*Database], s string) (*Query, error) {
	db.tok.check("create query")
	d := db.value
	raw := d.env.eng.QueryCreate(d.ptr("create query"), s)
	if err := created("create query", raw, engine.StatusSuccess, db.tok); err != nil {
		return nil, err
	}
	q := &Query{}
	q.init(d.env, kindQuery, raw, db.tok, func(h engine.Handle) error {
		d.env.eng.QueryDestroy(h)
		return nil
	})
	return q, nil
}

// Close releases the query's own reference.
func (q *Query) Close() { _ = q.close() }

// Borrow returns a Borrowed Ref on the query.
func (q *Query) Borrow() Ref[*Query] { return borrowRef(q) }

// Share returns a Shared Ref on the query.
func (q *Query) Share() Ref[*Query] { return shareRef(q) }

// String returns the query string.
func (q *Query) String() string {
	return q.env.eng.QueryString(q.ptr("string"))
}

// SetSort sets the result order. The default is SortNewestFirst.
func (q *Query) SetSort(s Sort) {
	q.env.eng.QuerySetSort(q.ptr("set sort"), s)
}

// Sort returns the result order.
func (q *Query) Sort() Sort {
	return q.env.eng.QuerySort(q.ptr("sort"))
}

// ExcludeTag omits messages carrying tag from results and counts, unless
// the query string names the tag itself.
func (q *Query) ExcludeTag(tag string) error {
	if status := q.env.eng.QueryAddTagExclude(q.ptr("exclude tag"), tag); !status.OK() {
		return &OperationError{Op: "exclude tag", Status: status}
	}
	return nil
}

// SearchMessages runs the query. The result borrows q.
func (q *Query) SearchMessages() (*Messages, error) {
	return SearchMessagesFrom(q.Borrow())
}

// SearchThreads runs the query grouped by thread. The result borrows q.
func (q *Query) SearchThreads() (*Threads, error) {
	return SearchThreadsFrom(q.Borrow())
}

// SearchMessagesFrom runs the query held by ref. The result takes over
// ref's token.
func SearchMessagesFrom(ref Ref[*Query]) (msgs *Messages, err error) {
	ref.tok.check("search messages")
	q := ref.value
	start := time.Now()
	ctx, endSpan := q.env.otel.startSpan(context.Background(), "mailindex.search_messages",
		q.spanAttrs()...,
	)
	defer func() {
		endSpan(err)
		q.env.otel.recordSearch(ctx, time.Since(start), "messages", err)
	}()

	raw, status := q.env.eng.QuerySearchMessages(q.ptr("search messages"))
	if err := created("search messages", raw, status, ref.tok); err != nil {
		return nil, err
	}
	return newMessages(q.env, raw, ref.tok), nil
}

// SearchThreadsFrom runs the query held by ref grouped by thread. The
// result takes over ref's token.
func SearchThreadsFrom(ref Ref[*Query]) (threads *Threads, err error) {
	ref.tok.check("search threads")
	q := ref.value
	start := time.Now()
	ctx, endSpan := q.env.otel.startSpan(context.Background(), "mailindex.search_threads",
		q.spanAttrs()...,
	)
	defer func() {
		endSpan(err)
		q.env.otel.recordSearch(ctx, time.Since(start), "threads", err)
	}()

	raw, status := q.env.eng.QuerySearchThreads(q.ptr("search threads"))
	if err := created("search threads", raw, status, ref.tok); err != nil {
		return nil, err
	}
	return newThreads(q.env, raw, ref.tok), nil
}

// spanAttrs reads the query string back from the engine only when
// spans are recorded.
func (q *Query) spanAttrs() []attribute.KeyValue {
	if !q.env.otel.tracingEnabled {
		return nil
	}
	return []attribute.KeyValue{attribute.String("query", q.String())}
}

// CountMessages returns the number of messages SearchMessages would yield.
func (q *Query) CountMessages() (uint32, error) {
	return q.count("messages", q.env.eng.QueryCountMessages)
}

// CountThreads returns the number of threads SearchThreads would yield.
func (q *Query) CountThreads() (uint32, error) {
	return q.count("threads", q.env.eng.QueryCountThreads)
}

func (q *Query) count(target string, fn func(engine.Handle) (uint32, engine.Status)) (n uint32, err error) {
	raw := q.ptr("count " + target)
	start := time.Now()
	ctx, endSpan := q.env.otel.startSpan(context.Background(), "mailindex.count_"+target,
		q.spanAttrs()...,
	)
	defer func() {
		endSpan(err)
		q.env.otel.recordCount(ctx, time.Since(start), target, err)
	}()

	n, status := fn(raw)
	if !status.OK() {
		return 0, &OperationError{Op: fmt.Sprintf("count %s", target), Status: status}
	}
	return n, nil
}
