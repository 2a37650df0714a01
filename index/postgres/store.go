// Package postgres provides a PostgreSQL implementation of index.Index.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/mailindex/index"
)

// Compile-time check
var _ index.Index = (*Store)(nil)

// Store implements index.Index using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new PostgreSQL index with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL index from a standard sql.DB connection.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return index.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if s.opts.migrate {
		if err := s.ensureSchema(ctx); err != nil {
			atomic.StoreInt32(&s.connected, 0)
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	s.logger.Info("connected to PostgreSQL", "table", s.opts.relation(), "migrate", s.opts.migrate)
	return nil
}

// Close marks the index as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if s.opts.schema != "" {
		stmt := "CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(s.opts.schema)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			in_reply_to TEXT NOT NULL DEFAULT '',
			filenames TEXT[] NOT NULL DEFAULT '{}',
			date TIMESTAMPTZ NOT NULL,
			from_addr TEXT NOT NULL DEFAULT '',
			to_addr TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			headers JSONB NOT NULL DEFAULT '{}',
			tags TEXT[] NOT NULL DEFAULT '{}'
		)
	`, s.opts.relation())

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(seq)`, s.opts.indexName("seq"), s.opts.relation()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(thread_id)`, s.opts.indexName("thread"), s.opts.relation()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN(tags)`, s.opts.indexName("tags"), s.opts.relation()),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return index.ErrNotConnected
	}
	return nil
}

// row is the scanned form of one document.
type row struct {
	ID        string         `db:"id"`
	ThreadID  string         `db:"thread_id"`
	InReplyTo string         `db:"in_reply_to"`
	Filenames pq.StringArray `db:"filenames"`
	Date      time.Time      `db:"date"`
	From      string         `db:"from_addr"`
	To        string         `db:"to_addr"`
	Subject   string         `db:"subject"`
	Headers   []byte         `db:"headers"`
	Tags      pq.StringArray `db:"tags"`
}

const documentColumns = `id, thread_id, in_reply_to, filenames, date, from_addr, to_addr, subject, headers, tags`

func (r row) document() (index.Document, error) {
	d := index.Document{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		InReplyTo: r.InReplyTo,
		Filenames: []string(r.Filenames),
		Date:      r.Date.UTC(),
		From:      r.From,
		To:        r.To,
		Subject:   r.Subject,
		Tags:      []string(r.Tags),
	}
	if len(r.Headers) > 0 {
		if err := json.Unmarshal(r.Headers, &d.Headers); err != nil {
			return index.Document{}, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	return d, nil
}

// Put inserts or replaces a document. A replaced document keeps its
// position in index order.
func (s *Store) Put(ctx context.Context, doc index.Document) (index.Document, error) {
	if err := s.checkConnected(); err != nil {
		return index.Document{}, err
	}

	d := doc.Clone()
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.ThreadID == "" {
		d.ThreadID = d.ID
	}
	if d.Headers == nil {
		d.Headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(d.Headers)
	if err != nil {
		return index.Document{}, fmt.Errorf("marshal headers: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			in_reply_to = EXCLUDED.in_reply_to,
			filenames = EXCLUDED.filenames,
			date = EXCLUDED.date,
			from_addr = EXCLUDED.from_addr,
			to_addr = EXCLUDED.to_addr,
			subject = EXCLUDED.subject,
			headers = EXCLUDED.headers,
			tags = EXCLUDED.tags
	`, s.opts.relation(), documentColumns)

	_, err = s.db.ExecContext(ctx, query,
		d.ID, d.ThreadID, d.InReplyTo, pq.Array(d.Filenames), d.Date.UTC(),
		d.From, d.To, d.Subject, headersJSON, pq.Array(d.Tags),
	)
	if err != nil {
		return index.Document{}, fmt.Errorf("put document: %w", err)
	}
	return d, nil
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, id string) (index.Document, error) {
	if err := s.checkConnected(); err != nil {
		return index.Document{}, err
	}
	if id == "" {
		return index.Document{}, index.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var r row
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, documentColumns, s.opts.relation())
	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return index.Document{}, index.ErrNotFound
		}
		return index.Document{}, fmt.Errorf("get document: %w", err)
	}
	return r.document()
}

// Find returns candidate documents in index order. Message-ID and
// required tags are pushed down to SQL; the caller applies the full query.
func (s *Store) Find(ctx context.Context, q *index.Query) ([]index.Document, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	where, args := buildWhereClause(q)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY seq`, documentColumns, s.opts.relation(), where)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}

	docs := make([]index.Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// AddTag adds a tag to a document.
func (s *Store) AddTag(ctx context.Context, id, tag string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET tags = CASE WHEN $2 = ANY(tags) THEN tags ELSE array_append(tags, $2) END
		WHERE id = $1
	`, s.opts.relation())
	return s.updateTags(ctx, id, tag, query, "add tag")
}

// RemoveTag removes a tag from a document.
func (s *Store) RemoveTag(ctx context.Context, id, tag string) error {
	query := fmt.Sprintf(`UPDATE %s SET tags = array_remove(tags, $2) WHERE id = $1`, s.opts.relation())
	return s.updateTags(ctx, id, tag, query, "remove tag")
}

func (s *Store) updateTags(ctx context.Context, id, tag, query, op string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if id == "" {
		return index.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, query, id, tag)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return index.ErrNotFound
	}
	return nil
}

// Filenames returns every indexed filename in index order.
func (s *Store) Filenames(ctx context.Context) ([]string, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var lists []pq.StringArray
	query := fmt.Sprintf(`SELECT filenames FROM %s ORDER BY seq`, s.opts.relation())
	if err := s.db.SelectContext(ctx, &lists, query); err != nil {
		return nil, fmt.Errorf("list filenames: %w", err)
	}

	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out, nil
}
