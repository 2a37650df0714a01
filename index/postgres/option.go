package postgres

import (
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Default configuration values. An empty schema leaves the table on the
// connection's search_path.
const (
	DefaultTable   = "mail_documents"
	DefaultTimeout = 10 * time.Second
)

type options struct {
	schema  string
	table   string
	migrate bool
	timeout time.Duration
	logger  *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		table:   DefaultTable,
		migrate: true,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// relation returns the quoted, schema-qualified document table.
func (o *options) relation() string {
	if o.schema == "" {
		return pq.QuoteIdentifier(o.table)
	}
	return pq.QuoteIdentifier(o.schema) + "." + pq.QuoteIdentifier(o.table)
}

// indexName returns the quoted name of one of the table's secondary
// indexes. Postgres places it in the table's schema.
func (o *options) indexName(column string) string {
	return pq.QuoteIdentifier("idx_" + o.table + "_" + column)
}

// Option configures a PostgreSQL index.
type Option func(*options)

// WithSchema places the document table in schema, which Connect creates
// if missing.
func WithSchema(name string) Option {
	return func(o *options) {
		o.schema = name
	}
}

// WithTable sets the document table name.
func WithTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.table = name
		}
	}
}

// WithMigrate controls whether Connect creates the schema, table and
// indexes. Disable it when the database is provisioned separately.
func WithMigrate(enabled bool) Option {
	return func(o *options) {
		o.migrate = enabled
	}
}

// WithTimeout bounds every index call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
