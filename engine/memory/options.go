package memory

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/mailindex/index"
)

// Default configuration values.
const (
	DefaultTimeout = 30 * time.Second
	// DefaultHandleLimit of zero means no limit.
	DefaultHandleLimit = 0
	// MaxTagLength is the longest tag, in bytes, the engine accepts.
	MaxTagLength = 200
	// Version is the database format version reported for every database.
	Version = 3
)

type options struct {
	opener      Opener
	registry    *Registry
	handleLimit int
	timeout     time.Duration
	logger      *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		handleLimit: DefaultHandleLimit,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.opener == nil {
		if o.registry == nil {
			o.registry = NewRegistry()
		}
		o.opener = o.registry
	}
	return o
}

// Option configures an Engine.
type Option func(*options)

// WithOpener sets how database paths resolve to indexes.
// It replaces the default in-memory Registry; WithIndex is then ignored.
func WithOpener(op Opener) Option {
	return func(o *options) {
		if op != nil {
			o.opener = op
		}
	}
}

// WithIndex registers idx as the database at path in the default Registry.
// Use it to back a database with a persistent index.
func WithIndex(path string, idx index.Index) Option {
	return func(o *options) {
		if o.registry == nil {
			o.registry = NewRegistry()
		}
		o.registry.Register(path, idx)
	}
}

// WithHandleLimit caps the number of live handles. Constructors return
// the null handle once the limit is reached. Zero means no limit.
func WithHandleLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.handleLimit = n
		}
	}
}

// WithTimeout bounds each call into the index.
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
