package store

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/jacentio/arbor/store"

// ExistsOptions configures Repository.Exists.
type ExistsOptions struct {
	// Where filters rows. The zero Cond matches all rows.
	Where Cond

	// WithDeleted includes soft-deleted rows.
	WithDeleted bool

	// NoTracking reads detached entities.
	NoTracking bool
}

// GetOptions configures Repository.GetOne.
type GetOptions struct {
	// Include lists navigations to load onto the result.
	Include []string

	// WithDeleted includes soft-deleted rows.
	WithDeleted bool

	// NoTracking returns a detached entity that Update and Delete reject.
	NoTracking bool
}

// ListOptions configures Repository.GetPage and Repository.GetPageDynamic.
type ListOptions struct {
	// Where filters rows. The zero Cond matches all rows.
	Where Cond

	// Include lists navigations to load onto each result.
	Include []string

	// OrderBy orders rows. When set it replaces any ordering from a descriptor.
	OrderBy []Order

	// WithDeleted includes soft-deleted rows.
	WithDeleted bool

	// NoTracking returns detached entities.
	NoTracking bool

	// Index is the zero-based page index.
	Index int

	// Size is the page size. Zero means Config.DefaultPageSize.
	Size int
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	config  Config
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	clock   func() time.Time
}

func defaultOptions() options {
	return options{
		config: DefaultConfig(),
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithConfig sets the repository configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		cfg.validate()
		o.config = cfg
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records operations into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithClock sets the source of lifecycle timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
