package notify

import (
	log "github.com/inconshreveable/log15"
	"github.com/puppetlabs/leg/instrumentation/metrics"
	"github.com/puppetlabs/relay-notify/pkg/admission"
	"github.com/puppetlabs/relay-notify/pkg/connpool"
)

const (
	// DefaultChunkSize is the largest body fragment delivered to an exchange
	// in a single event.
	DefaultChunkSize = 4096
)

type Options struct {
	Mode              Mode
	OverloadThreshold int
	PoolSize          int
	ChunkSize         int
	Logger            log.Logger
	Metrics           *metrics.Metrics
	OnOutcome         func(o Outcome)
}

type Option func(opts *Options)

func WithMode(mode Mode) Option {
	return func(opts *Options) {
		opts.Mode = mode
	}
}

// WithOverloadThreshold sets the maximum number of reports in flight at once.
func WithOverloadThreshold(limit int) Option {
	return func(opts *Options) {
		opts.OverloadThreshold = limit
	}
}

func WithPoolSize(size int) Option {
	return func(opts *Options) {
		opts.PoolSize = size
	}
}

func WithChunkSize(size int) Option {
	return func(opts *Options) {
		opts.ChunkSize = size
	}
}

func WithLogger(logger log.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics registers the dispatcher's counters and timers with mets.
func WithMetrics(mets *metrics.Metrics) Option {
	return func(opts *Options) {
		opts.Metrics = mets
	}
}

// WithOnOutcome installs a hook called once for every report that reaches a
// final classification. Exchange outcomes are delivered on the dispatcher loop;
// drops and composition failures are delivered on the emitting goroutine,
// where the hook may call back into the dispatcher, Close included. The hook
// must be safe for concurrent use and must not block the loop.
func WithOnOutcome(fn func(o Outcome)) Option {
	return func(opts *Options) {
		opts.OnOutcome = fn
	}
}

func defaultOptions() *Options {
	return &Options{
		Mode:              ModeEnabled,
		OverloadThreshold: admission.DefaultLimit,
		PoolSize:          connpool.DefaultSize,
		ChunkSize:         DefaultChunkSize,
		Logger:            log.New("module", "notify"),
	}
}
