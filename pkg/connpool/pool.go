package connpool

import (
	"context"
	"errors"
	"net/http"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	log "github.com/inconshreveable/log15"
	"go.uber.org/atomic"
)

const (
	// DefaultSize is the maximum number of simultaneous connections to the
	// reporting endpoint.
	DefaultSize = 20
)

var ErrClosed = errors.New("connpool: pool is closed")

// Pool is a size-capped set of reusable HTTP connections shared by every
// outbound report. It is created once and closed when its owner shuts down.
type Pool struct {
	size      int
	transport *http.Transport
	client    *retryablehttp.Client
	closed    atomic.Bool
}

type Options struct {
	Logger log.Logger
}

type Option func(opts *Options)

func WithLogger(logger log.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Size returns the connection cap.
func (p *Pool) Size() int {
	return p.size
}

// NewRequest builds a request bound to ctx. Building a request performs no
// I/O.
func (p *Pool) NewRequest(ctx context.Context, method, url string, body []byte) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	return req.WithContext(ctx), nil
}

// Do sends the request over the pool. It is attempted exactly once; the
// response body is left unread for the caller to stream.
func (p *Pool) Do(req *retryablehttp.Request) (*http.Response, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	return p.client.Do(req)
}

// Close releases idle connections and rejects further requests. It is safe to
// call more than once.
func (p *Pool) Close() error {
	if p.closed.CAS(false, true) {
		p.transport.CloseIdleConnections()
	}

	return nil
}

// requestLogger adapts a log15 logger to the retryable client. Every message
// is demoted to debug: outcome classification owns the error-level records.
type requestLogger struct {
	delegate log.Logger
}

var _ retryablehttp.LeveledLogger = &requestLogger{}

func (rl *requestLogger) Error(msg string, keysAndValues ...interface{}) {
	rl.delegate.Debug(msg, keysAndValues...)
}

func (rl *requestLogger) Info(msg string, keysAndValues ...interface{}) {
	rl.delegate.Debug(msg, keysAndValues...)
}

func (rl *requestLogger) Debug(msg string, keysAndValues ...interface{}) {
	rl.delegate.Debug(msg, keysAndValues...)
}

func (rl *requestLogger) Warn(msg string, keysAndValues ...interface{}) {
	rl.delegate.Debug(msg, keysAndValues...)
}

func neverRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	return false, nil
}

// New creates a pool of at most size connections. Panics if size <= 0.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		panic("connpool: New requires size > 0")
	}

	o := &Options{
		Logger: log.New("module", "connpool"),
	}
	for _, opt := range opts {
		opt(o)
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.MaxConnsPerHost = size
	transport.MaxIdleConnsPerHost = size
	transport.MaxIdleConns = size

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Transport: transport}
	client.Logger = &requestLogger{delegate: o.Logger}
	client.RetryMax = 0
	client.CheckRetry = neverRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Pool{
		size:      size,
		transport: transport,
		client:    client,
	}
}
