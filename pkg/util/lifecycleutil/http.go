package lifecycleutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/puppetlabs/leg/lifecycle"
)

const (
	// DefaultListenWaitHTTPShutdownTimeout is the time to allow connections to
	// cleanly close.
	DefaultListenWaitHTTPShutdownTimeout = 25 * time.Second
)

type ListenWaitHTTPOptions struct {
	ShutdownTimeout       time.Duration
	CloserRequireContexts []func(ctx context.Context) error
	Listener              net.Listener
	TLSCertificateFile    string
	TLSKeyFile            string
}

type ListenWaitHTTPOption func(opts *ListenWaitHTTPOptions)

// ListenWaitWithHTTPCloserRequireContext runs fn after the server has shut
// down, bounded by the same shutdown timeout. Functions run in the order they
// are added.
func ListenWaitWithHTTPCloserRequireContext(fn func(ctx context.Context) error) ListenWaitHTTPOption {
	return func(opts *ListenWaitHTTPOptions) {
		opts.CloserRequireContexts = append(opts.CloserRequireContexts, fn)
	}
}

func ListenWaitWithHTTPShutdownTimeout(timeout time.Duration) ListenWaitHTTPOption {
	return func(opts *ListenWaitHTTPOptions) {
		opts.ShutdownTimeout = timeout
	}
}

// ListenWaitWithListener serves on an existing listener instead of binding the
// server's Addr.
func ListenWaitWithListener(ln net.Listener) ListenWaitHTTPOption {
	return func(opts *ListenWaitHTTPOptions) {
		opts.Listener = ln
	}
}

func ListenWaitWithTLS(certificateFile, keyFile string) ListenWaitHTTPOption {
	return func(opts *ListenWaitHTTPOptions) {
		opts.TLSCertificateFile = certificateFile
		opts.TLSKeyFile = keyFile
	}
}

// ListenWaitHTTP runs a server until ctx is done, then lets existing
// connections finish before returning. Functions added with
// ListenWaitWithHTTPCloserRequireContext run once the server has stopped
// accepting requests.
func ListenWaitHTTP(ctx context.Context, s *http.Server, opts ...ListenWaitHTTPOption) error {
	ho := &ListenWaitHTTPOptions{
		ShutdownTimeout: DefaultListenWaitHTTPShutdownTimeout,
	}
	for _, opt := range opts {
		opt(ho)
	}

	cb := lifecycle.NewCloserBuilder().
		Timeout(ho.ShutdownTimeout).
		When(func(cctx context.Context) error {
			select {
			case <-cctx.Done():
			case <-ctx.Done():
			}

			return nil
		}).
		RequireContext(func(ctx context.Context) error {
			return s.Shutdown(ctx)
		})

	for _, req := range ho.CloserRequireContexts {
		cb.RequireContext(req)
	}

	closer := cb.Build()

	var err error
	switch {
	case ho.Listener != nil && ho.TLSKeyFile != "":
		err = s.ServeTLS(ho.Listener, ho.TLSCertificateFile, ho.TLSKeyFile)
	case ho.Listener != nil:
		err = s.Serve(ho.Listener)
	case ho.TLSKeyFile != "":
		err = s.ListenAndServeTLS(ho.TLSCertificateFile, ho.TLSKeyFile)
	default:
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-closer.Done()
	return closer.Err()
}
