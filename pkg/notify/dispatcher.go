package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	log "github.com/inconshreveable/log15"
	"github.com/puppetlabs/relay-notify/pkg/admission"
	"github.com/puppetlabs/relay-notify/pkg/connpool"
	"github.com/puppetlabs/relay-notify/pkg/errmark"
	"github.com/puppetlabs/relay-notify/pkg/notice"
	"go.uber.org/atomic"
)

// Stats is a point-in-time view of the dispatcher's load.
type Stats struct {
	InFlight  int `json:"in_flight"`
	Limit     int `json:"limit"`
	Exchanges int `json:"exchanges"`
}

type dispatchRequest struct {
	ticket  *admission.Ticket
	payload []byte
}

type envelope struct {
	handle string
	event  interface{}
}

// Dispatcher delivers notices to the reporting endpoint in the background.
// Emit may be called from any goroutine. Exchanges are owned by a single loop
// goroutine started by New and stopped by Close.
type Dispatcher struct {
	mode      Mode
	draft     *notice.Draft
	url       string
	limit     int
	chunkSize int
	logger    log.Logger
	onOutcome func(o Outcome)
	obs       *observations

	gate *admission.Gate
	pool *connpool.Pool

	mu       sync.RWMutex
	closed   bool
	requests chan *dispatchRequest
	events   chan envelope

	exchanges     map[string]*Exchange
	exchangeCount atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (d *Dispatcher) Mode() Mode {
	return d.mode
}

func (d *Dispatcher) Stats() Stats {
	s := Stats{
		Limit:     d.limit,
		Exchanges: int(d.exchangeCount.Load()),
	}
	if d.gate != nil {
		s.InFlight = d.gate.InFlight()
	}

	return s
}

// Emit reports an exception. It never waits on the network. The return value
// is false when the report was dropped: the dispatcher is overloaded or
// closed, or the notice could not be composed.
func (d *Dispatcher) Emit(level string, body interface{}, params, session map[string]interface{}) bool {
	ev := notice.Event{
		Level:   level,
		Body:    body,
		Params:  params,
		Session: session,
	}
	if d.mode != ModeDisabled {
		ev.Backtrace = notice.NewBacktrace(1)
	}

	return d.EmitEvent(ev)
}

// EmitEvent is like Emit but takes a prepared event. If the event has no
// backtrace, none is captured.
func (d *Dispatcher) EmitEvent(ev notice.Event) bool {
	o, accepted := d.admit(ev)
	if o != nil {
		d.report(d.logger, *o)
	}

	return accepted
}

// admit holds the read lock for as long as it takes to enqueue the event. Any
// outcome it returns must be reported after the lock is released so that
// outcome hooks may call back into the dispatcher.
func (d *Dispatcher) admit(ev notice.Event) (*Outcome, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, false
	}

	switch d.mode {
	case ModeDisabled:
		return nil, true
	case ModeLogOnly:
		payload, err := d.compose(ev)
		if err != nil {
			return &Outcome{Kind: OutcomeInvalidNotice, Err: err}, false
		}

		d.logger.Info("would report notice", "notice", string(payload))
		return nil, true
	}

	ticket, ok := d.gate.TryAdmit()
	if !ok {
		d.logger.Warn("reporting attempted while overloaded", "limit", d.limit)
		return &Outcome{Kind: OutcomeDropped}, false
	}

	payload, err := d.compose(ev)
	if err != nil {
		ticket.Release()
		return &Outcome{Kind: OutcomeInvalidNotice, Err: err}, false
	}

	// The request buffer holds as many entries as there are tickets, so this
	// never blocks.
	d.requests <- &dispatchRequest{ticket: ticket, payload: payload}
	return nil, true
}

// compose turns a panic raised while describing the body into an error.
func (d *Dispatcher) compose(ev notice.Event) (payload []byte, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = fmt.Errorf("notify: panic while composing notice: %+v", rv)
		}
	}()

	return notice.Compose(d.draft, ev)
}

// Close stops accepting reports and waits for in-flight reports to finish. If
// ctx ends first, the remaining reports are cancelled and ctx's error is
// returned once they have been classified. Close may be called more than once.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		if d.requests != nil {
			close(d.requests)
		}
	}
	d.mu.Unlock()

	if d.done == nil {
		return nil
	}

	var err error
	select {
	case <-d.done:
	case <-ctx.Done():
		select {
		case <-d.done:
			// Already drained.
		default:
			d.logger.Warn("cancelling in-flight reports", "exchanges", d.exchangeCount.Load())

			d.cancel()
			<-d.done
			err = ctx.Err()
		}
	}

	d.cancel()

	if cerr := d.pool.Close(); cerr != nil && err == nil {
		err = cerr
	}

	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)

	requests := d.requests
	for requests != nil || len(d.exchanges) > 0 {
		select {
		case dr, ok := <-requests:
			if !ok {
				requests = nil
				continue
			}

			d.dispatch(dr)
		case env := <-d.events:
			d.route(env)
		}
	}
}

func (d *Dispatcher) dispatch(dr *dispatchRequest) {
	req, err := d.pool.NewRequest(d.ctx, http.MethodPost, d.url, dr.payload)
	if err != nil {
		dr.ticket.Release()
		d.report(d.logger, Outcome{
			Kind: OutcomeTransportError,
			Err:  fmt.Errorf("notify: failed to create request: %+v", err),
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	ex := NewExchange(uuid.New().String(), d.logger)
	ex.ticket = dr.ticket
	ex.timer = d.obs.startExchange()

	d.exchanges[ex.handle] = ex
	d.exchangeCount.Inc()

	go d.stream(ex.handle, req)
}

func (d *Dispatcher) route(env envelope) {
	ex, found := d.exchanges[env.handle]
	if !found {
		d.logger.Info("ignoring event for unknown exchange", "exchange", env.handle, "event", fmt.Sprintf("%T", env.event))
		return
	}

	o, err := ex.Receive(env.event)
	if err != nil {
		ex.logger.Info("ignoring exchange event", "event", fmt.Sprintf("%T", env.event), "state", ex.State(), "error", err)
		return
	} else if o == nil {
		return
	}

	delete(d.exchanges, env.handle)
	d.exchangeCount.Dec()
	ex.ticket.Release()

	d.obs.finishExchange(ex.timer, o.Kind)
	d.report(ex.logger, *o)
}

func (d *Dispatcher) report(logger log.Logger, o Outcome) {
	logOutcome(logger, o)
	d.obs.countOutcome(o.Kind)

	if d.onOutcome != nil {
		d.onOutcome(o)
	}
}

// stream performs the round trip for one exchange and delivers its response
// to the loop as a sequence of events ending in DoneEvent or ErrorEvent.
func (d *Dispatcher) stream(handle string, req *retryablehttp.Request) {
	send := func(ev interface{}) {
		d.events <- envelope{handle: handle, event: ev}
	}

	resp, err := d.pool.Do(req)
	if err != nil {
		send(ErrorEvent{Err: err})
		return
	}
	defer resp.Body.Close()

	send(StatusEvent{Code: resp.StatusCode})
	send(HeadersEvent{Header: resp.Header.Clone()})

	buf := make([]byte, d.chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			send(ChunkEvent{Data: chunk})
		}

		switch {
		case errors.Is(err, io.EOF):
			send(DoneEvent{})
			return
		case err != nil:
			send(ErrorEvent{Err: err})
			return
		}
	}
}

// New creates a dispatcher. In ModeEnabled the endpoint must be complete and
// the returned dispatcher owns a connection pool until Close is called.
func New(draft *notice.Draft, endpoint Endpoint, opts ...Option) (*Dispatcher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if draft == nil {
		return nil, errmark.MarkUser(errors.New("notify: a notice draft is required"))
	}

	d := &Dispatcher{
		mode:      o.Mode,
		draft:     draft,
		limit:     o.OverloadThreshold,
		chunkSize: o.ChunkSize,
		logger:    o.Logger,
		onOutcome: o.OnOutcome,
	}

	if o.Mode != ModeEnabled {
		return d, nil
	}

	switch {
	case o.OverloadThreshold <= 0:
		return nil, errmark.MarkUser(fmt.Errorf("notify: overload threshold must be positive, got %d", o.OverloadThreshold))
	case o.PoolSize <= 0:
		return nil, errmark.MarkUser(fmt.Errorf("notify: pool size must be positive, got %d", o.PoolSize))
	case o.ChunkSize <= 0:
		return nil, errmark.MarkUser(fmt.Errorf("notify: chunk size must be positive, got %d", o.ChunkSize))
	}

	url, err := endpoint.NoticesURL()
	if err != nil {
		return nil, errmark.MarkUser(err)
	}

	d.url = url
	d.obs = newObservations(o.Metrics)
	d.gate = admission.NewGate(o.OverloadThreshold)
	d.pool = connpool.New(o.PoolSize, connpool.WithLogger(o.Logger.New("component", "connpool")))
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.requests = make(chan *dispatchRequest, o.OverloadThreshold)
	d.events = make(chan envelope, o.PoolSize)
	d.exchanges = make(map[string]*Exchange)
	d.done = make(chan struct{})

	go d.run()

	return d, nil
}
