package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/puppetlabs/relay-notify/pkg/admission"
	"github.com/puppetlabs/relay-notify/pkg/errmark"
)

var (
	ErrOutOfSequence      = errors.New("notify: event is not valid in the current exchange state")
	ErrUnrecognizedEvent  = errors.New("notify: unrecognized exchange event")
	ErrExchangeTerminated = errors.New("notify: exchange has already terminated")
)

// ExpectedStatus is the status code the notices endpoint answers with when it
// accepts a notice.
const ExpectedStatus = http.StatusCreated

type State int

const (
	StateAwaitingStatus State = iota
	StateAwaitingHeaders
	StateStreaming
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateAwaitingStatus:
		return "awaiting_status"
	case StateAwaitingHeaders:
		return "awaiting_headers"
	case StateStreaming:
		return "streaming"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Events delivered to an exchange, in order, by the goroutine performing its
// round trip.
type (
	StatusEvent struct {
		Code int
	}

	HeadersEvent struct {
		Header http.Header
	}

	ChunkEvent struct {
		Data []byte
	}

	DoneEvent struct{}

	ErrorEvent struct {
		Err error
	}
)

// Exchange assembles the response to one outbound report. It is not safe for
// concurrent use; the dispatcher loop is its only owner.
type Exchange struct {
	handle string
	state  State
	status int
	chunks [][]byte
	start  time.Time
	logger log.Logger

	ticket *admission.Ticket
	timer  *exchangeTimer
}

func (e *Exchange) Handle() string {
	return e.handle
}

func (e *Exchange) State() State {
	return e.state
}

// StatusCode returns the response status, or 0 if none has been received.
func (e *Exchange) StatusCode() int {
	return e.status
}

// Receive advances the exchange by one event. It returns a non-nil outcome
// exactly once, when the exchange reaches its terminal state. Events that do
// not fit the current state are rejected without changing it.
func (e *Exchange) Receive(ev interface{}) (*Outcome, error) {
	if e.state == StateTerminal {
		return nil, ErrExchangeTerminated
	}

	switch ev := ev.(type) {
	case StatusEvent:
		if e.state != StateAwaitingStatus {
			return nil, ErrOutOfSequence
		}

		e.status = ev.Code
		if ev.Code != ExpectedStatus {
			e.logger.Error((&UnexpectedStatusError{StatusCode: ev.Code}).Error(), "status", ev.Code)
		}

		e.state = StateAwaitingHeaders
		return nil, nil
	case HeadersEvent:
		if e.state != StateAwaitingHeaders {
			return nil, ErrOutOfSequence
		}

		e.logger.Debug("received API response headers", "status", e.status, "headers", ev.Header)

		e.state = StateStreaming
		return nil, nil
	case ChunkEvent:
		if e.state != StateStreaming {
			return nil, ErrOutOfSequence
		}

		e.chunks = append(e.chunks, ev.Data)
		return nil, nil
	case DoneEvent:
		if e.state != StateStreaming {
			return nil, ErrOutOfSequence
		}

		return e.terminate(e.classify()), nil
	case ErrorEvent:
		err := errmark.MarkTransient(ev.Err, errmark.TransientIfNetwork)

		e.chunks = nil
		return e.terminate(Outcome{
			Kind:       OutcomeTransportError,
			StatusCode: e.status,
			Err:        err,
			Transient:  errmark.IsTransient(err),
		}), nil
	default:
		return nil, ErrUnrecognizedEvent
	}
}

func (e *Exchange) terminate(o Outcome) *Outcome {
	e.state = StateTerminal

	o.Handle = e.handle
	o.Duration = time.Since(e.start)
	return &o
}

func (e *Exchange) classify() Outcome {
	body := bytes.Join(e.chunks, nil)
	e.chunks = nil

	o := Outcome{
		StatusCode: e.status,
		Body:       body,
	}

	if len(bytes.TrimSpace(body)) == 0 {
		o.Kind = OutcomeSuccess
		return o
	}

	var resp interface{}
	if err := json.Unmarshal(body, &resp); err != nil {
		o.Kind = OutcomeMalformedBody
		o.Err = fmt.Errorf("notify: failed to decode API response: %+v", err)
		return o
	}
	o.Response = resp

	if obj, ok := resp.(map[string]interface{}); ok {
		code, _ := obj["err"].(float64)
		msg, isString := obj["message"].(string)

		if code == 1 && isString {
			o.Kind = OutcomeAPIError
			o.Message = msg
			o.Err = &APIError{StatusCode: e.status, Message: msg}
			return o
		}
	}

	o.Kind = OutcomeSuccess
	return o
}

// NewExchange creates an exchange awaiting its response status.
func NewExchange(handle string, logger log.Logger) *Exchange {
	return &Exchange{
		handle: handle,
		state:  StateAwaitingStatus,
		start:  time.Now(),
		logger: logger.New("exchange", handle),
	}
}
