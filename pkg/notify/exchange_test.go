package notify_test

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/puppetlabs/relay-notify/pkg/errmark"
	"github.com/puppetlabs/relay-notify/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveAll(t *testing.T, ex *notify.Exchange, events ...interface{}) *notify.Outcome {
	var o *notify.Outcome
	for i, ev := range events {
		out, err := ex.Receive(ev)
		require.NoError(t, err, "event %d (%T)", i, ev)

		if i < len(events)-1 {
			require.Nil(t, out, "event %d (%T) terminated the exchange early", i, ev)
		}
		o = out
	}

	return o
}

func response(code int, chunks ...string) []interface{} {
	events := []interface{}{
		notify.StatusEvent{Code: code},
		notify.HeadersEvent{Header: http.Header{"Content-Type": []string{"application/json"}}},
	}
	for _, c := range chunks {
		events = append(events, notify.ChunkEvent{Data: []byte(c)})
	}

	return append(events, notify.DoneEvent{})
}

func TestExchangeClassification(t *testing.T) {
	tests := []struct {
		Name              string
		Events            []interface{}
		ExpectedKind      notify.OutcomeKind
		ExpectedMessage   string
		ExpectedErrorLogs []string
	}{
		{
			Name:         "created",
			Events:       response(http.StatusCreated, `{"id":"1","url":"https://airbrake.io/locate/1"}`),
			ExpectedKind: notify.OutcomeSuccess,
		},
		{
			Name:         "created without body",
			Events:       response(http.StatusCreated),
			ExpectedKind: notify.OutcomeSuccess,
		},
		{
			Name:              "api error",
			Events:            response(http.StatusBadRequest, `{"err":1,"message":"bad request"}`),
			ExpectedKind:      notify.OutcomeAPIError,
			ExpectedMessage:   "bad request",
			ExpectedErrorLogs: []string{"unexpected API status: 400"},
		},
		{
			Name:            "api error with expected status",
			Events:          response(http.StatusCreated, `{"err":1,"message":"project is disabled"}`),
			ExpectedKind:    notify.OutcomeAPIError,
			ExpectedMessage: "project is disabled",
		},
		{
			Name:         "error flag without message",
			Events:       response(http.StatusCreated, `{"err":1}`),
			ExpectedKind: notify.OutcomeSuccess,
		},
		{
			Name:              "success body with unexpected status",
			Events:            response(http.StatusOK, `{"id":"1"}`),
			ExpectedKind:      notify.OutcomeSuccess,
			ExpectedErrorLogs: []string{"unexpected API status: 200"},
		},
		{
			Name:         "malformed",
			Events:       response(http.StatusCreated, `<html>`),
			ExpectedKind: notify.OutcomeMalformedBody,
		},
		{
			Name:              "malformed with unexpected status",
			Events:            response(http.StatusBadGateway, `{"err":`),
			ExpectedKind:      notify.OutcomeMalformedBody,
			ExpectedErrorLogs: []string{"unexpected API status: 502"},
		},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			lr := notify.NewLogRecorder()

			ex := notify.NewExchange("test", lr.Logger)
			o := receiveAll(t, ex, test.Events...)
			require.NotNil(t, o)

			assert.Equal(t, test.ExpectedKind, o.Kind)
			assert.Equal(t, test.ExpectedMessage, o.Message)
			assert.Equal(t, "test", o.Handle)
			assert.Equal(t, notify.StateTerminal, ex.State())

			errorLogs := lr.AtLevel(log.LvlError)
			require.Len(t, errorLogs, len(test.ExpectedErrorLogs))
			for i, msg := range test.ExpectedErrorLogs {
				assert.Equal(t, msg, errorLogs[i].Msg)
			}
		})
	}
}

func TestExchangeReassemblesChunks(t *testing.T) {
	split := receiveAll(t, notify.NewExchange("split", log.New()), response(http.StatusCreated, `{"a":`, `1}`)...)
	whole := receiveAll(t, notify.NewExchange("whole", log.New()), response(http.StatusCreated, `{"a":1}`)...)

	require.Equal(t, notify.OutcomeSuccess, split.Kind)
	require.Equal(t, whole.Response, split.Response)
	require.Equal(t, map[string]interface{}{"a": float64(1)}, split.Response)
	require.Equal(t, []byte(`{"a":1}`), split.Body)
}

func TestExchangeChunksKeepArrivalOrder(t *testing.T) {
	o := receiveAll(t, notify.NewExchange("ordered", log.New()), response(http.StatusCreated, `["b",`, `"a",`, `"a"]`)...)

	require.Equal(t, notify.OutcomeSuccess, o.Kind)
	require.Equal(t, []interface{}{"b", "a", "a"}, o.Response)
}

func TestExchangeRejectsOutOfSequenceEvents(t *testing.T) {
	tests := []struct {
		Name   string
		Before []interface{}
		Event  interface{}
	}{
		{
			Name:  "chunk before status",
			Event: notify.ChunkEvent{Data: []byte("{}")},
		},
		{
			Name:  "headers before status",
			Event: notify.HeadersEvent{},
		},
		{
			Name:   "done before headers",
			Before: []interface{}{notify.StatusEvent{Code: http.StatusCreated}},
			Event:  notify.DoneEvent{},
		},
		{
			Name: "second status",
			Before: []interface{}{
				notify.StatusEvent{Code: http.StatusCreated},
				notify.HeadersEvent{},
			},
			Event: notify.StatusEvent{Code: http.StatusCreated},
		},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			ex := notify.NewExchange("test", log.New())
			for _, ev := range test.Before {
				_, err := ex.Receive(ev)
				require.NoError(t, err)
			}

			state := ex.State()

			o, err := ex.Receive(test.Event)
			require.Equal(t, notify.ErrOutOfSequence, err)
			require.Nil(t, o)
			require.Equal(t, state, ex.State())
		})
	}
}

func TestExchangeRejectsUnrecognizedEvents(t *testing.T) {
	ex := notify.NewExchange("test", log.New())

	o, err := ex.Receive("hello")
	require.Equal(t, notify.ErrUnrecognizedEvent, err)
	require.Nil(t, o)
	require.Equal(t, notify.StateAwaitingStatus, ex.State())
}

func TestExchangeTransportError(t *testing.T) {
	lr := notify.NewLogRecorder()
	ex := notify.NewExchange("test", lr.Logger)

	receiveAll(t, ex,
		notify.StatusEvent{Code: http.StatusCreated},
		notify.HeadersEvent{},
		notify.ChunkEvent{Data: []byte(`{"id":`)},
	)

	reset := fmt.Errorf("read tcp: %w", syscall.ECONNRESET)

	o, err := ex.Receive(notify.ErrorEvent{Err: reset})
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.Equal(t, notify.OutcomeTransportError, o.Kind)
	assert.Equal(t, http.StatusCreated, o.StatusCode)
	assert.Empty(t, o.Body)
	assert.True(t, o.Transient)
	assert.True(t, errmark.IsTransient(o.Err))
	assert.True(t, errors.Is(o.Err, syscall.ECONNRESET))

	_, err = ex.Receive(notify.DoneEvent{})
	require.Equal(t, notify.ErrExchangeTerminated, err)

	// The exchange reports but does not log its outcome.
	require.Empty(t, lr.AtLevel(log.LvlError))
}

func TestExchangeTransportErrorBeforeStatus(t *testing.T) {
	ex := notify.NewExchange("test", log.New())

	o, err := ex.Receive(notify.ErrorEvent{Err: errors.New("unsupported protocol scheme")})
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.Equal(t, notify.OutcomeTransportError, o.Kind)
	assert.Equal(t, 0, o.StatusCode)
	assert.False(t, o.Transient)
}
