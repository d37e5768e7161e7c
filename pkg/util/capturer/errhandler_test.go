package capturer_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/puppetlabs/relay-notify/pkg/notice"
	"github.com/puppetlabs/relay-notify/pkg/util/capturer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmitter struct {
	events []notice.Event
}

func (me *mockEmitter) EmitEvent(ev notice.Event) bool {
	me.events = append(me.events, ev)
	return true
}

func TestCaptureError(t *testing.T) {
	me := &mockEmitter{}

	err := errors.New("boom")
	require.True(t, capturer.CaptureError(me, err, map[string]interface{}{"job": "sync"}))

	require.Len(t, me.events, 1)
	ev := me.events[0]
	assert.Equal(t, notice.LevelError, ev.Level)
	assert.Equal(t, err, ev.Body)
	assert.Equal(t, map[string]interface{}{"job": "sync"}, ev.Params)
	require.NotEmpty(t, ev.Backtrace)
	assert.Contains(t, ev.Backtrace[0].Function, "TestCaptureError")
}

func TestCapturePanic(t *testing.T) {
	me := &mockEmitter{}

	require.PanicsWithValue(t, "kaboom", func() {
		defer capturer.CapturePanic(me, nil)
		panic("kaboom")
	})

	require.Len(t, me.events, 1)
	ev := me.events[0]
	assert.Equal(t, notice.LevelCritical, ev.Level)
	assert.Equal(t, &notice.Error{Type: "panic", Message: "kaboom"}, ev.Body)
	assert.NotEmpty(t, ev.Backtrace)
}

func TestCapturePanicHandler(t *testing.T) {
	me := &mockEmitter{}

	panicErr := errors.New("handler failed")
	h := capturer.CapturePanicHandler(me)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(panicErr)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/notices", nil))
	require.Equal(t, http.StatusInternalServerError, resp.Code)

	require.Len(t, me.events, 1)
	ev := me.events[0]
	assert.Equal(t, panicErr, ev.Body)
	assert.Equal(t, http.MethodPost, ev.Params["method"])
	assert.Equal(t, "/notices", ev.Params["url"])
}

func TestCapturePanicHandlerPassesThrough(t *testing.T) {
	me := &mockEmitter{}

	h := capturer.CapturePanicHandler(me)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Empty(t, me.events)
}
