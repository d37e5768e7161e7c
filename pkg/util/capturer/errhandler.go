package capturer

import (
	"fmt"
	"net/http"

	utilapi "github.com/puppetlabs/leg/httputil/api"
	"github.com/puppetlabs/relay-notify/pkg/notice"
)

type Emitter interface {
	EmitEvent(ev notice.Event) bool
}

// CaptureError reports err at error level with the given request parameters.
func CaptureError(e Emitter, err error, params map[string]interface{}) bool {
	return e.EmitEvent(notice.Event{
		Level:     notice.LevelError,
		Body:      err,
		Params:    params,
		Backtrace: notice.NewBacktrace(1),
	})
}

func capturePanic(e Emitter, rv interface{}, params map[string]interface{}) {
	ev := notice.Event{
		Level:     notice.LevelCritical,
		Params:    params,
		Backtrace: notice.NewBacktrace(2),
	}

	switch rvt := rv.(type) {
	case error:
		ev.Body = rvt
	default:
		ev.Body = &notice.Error{Type: "panic", Message: fmt.Sprintf("%+v", rvt)}
	}

	e.EmitEvent(ev)
}

// CapturePanic reports a panic in progress and then continues panicking. It
// must be deferred directly:
//
//	defer capturer.CapturePanic(d, nil)
func CapturePanic(e Emitter, params map[string]interface{}) {
	if rv := recover(); rv != nil {
		capturePanic(e, rv, params)
		panic(rv)
	}
}

// CapturePanicHandler returns HTTP middleware that reports panics raised by
// the next handler and answers the request with a 500.
func CapturePanicHandler(e Emitter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rv := recover()
				if rv == nil {
					return
				} else if rv == http.ErrAbortHandler {
					panic(rv)
				}

				capturePanic(e, rv, map[string]interface{}{
					"method": r.Method,
					"url":    r.URL.String(),
				})

				utilapi.WriteObjectWithStatus(r.Context(), w, http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
