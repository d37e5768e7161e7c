package notice

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelNotice   = "notice"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
	LevelAlert    = "alert"
	LevelEmerg    = "emergency"

	DefaultLevel = LevelError
)

// Event is a single report request. Body is an opaque description of the
// failure: an *Error, an error, a string, or any other value.
type Event struct {
	Level     string
	Body      interface{}
	Params    map[string]interface{}
	Session   map[string]interface{}
	Backtrace []Frame
}

// Error is the wire form of one error in a notice.
type Error struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Backtrace []Frame `json:"backtrace"`
}

func (e *Error) Error() string {
	if e.Type == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorFromBody converts an event body into its wire form. The backtrace is
// used when the body does not already carry one. A nil pointer body is
// reported as "<nil>" without calling any of its methods.
func ErrorFromBody(body interface{}, backtrace []Frame) *Error {
	var e *Error

	if v := reflect.ValueOf(body); v.Kind() == reflect.Ptr && v.IsNil() {
		typ := "error"
		if _, ok := body.(*Error); !ok {
			typ = errorType(body)
		}

		body = &Error{Type: typ, Message: "<nil>"}
	}

	switch bt := body.(type) {
	case *Error:
		cp := *bt
		e = &cp
	case error:
		e = &Error{Type: errorType(bt), Message: bt.Error()}
	case string:
		e = &Error{Type: "error", Message: bt}
	case nil:
		e = &Error{Type: "error", Message: "<nil>"}
	default:
		e = &Error{Type: errorType(bt), Message: fmt.Sprintf("%+v", bt)}
	}

	if len(e.Backtrace) == 0 {
		e.Backtrace = backtrace
	}
	if e.Backtrace == nil {
		e.Backtrace = []Frame{}
	}

	return e
}

func errorType(v interface{}) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Name() == "" {
		return strings.TrimPrefix(t.String(), "*")
	}
	if t.PkgPath() == "" {
		return t.Name()
	}

	return t.PkgPath() + "." + t.Name()
}
