package errmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

type TransientRule func(err error) bool

func TransientRuleExact(want error) TransientRule {
	return func(err error) bool {
		return errors.Is(err, want)
	}
}

func TransientAll(rules ...TransientRule) TransientRule {
	return func(err error) bool {
		for _, rule := range rules {
			if !rule(err) {
				return false
			}
		}

		return true
	}
}

var TransientAlways = TransientAll()

func TransientAny(rules ...TransientRule) TransientRule {
	return func(err error) bool {
		for _, rule := range rules {
			if rule(err) {
				return true
			}
		}

		return false
	}
}

var TransientIfConnection = TransientAny(
	TransientRuleExact(syscall.ECONNREFUSED),
	TransientRuleExact(syscall.ECONNRESET),
	TransientRuleExact(syscall.ECONNABORTED),
	TransientRuleExact(syscall.EPIPE),
	TransientRuleExact(io.ErrUnexpectedEOF),
)

var TransientIfTimeout TransientRule = func(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

var TransientIfNetwork = TransientAny(
	TransientIfConnection,
	TransientIfTimeout,
)

func TransientPredicate(rule TransientRule, pred func() bool) TransientRule {
	return func(err error) bool {
		if pred() {
			return rule(err)
		}

		return false
	}
}

type TransientError struct {
	Delegate error
}

var _ Marker = &TransientError{}

func (te *TransientError) Error() string {
	return fmt.Sprintf("transient: %+v", te.Delegate)
}

func (te *TransientError) Unwrap() error {
	return te.Delegate
}

func (te *TransientError) Map(fn func(err error) error) error {
	te.Delegate = fn(te.Delegate)
	return te
}

func MarkTransient(err error, rules ...TransientRule) error {
	if err == nil {
		return nil
	}

	return MapFirst(err, func(err error) error {
		if _, ok := err.(*TransientError); ok {
			return err
		} else if TransientAny(rules...)(err) {
			return &TransientError{Delegate: err}
		}

		return err
	})
}

// IsTransient reports whether the resolved error carries the transient marker.
func IsTransient(err error) bool {
	_, ok := Resolve(err).(*TransientError)
	return ok
}

func IfTransient(err error, fn func(err error)) {
	if te, ok := err.(*TransientError); ok {
		fn(te.Delegate)
	}
}

func IfNotTransient(err error, fn func(err error)) {
	if _, ok := err.(*TransientError); !ok {
		fn(err)
	}
}
