package errmark

// UserError marks failures caused by operator input, such as invalid
// configuration, as opposed to failures of the reporting path itself.
type UserError struct {
	Delegate error
}

var _ Marker = &UserError{}

func (ue *UserError) Error() string {
	return ue.Delegate.Error()
}

func (ue *UserError) Unwrap() error {
	return ue.Delegate
}

func (ue *UserError) Map(fn func(err error) error) error {
	ue.Delegate = fn(ue.Delegate)
	return ue
}

func MarkUser(err error) error {
	if err == nil {
		return nil
	}

	return MapFirst(err, func(err error) error {
		return &UserError{Delegate: err}
	})
}

// IsUser reports whether the resolved error carries the user marker.
func IsUser(err error) bool {
	_, ok := Resolve(err).(*UserError)
	return ok
}

func IfUser(err error, fn func(err error)) {
	if ue, ok := err.(*UserError); ok {
		fn(ue.Delegate)
	}
}

func IfNotUser(err error, fn func(err error)) {
	if _, ok := err.(*UserError); !ok {
		fn(err)
	}
}
