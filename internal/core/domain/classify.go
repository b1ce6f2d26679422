package domain

import "errors"

// classified attaches an error class to err without changing its message.
type classified struct {
	err   error
	class error
}

func (c *classified) Error() string { return c.err.Error() }

// Unwrap exposes both the error and its class to errors.Is and errors.As.
func (c *classified) Unwrap() []error { return []error{c.err, c.class} }

// Cause returns the classified error.
func (c *classified) Cause() error { return c.err }

// Classify marks err with class, one of ErrConfiguration, ErrPreBuildCheck,
// ErrBuildFailed or ErrInternal. An already classified error keeps its first class.
func Classify(err, class error) error {
	if err == nil {
		return nil
	}
	var c *classified
	if errors.As(err, &c) {
		return err
	}
	return &classified{err: err, class: class}
}

// ClassOf returns the class of err, or nil for an unclassified error.
func ClassOf(err error) error {
	for _, class := range []error{ErrInternal, ErrConfiguration, ErrPreBuildCheck, ErrBuildFailed} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}
