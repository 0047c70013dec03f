package processor

import "errors"

// ErrOutcomeMismatch is returned (as a fatal error) when a BatchOperation
// reports an Outcome that does not account for exactly the submitted items.
var ErrOutcomeMismatch = errors.New("batch outcome does not partition the submitted batch")

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as non-retryable. A BatchOperation returning a fatal error
// aborts the whole Process call.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	if IsFatal(err) {
		return err
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err (or anything it wraps) was marked with Fatal.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
