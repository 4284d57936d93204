package review

import (
	"errors"
	"fmt"
)

// defaultRunFailure is reported when the server fails a run without a message.
const defaultRunFailure = "Run failed"

var (
	// ErrUnexpectedStatus is returned when a run reports a status outside
	// pending, completed and failed.
	ErrUnexpectedStatus = errors.New("unexpected run status")
	// ErrStreamIncomplete is returned when an event stream ends before the
	// run completed or failed.
	ErrStreamIncomplete = errors.New("event stream ended before run finished")
	// ErrNoTarget is returned when the selected assistant or model is not configured.
	ErrNoTarget = errors.New("no review target configured")
)

// TransportError is a failed call against the remote API.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// RunFailedError reports that the server itself failed the run.
type RunFailedError struct {
	Message string
}

func (e *RunFailedError) Error() string { return e.Message }

func runFailed(msg string) error {
	if msg == "" {
		msg = defaultRunFailure
	}
	return &RunFailedError{Message: msg}
}

func unexpectedStatus(raw string) error {
	return fmt.Errorf("%w: %q", ErrUnexpectedStatus, raw)
}
