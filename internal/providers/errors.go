package providers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
)

type rateLimitError struct {
	err error
}

func (e *rateLimitError) Error() string { return "rate limited: " + e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

type authError struct {
	message string
	err     error
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

func (e *authError) Unwrap() error { return e.err }

type serverError struct {
	statusCode int
	err        error
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error (status %d): %v", e.statusCode, e.err)
}

func (e *serverError) Unwrap() error { return e.err }

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

// IsRateLimited checks if the server rejected a call with 429.
func IsRateLimited(err error) bool {
	var re *rateLimitError
	return errors.As(err, &re)
}

// IsServerError checks if the server failed with a 5xx status.
func IsServerError(err error) bool {
	var se *serverError
	return errors.As(err, &se)
}

// classify wraps SDK API errors in the package's typed errors. Other errors
// are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return &authError{message: apiErr.Message, err: err}
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{err: err}
	case apiErr.StatusCode >= 500:
		return &serverError{statusCode: apiErr.StatusCode, err: err}
	}
	return err
}
