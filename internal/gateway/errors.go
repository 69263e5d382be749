package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound marks a 404 answer: the record or user no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks a 401 or 403 answer.
	ErrUnauthorized = errors.New("unauthorized")
)

// ServerError is a non-2xx answer from the backend.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error %d: %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is match ErrNotFound and ErrUnauthorized.
func (e *ServerError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

// NetworkError is a transport failure: the request may not have reached the
// backend at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRetryable reports whether repeating the operation may succeed.
func IsRetryable(err error) bool {
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		return true
	}
	var serr *ServerError
	if errors.As(err, &serr) {
		return serr.Status >= 500 || serr.Status == http.StatusTooManyRequests
	}
	return false
}

// Message returns the text to show the user for err.
func Message(err error) string {
	var serr *ServerError
	if errors.As(err, &serr) && serr.Message != "" {
		return serr.Message
	}
	return err.Error()
}
