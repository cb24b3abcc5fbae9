// Package edai provides a Go client for the EDAI adjudication API.
package edai

import (
	"errors"
	"fmt"
)

// Error represents an error from the EDAI API with the HTTP status code
// and the server's error message. Details carries the adjudication result
// when a verdict could not be produced.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Details    *AdjudicateResponse
}

func (e *Error) Error() string {
	return fmt.Sprintf("edai: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func hasStatus(err error, status int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == status
	}
	return false
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool { return hasStatus(err, 404) }

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool { return hasStatus(err, 401) }

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool { return hasStatus(err, 429) }

// IsConflict returns true if the error is a 409, which the verdict endpoint
// returns while another adjudication of the same case is running.
func IsConflict(err error) bool { return hasStatus(err, 409) }

// IsUnavailable returns true if the error is a 503: the model provider
// failed and the case was left unchanged.
func IsUnavailable(err error) bool { return hasStatus(err, 503) }
