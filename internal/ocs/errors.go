package ocs

import (
	"errors"
	"fmt"

	apperrors "github.com/alexjbarnes/nextcloud-links/internal/errors"
)

// APIError is a non-success answer from the share API. Body is a
// truncated, sanitized preview of the response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", apperrors.ErrRemoteAPI, e.StatusCode)
	}

	return fmt.Sprintf("%s: status %d: %s", apperrors.ErrRemoteAPI, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return apperrors.ErrRemoteAPI }

// ConnectionError wraps a transport failure: DNS, refused connection,
// TLS, timeout or a body that could not be read.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return e.Err.Error() }

func (e *ConnectionError) Unwrap() []error { return []error{e.Err, apperrors.ErrConnection} }

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
