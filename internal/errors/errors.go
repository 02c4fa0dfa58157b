// Package errors defines the sentinel errors shared by the link sharing
// packages. Typed errors elsewhere wrap these so callers can match them
// with errors.Is.
package errors

import "errors"

// Local validation errors.
var (
	ErrMissingCredentials = errors.New("nextcloud credentials are incomplete")
	ErrInvalidCredentials = errors.New("invalid nextcloud credentials")
	ErrInvalidPath        = errors.New("path does not exist")
	ErrOutsideProject     = errors.New("path is outside the project")
)

// Server/transport errors.
var (
	ErrRemoteAPI           = errors.New("share API request failed")
	ErrConnection          = errors.New("could not reach share server")
	ErrUnparseableResponse = errors.New("share API response has no link URL")
	ErrParse               = errors.New("malformed share API response")
)
