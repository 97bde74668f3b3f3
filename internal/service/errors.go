package service

import "errors"

var (
	// ErrNotFound indicates the referenced file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession is returned for missing, expired or tampered session tokens.
	ErrInvalidSession = errors.New("invalid session")
)

// ValidationError carries a client facing message for rejected input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }
