package core

import "fmt"

// ErrorKind classifies a submission failure.
type ErrorKind string

const (
	// ErrorKindUserInput indicates malformed user input (bad caption
	// extension, unrecognized MIME). Non-fatal, advisory only.
	ErrorKindUserInput ErrorKind = "user_input"
	// ErrorKindCapacity indicates identifier exhaustion. Fatal to the
	// single upload and an operator signal.
	ErrorKindCapacity ErrorKind = "capacity"
	// ErrorKindUnauthorized indicates a refused identity or password.
	ErrorKindUnauthorized ErrorKind = "unauthorized"
	// ErrorKindIO indicates a download or write failure.
	ErrorKindIO ErrorKind = "io"
)

// UploadError is the base error type for submission processing failures.
// Message is safe to echo to the sender; Err holds the internal detail
// that goes to the log only.
type UploadError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text suitable for an untrusted sender.
func (e *UploadError) UserMessage() string {
	return e.Message
}

// NewCapacityError creates an identifier-exhaustion error.
func NewCapacityError(message string, err error) *UploadError {
	return &UploadError{Kind: ErrorKindCapacity, Message: message, Err: err}
}

// NewUnauthorizedError creates a refused-authorization error.
func NewUnauthorizedError(message string) *UploadError {
	return &UploadError{Kind: ErrorKindUnauthorized, Message: message}
}

// NewIOError creates a download/write failure error.
func NewIOError(message string, err error) *UploadError {
	return &UploadError{Kind: ErrorKindIO, Message: message, Err: err}
}
