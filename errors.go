package polyvox

import (
	"errors"
	"fmt"
)

type ErrorStatus string

const (
	ErrorStatusValidation          ErrorStatus = "validation_error"
	ErrorStatusInvalidStreamingURL ErrorStatus = "invalid_streaming_url"
	ErrorStatusNegotiation         ErrorStatus = "negotiation_error"
	ErrorStatusVoiceStream         ErrorStatus = "voice_stream_error"
	ErrorStatusUnexpectedClose     ErrorStatus = "unexpected_close"
	ErrorStatusIO                  ErrorStatus = "io_error"
	ErrorStatusCanceled            ErrorStatus = "canceled"
	ErrorStatusInvalidState        ErrorStatus = "invalid_state"
)

// Error is the error type returned by all operations in this package.
type Error struct {
	Status  ErrorStatus
	Message string
	// Code and ReasonCode carry the server-reported error identifiers for
	// voice_stream_error. Nil/empty otherwise.
	Code       string
	ReasonCode string
	Cause      error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("polyvox: %s (code=%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("polyvox: %s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(status ErrorStatus, message string) *Error {
	return &Error{
		Status:  status,
		Message: message,
	}
}

func NewErrorWithCause(status ErrorStatus, message string, cause error) *Error {
	return &Error{
		Status:  status,
		Message: message,
		Cause:   cause,
	}
}

// NewStreamError builds the error for a server-reported in-band protocol error.
func NewStreamError(message, code, reasonCode string) *Error {
	return &Error{
		Status:     ErrorStatusVoiceStream,
		Message:    message,
		Code:       code,
		ReasonCode: reasonCode,
	}
}

// IsErrorStatus reports whether err is a *Error with the given status.
func IsErrorStatus(err error, status ErrorStatus) bool {
	var pvErr *Error
	if errors.As(err, &pvErr) {
		return pvErr.Status == status
	}
	return false
}

var (
	ErrTransportNotOpen     = NewError(ErrorStatusInvalidState, "transport is not open")
	ErrSessionAlreadyActive = NewError(ErrorStatusInvalidState, "a voice session is already active")
	ErrSessionCanceled      = NewError(ErrorStatusCanceled, "session canceled by caller")
)
