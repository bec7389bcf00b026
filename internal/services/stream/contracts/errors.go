package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// StreamErrorType categorizes streaming errors so handlers can tell an
// ordinary client disconnect from a real failure.
type StreamErrorType int

const (
	// Expected terminations, not logged as errors
	ClientDisconnect StreamErrorType = iota
	StreamComplete

	// Unexpected failures
	ProviderFailure
	WriteFailure
)

// StreamError carries the error category alongside the session it
// belongs to.
type StreamError struct {
	Type      StreamErrorType
	Message   string
	Cause     error
	SessionID string
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// IsExpected reports whether the error is a normal termination rather
// than a failure.
func (e *StreamError) IsExpected() bool {
	return e.Type == ClientDisconnect || e.Type == StreamComplete
}

func NewClientDisconnectError(sessionID string) *StreamError {
	return &StreamError{
		Type:      ClientDisconnect,
		Message:   "client disconnected",
		SessionID: sessionID,
	}
}

func NewStreamCompleteError(sessionID string) *StreamError {
	return &StreamError{
		Type:      StreamComplete,
		Message:   "stream completed normally",
		SessionID: sessionID,
	}
}

func NewProviderFailureError(sessionID, provider string, cause error) *StreamError {
	return &StreamError{
		Type:      ProviderFailure,
		Message:   fmt.Sprintf("provider %s failed", provider),
		Cause:     cause,
		SessionID: sessionID,
	}
}

func NewWriteFailureError(sessionID, message string, cause error) *StreamError {
	return &StreamError{
		Type:      WriteFailure,
		Message:   message,
		Cause:     cause,
		SessionID: sessionID,
	}
}

// IsClientDisconnect checks whether err is a client disconnect.
func IsClientDisconnect(err error) bool {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Type == ClientDisconnect
	}
	return false
}

// IsExpectedError checks whether err is a normal stream termination.
func IsExpectedError(err error) bool {
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.IsExpected()
	}
	return false
}

// IsConnectionClosed checks whether a raw write error indicates the
// peer went away.
func IsConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection closed") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "use of closed network connection")
}
