// Package errors provides structured error types for focusbot.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound         = errors.New("record not found")
	ErrEmptyStack       = errors.New("dialogue state stack is empty")
	ErrAlreadyFired     = errors.New("scheduled job already fired")
	ErrRecipientBlocked = errors.New("recipient blocked the bot")
	ErrValidation       = errors.New("invalid input")
	ErrTimeout          = errors.New("operation timed out")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrUnavailable      = errors.New("service unavailable")
)

// TransportError represents an error from a messaging transport call.
type TransportError struct {
	Transport  string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transport error (status %d): %s: %v", e.Transport, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s transport error (status %d): %s", e.Transport, e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError creates a new transport error.
func NewTransportError(transport string, statusCode int, message string) *TransportError {
	return &TransportError{Transport: transport, StatusCode: statusCode, Message: message}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
// Blocked recipients are permanent: the caller bans the user instead of retrying.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		switch te.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
