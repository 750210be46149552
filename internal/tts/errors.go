package tts

import (
	"context"
	"errors"
	"fmt"
)

// Common studio errors
var (
	// ErrNoEngineConfigured indicates no synthesis backend has been selected
	ErrNoEngineConfigured = errors.New("no TTS engine configured - specify --engine gateway or --engine aivis")

	// ErrInvalidEngine indicates an unknown engine was specified
	ErrInvalidEngine = errors.New("invalid TTS engine specified")

	// ErrSynthesisFailed indicates synthesis operation failed
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrAudioDeviceUnavailable indicates audio device cannot be accessed
	ErrAudioDeviceUnavailable = errors.New("audio device unavailable")

	// ErrNoVoiceSelected indicates synthesis was requested before a voice was chosen
	ErrNoVoiceSelected = errors.New("no voice selected")

	// ErrLineNotFound indicates an unknown line id
	ErrLineNotFound = errors.New("line not found")

	// ErrNothingToExport indicates no line has cached audio
	ErrNothingToExport = errors.New("no audio has been generated")

	// ErrUnsupported indicates the backend lacks a feature
	ErrUnsupported = errors.New("not supported by the current backend")

	// ErrInvalidSpeed indicates speed value is out of range
	ErrInvalidSpeed = errors.New("speed must be between 0.5 and 2.0")

	// ErrCanceled indicates an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// TTSError represents a studio error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrCanceled) match canceled errors whatever their cause.
func (e *TTSError) Is(target error) bool {
	return target == ErrCanceled && e.Code == ErrorCodeCanceled
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Synthesis errors
	ErrorCodeNetwork           ErrorCode = "NETWORK"
	ErrorCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// Audio errors
	ErrorCodePlayback ErrorCode = "PLAYBACK"

	// Input errors
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorCodeUnsupported  ErrorCode = "UNSUPPORTED"

	// System errors
	ErrorCodeCanceled ErrorCode = "CANCELED"
)

// NewTTSError creates a new studio error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewNetworkError wraps an unreachable backend or non-2xx response.
func NewNetworkError(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeNetwork, message, cause)
}

// NewMalformedResponseError wraps a response missing expected fields.
func NewMalformedResponseError(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodeMalformedResponse, message, cause)
}

// NewPlaybackError wraps a device that refused to play.
func NewPlaybackError(message string, cause error) *TTSError {
	return NewTTSError(ErrorCodePlayback, message, cause)
}

// NewCanceledError marks a user-initiated abort.
func NewCanceledError(cause error) *TTSError {
	return NewTTSError(ErrorCodeCanceled, "request canceled", cause)
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsFatal returns true if the error should end a play-all session
func (e *TTSError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable,
		ErrorCodePlayback:
		return true
	default:
		return false
	}
}

// IsCanceled reports whether err is a user-initiated abort rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// CodeOf extracts the error code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var ttsErr *TTSError
	if errors.As(err, &ttsErr) {
		return ttsErr.Code
	}
	return ""
}
