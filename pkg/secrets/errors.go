package secrets

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is.
var (
	ErrInvalidFormat    = errors.New("invalid secret format")
	ErrDecryptionFailed = errors.New("secret decryption failed")
)

// InvalidFormatError reports a malformed reference, an unknown engine or
// parameters rejected by an engine.
//
// Message is shown verbatim to users, so it must never contain parameter
// values or secret material.
type InvalidFormatError struct {
	Message string
}

// Error implements the error interface.
func (e InvalidFormatError) Error() string {
	return e.Message
}

// Is reports whether target is ErrInvalidFormat.
func (e InvalidFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

// Invalidf builds an InvalidFormatError from a format string.
func Invalidf(format string, args ...interface{}) InvalidFormatError {
	return InvalidFormatError{Message: fmt.Sprintf(format, args...)}
}

// EngineNotFoundError builds the error returned when a reference names an
// engine that is not registered.
func EngineNotFoundError(engineID string) InvalidFormatError {
	return InvalidFormatError{Message: "Secret Engine does not exist: " + engineID}
}

// DecryptionError reports a failure while producing or materializing a
// secret value.
//
// Error() only renders Engine, Op and Suggestion. The underlying cause may
// contain backend details (bucket names, paths) and is kept for diagnostics
// through Unwrap.
type DecryptionError struct {
	// Engine is the identifier of the engine that failed.
	Engine string

	// Op is the failing step, e.g. "fetch", "extract key", "write secret file".
	Op string

	// Suggestion is optional remediation advice. It must not contain values.
	Suggestion string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e DecryptionError) Error() string {
	msg := "failed to decrypt secret"
	if e.Engine != "" {
		msg += " with engine " + e.Engine
	}
	if e.Op != "" {
		msg += ": " + e.Op + " failed"
	}
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e DecryptionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecryptionFailed.
func (e DecryptionError) Is(target error) bool {
	return target == ErrDecryptionFailed
}
