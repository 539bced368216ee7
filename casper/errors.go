package casper

import (
	"errors"
)

var (
	_ error = (*ValidationError)(nil)

	// ErrInvalidEstimate signals that an estimate does not have the shape
	// expected by the protocol of the message or view it is used with.
	ErrInvalidEstimate = newValidationError("estimate has wrong shape for protocol")
	// ErrUnknownValidator signals that a validator is not a member of the
	// validator set.
	ErrUnknownValidator = newValidationError("unknown validator")
	// ErrDuplicateValidator signals an attempt to register the same validator
	// twice.
	ErrDuplicateValidator = newValidationError("duplicate validator")
	// ErrInvalidWeight signals a validator weight that is not strictly positive.
	ErrInvalidWeight = newValidationError("validator weight must be positive")
	// ErrNilMessage signals that a nil message was supplied where a message is
	// required.
	ErrNilMessage = newValidationError("message cannot be nil")

	// ErrJustificationSenderMismatch signals that a justification credits a
	// message to a validator other than its sender.
	ErrJustificationSenderMismatch = errors.New("justification references message under wrong sender")
	// ErrIncompatibleProtocols signals a comparison between messages or views
	// of different protocol variants.
	ErrIncompatibleProtocols = errors.New("incompatible protocol variants")
	// ErrFinalityReverted signals that a message was found safe while
	// conflicting with a message previously finalized by the same observer.
	ErrFinalityReverted = errors.New("safe estimate conflicts with finalized estimate")
)

// ValidationError signals caller misuse of the core: a request that can never
// succeed as given. It leaves existing state untouched.
type ValidationError struct{ message string }

func newValidationError(message string) ValidationError { return ValidationError{message: message} }
func (e ValidationError) Error() string                 { return e.message }
