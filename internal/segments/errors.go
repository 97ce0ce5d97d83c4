package segments

import (
	"errors"
	"fmt"
)

// Kind classifies a segmentation failure.
type Kind string

const (
	// KindAuth is a missing or invalid provider credential. Only raised at construction.
	KindAuth Kind = "AUTH"
	// KindInvalidInput is a malformed request, raised before any remote call.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindProcessing covers detection, tracking and synthesis failures.
	KindProcessing Kind = "PROCESSING"
)

// ErrStrategyNotSupported is returned for strategies that are named but not implemented.
var ErrStrategyNotSupported = errors.New("split strategy not supported")

// Error is the typed error surfaced by the segmentation service.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewAuthError(message string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: message, Cause: cause}
}

func NewInvalidInputError(message string, cause error) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Cause: cause}
}

func NewProcessingError(message string, cause error) *Error {
	return &Error{Kind: KindProcessing, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindProcessing for any other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var segErr *Error
	if errors.As(err, &segErr) {
		return segErr.Kind
	}
	return KindProcessing
}

// AsProcessing leaves typed errors untouched and wraps everything else as PROCESSING.
func AsProcessing(message string, err error) error {
	if err == nil {
		return nil
	}
	var segErr *Error
	if errors.As(err, &segErr) {
		return err
	}
	return NewProcessingError(message, err)
}
