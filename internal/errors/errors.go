package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind categorizes analysis failures so callers can render differentiated guidance
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindTooLarge
	KindExtractionFailure
	KindExtractionTimeout
	KindAnalysisTimeout
	KindAdvisoryUnavailable
)

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindTooLarge:
		return "TOO_LARGE"
	case KindExtractionFailure:
		return "EXTRACTION_FAILURE"
	case KindExtractionTimeout:
		return "EXTRACTION_TIMEOUT"
	case KindAnalysisTimeout:
		return "ANALYSIS_TIMEOUT"
	case KindAdvisoryUnavailable:
		return "ADVISORY_UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// IsFatal reports whether an error of this kind terminates the request.
// Advisory failures only suppress the narrative.
func (k Kind) IsFatal() bool {
	return k != KindAdvisoryUnavailable
}

// Hint returns user-facing guidance for the kind
func (k Kind) Hint() string {
	switch k {
	case KindTooLarge:
		return "upload a smaller file"
	case KindExtractionFailure:
		return "the file is unreadable; try a clearer scan or a text-based PDF"
	case KindExtractionTimeout:
		return "extraction took too long; try a smaller file"
	case KindAnalysisTimeout:
		return "analysis took too long; try a shorter document"
	case KindAdvisoryUnavailable:
		return "narrative analysis is unavailable; rule-based flags are still reported"
	case KindInvalidInput:
		return "check the request parameters"
	default:
		return ""
	}
}

// Error is the typed error returned across package boundaries
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithContext adds context to an existing Error
func (e *Error) WithContext(context string) *Error {
	e.Context = context
	return e
}

// New creates a new Error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new Error with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as an Error of the given kind. A nil err yields nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries an *Error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
