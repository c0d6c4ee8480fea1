package pathexpr

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind rather than matching error strings;
// Error() strings are human-readable and may evolve.
type Kind string

const (
	KindMalformedPath   Kind = "MalformedPath"
	KindUnknownContract Kind = "UnknownContract"
	KindUnknownField    Kind = "UnknownField"
	KindIndexOutOfRange Kind = "IndexOutOfRange"
	KindTypeMismatch    Kind = "TypeMismatch"
)

// Error is the package's structured error type.
//
// Path is the expression being parsed or evaluated when the error
// occurred. Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func newError(kind Kind, path, msg string) error {
	return &Error{Kind: kind, Path: path, Message: msg}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// ErrKind returns the Kind of a structured error, or "" if err is not one.
func ErrKind(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
