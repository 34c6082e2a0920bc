package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindForbidden
	KindInvalidIDSet
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidIDSet:
		return "invalid_id_set"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unexpected"
	}
}

// Error is the typed result of an expected failure. Details lists every
// violated rule; IDs names the offending entities, if any.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	IDs     []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	if len(e.IDs) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.IDs, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels, e.g. errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrInvalidIDSet = &Error{Kind: KindInvalidIDSet}
	ErrUnavailable  = &Error{Kind: KindUnavailable}

	ErrSerializationFailure = &Error{Kind: KindConflict, Message: "concurrent update, try again"}
)

func NewValidation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

func NewConflict(message string, ids ...string) *Error {
	return &Error{Kind: KindConflict, Message: message, IDs: ids}
}

func NewNotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewForbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidIDSet(message string, ids ...string) *Error {
	return &Error{Kind: KindInvalidIDSet, Message: message, IDs: ids}
}

func NewUnavailable(message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: cause}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
