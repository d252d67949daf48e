package tracker

import (
	"errors"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindStoreUnavailable Kind = "store_unavailable"
	KindConflict         Kind = "conflict"
	KindUnconfirmed      Kind = "unconfirmed"
)

// Error is returned by every tracker operation that fails. Fields holds
// per-field messages for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *Error) Unwrap() error { return e.Err }

func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsKind reports whether err is a tracker error of the given kind.
func IsKind(err error, kind Kind) bool {
	te, ok := AsError(err)
	return ok && te.Kind == kind
}

// ErrNotSignedIn is returned by Session operations before SignIn.
var ErrNotSignedIn = errors.New("not signed in")

func newValidationError(fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

func newNotFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func newConflictError(msg string, err error) error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

func newUnconfirmedError(op string) error {
	return &Error{Kind: KindUnconfirmed, Message: op + " requires confirmation"}
}

func newStoreError(op string, err error) error {
	return &Error{Kind: KindStoreUnavailable, Message: op + ": store unavailable", Err: err}
}
