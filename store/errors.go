// Package store defines the ContextStore transactional interface and its
// error taxonomy, shared by both the memstore and filestore
// implementations. Grounded on the teacher's fmt.Errorf("%w") wrapping
// idiom (db/state_store.go) and on the trait shape of
// original_source/store/context_store.rs.
package store

import "fmt"

// Kind is the closed set of store-level error categories. httpapi's
// writeError maps each to an HTTP status: NotFound->404, Conflict->409, Invalid->400,
// Internal->500.
type Kind string

const (
	KindNotFound Kind = "not_found"
	KindConflict Kind = "conflict"
	KindInvalid  Kind = "invalid"
	KindInternal Kind = "internal"
)

// Error is the store's error type. It implements error and supports
// errors.As for callers that need to branch on Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error.
func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds a KindInvalid error.
func Invalid(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalid, Msg: fmt.Sprintf(format, args...)}
}

// Internal builds a KindInternal error.
func Internal(format string, args ...interface{}) error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that didn't originate from this package.
func KindOf(err error) Kind {
	if se, ok := err.(*Error); ok {
		return se.Kind
	}
	return KindInternal
}
