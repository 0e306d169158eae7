package mediator

import (
	"fmt"

	"ctxstore.dev/governed-context/policy"
)

// Kind extends store.Kind with the two outcomes only the mediator can
// produce: an RBAC denial and a policy-rule violation. httpapi maps both
// alongside store.Kind to the status codes in SPEC_FULL.md §6.
type Kind string

const (
	KindForbidden       Kind = "forbidden"
	KindPolicyViolation Kind = "policy_violation"
)

// Error is the mediator's error type, carrying policy violations when
// Kind is KindPolicyViolation so httpapi can echo them in the response
// body per the 422 contract.
type Error struct {
	Kind       Kind
	Msg        string
	Violations []policy.Violation
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Forbidden builds an RBAC-denial error.
func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// PolicyViolation builds a policy-denial error carrying the violations
// that failed evaluation.
func PolicyViolation(violations []policy.Violation) error {
	return &Error{Kind: KindPolicyViolation, Msg: "policy violation", Violations: violations}
}

// AsMediatorError reports whether err originated from this package and,
// if so, returns it.
func AsMediatorError(err error) (*Error, bool) {
	me, ok := err.(*Error)
	return me, ok
}
