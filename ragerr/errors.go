// Package ragerr defines the complete set of error kinds the core raises or
// propagates (spec.md §7), following the teacher's struct-with-Error() style
// (validation.ValidationError, outputparser.OutputParserError) instead of a
// flat set of sentinel errors, so callers can carry an operation name and a
// wrapped cause while still matching on Kind with errors.Is/errors.As.
package ragerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in spec.md §7. Kind itself satisfies
// the error interface so errors.Is(err, ragerr.NotFound) works without a
// separate sentinel type.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	InvalidInput         Kind = "invalid_input"
	NotFound             Kind = "not_found"
	InvalidConfiguration Kind = "invalid_configuration"
	ProviderUnavailable  Kind = "provider_unavailable"
	ModelNotFound        Kind = "model_not_found"
	Timeout              Kind = "timeout"
	RateLimited          Kind = "rate_limited"
	Conflict             Kind = "conflict"
	PersistenceError     Kind = "persistence_error"
)

// E wraps an error with a Kind and the operation that produced it.
type E struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *E) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ragerr.NotFound) match any *E carrying that Kind.
func (e *E) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// New builds an *E with the given kind, operation label, and wrapped cause
// (which may be nil).
func New(kind Kind, op string, cause error) *E {
	return &E{Kind: kind, Op: op, Err: cause}
}

// Of reports the Kind of err if it is (or wraps) an *E, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *E
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
