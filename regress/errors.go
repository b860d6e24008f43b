package regress

import (
	"errors"
	"fmt"
)

var (
	// ErrBadSpec reports an invalid model specification.
	ErrBadSpec = errors.New("regress: invalid model specification")

	// ErrNotPositiveDefinite reports a covariance matrix that cannot be
	// factorized at the requested variance components.
	ErrNotPositiveDefinite = errors.New("regress: covariance matrix not positive definite")

	// ErrNoConvergence reports a fit stopped by its iteration or time bound.
	ErrNoConvergence = errors.New("regress: fitter did not converge")
)

// FitError wraps a fit failure with the model (and, when known, the
// covariance term) it occurred in.
type FitError struct {
	Model string
	Term  string
	Err   error
}

func (e *FitError) Error() string {
	if e.Term != "" {
		return fmt.Sprintf("fitting model %q (term %q): %v", e.Model, e.Term, e.Err)
	}
	return fmt.Sprintf("fitting model %q: %v", e.Model, e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }
