// Package regress fits Gaussian linear mixed models with named proportional
// covariance structures. It defines the fitter contract consumed by the GBLUP
// pipeline and ships a default REML/ML implementation; any collaborator
// satisfying Fitter can stand in for it.
package regress

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ResidualName is the reserved name of the implicit residual (identity)
// variance component.
const ResidualName = "In"

// Term is one named random-effect covariance structure. K must be symmetric
// positive semidefinite and indexed identically to the response.
type Term struct {
	Name string
	K    *mat.SymDense
}

// Spec describes one mixed model. The residual identity term is implicit and
// its variance is reported under ResidualName. A Spec is treated as read-only
// once handed to a Fitter.
type Spec struct {
	Name string

	// Response vector and fixed-effect design (n x p, intercept included by
	// the caller).
	Y      []float64
	X      *mat.Dense
	XNames []string

	// Ordered random-effect covariance terms.
	Terms []Term

	// Optional per-observation weights; the residual covariance becomes
	// sigma_In * diag(1/w). Nil means unweighted.
	Weights []float64

	// Optional starting variances by component name, ResidualName included.
	Start map[string]float64

	// Restricted selects the REML likelihood; otherwise the full (ML)
	// likelihood is maximized.
	Restricted bool
}

// NumObs returns the number of observations.
func (s *Spec) NumObs() int { return len(s.Y) }

// NumFixed returns the number of fixed-effect columns.
func (s *Spec) NumFixed() int {
	if s.X == nil {
		return 0
	}
	_, p := s.X.Dims()
	return p
}

// Term returns the named covariance term.
func (s *Spec) Term(name string) (Term, bool) {
	for _, t := range s.Terms {
		if t.Name == name {
			return t, true
		}
	}
	return Term{}, false
}

// ComponentNames returns the variance-component names in model order, the
// residual last.
func (s *Spec) ComponentNames() []string {
	names := make([]string, 0, len(s.Terms)+1)
	for _, t := range s.Terms {
		names = append(names, t.Name)
	}
	return append(names, ResidualName)
}

// Validate checks dimensions and naming before a fit is attempted.
func (s *Spec) Validate() error {
	n := len(s.Y)
	if n == 0 {
		return fmt.Errorf("%w: empty response", ErrBadSpec)
	}
	if s.X == nil {
		return fmt.Errorf("%w: missing fixed-effect design", ErrBadSpec)
	}
	xr, xc := s.X.Dims()
	if xr != n {
		return fmt.Errorf("%w: design has %d rows for %d observations", ErrBadSpec, xr, n)
	}
	if xc == 0 || xc >= n {
		return fmt.Errorf("%w: %d fixed-effect columns for %d observations", ErrBadSpec, xc, n)
	}
	if s.Weights != nil {
		if len(s.Weights) != n {
			return fmt.Errorf("%w: %d weights for %d observations", ErrBadSpec, len(s.Weights), n)
		}
		for i, w := range s.Weights {
			if w <= 0 {
				return fmt.Errorf("%w: non-positive weight %v at observation %d", ErrBadSpec, w, i)
			}
		}
	}
	seen := make(map[string]bool, len(s.Terms))
	for _, t := range s.Terms {
		if t.Name == "" || t.Name == ResidualName {
			return fmt.Errorf("%w: covariance term name %q is reserved", ErrBadSpec, t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate covariance term %q", ErrBadSpec, t.Name)
		}
		seen[t.Name] = true
		if t.K == nil {
			return fmt.Errorf("%w: covariance term %q has no matrix", ErrBadSpec, t.Name)
		}
		if kr := t.K.Symmetric(); kr != n {
			return fmt.Errorf("%w: covariance term %q is %dx%d for %d observations", ErrBadSpec, t.Name, kr, kr, n)
		}
	}
	return nil
}

// Without returns a copy of the spec with the named covariance term removed.
// Starting values are not carried over.
func (s *Spec) Without(name string) (*Spec, error) {
	if _, ok := s.Term(name); !ok {
		return nil, fmt.Errorf("%w: no covariance term %q to remove", ErrBadSpec, name)
	}
	out := &Spec{
		Name:       s.Name,
		Y:          s.Y,
		X:          s.X,
		XNames:     s.XNames,
		Weights:    s.Weights,
		Restricted: s.Restricted,
	}
	for _, t := range s.Terms {
		if t.Name != name {
			out.Terms = append(out.Terms, t)
		}
	}
	return out, nil
}
