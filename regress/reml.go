package regress

import (
	"fmt"
	"math"
	"time"

	"go.dedis.ch/onet/v3/log"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Options bound the numerical search. Exceeding a bound is a fit failure,
// never a silent partial result.
type Options struct {
	MaxIterations int
	MaxRuntime    time.Duration
	Tolerance     float64
}

// REML is the default Fitter. It maximizes the profiled (restricted)
// log-likelihood over log-variances with Nelder-Mead, so every estimated
// component is positive; a component at the boundary of the parameter space
// converges to a vanishingly small value rather than a negative one.
type REML struct {
	Opt Options
}

// NewREML returns a fitter with the default search bounds.
func NewREML() *REML {
	return &REML{Opt: Options{
		MaxIterations: 2000,
		Tolerance:     1e-10,
	}}
}

// Fit implements Fitter.
func (r *REML) Fit(spec *Spec) (*Fitted, error) {
	start := time.Now()
	if err := spec.Validate(); err != nil {
		return nil, &FitError{Model: spec.Name, Err: err}
	}

	names := spec.ComponentNames()
	x0 := make([]float64, len(names))
	share := stat.Variance(spec.Y, nil) / float64(len(names))
	if share <= 0 {
		share = 1e-6
	}
	for i, nm := range names {
		sv := share
		if s, ok := spec.Start[nm]; ok && s > 0 {
			sv = s
		}
		x0[i] = math.Log(sv)
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			llik, _, err := spec.logLik(sigmaFromLogs(names, theta))
			if err != nil || math.IsInf(llik, 0) {
				return math.Inf(1)
			}
			return -llik
		},
	}
	settings := &optimize.Settings{
		MajorIterations: r.Opt.MaxIterations,
		Runtime:         r.Opt.MaxRuntime,
		Converger: &optimize.FunctionConverge{
			Absolute:   r.Opt.Tolerance,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, &FitError{Model: spec.Name, Err: err}
	}
	switch result.Status {
	case optimize.IterationLimit, optimize.RuntimeLimit, optimize.FunctionEvaluationLimit:
		return nil, &FitError{Model: spec.Name,
			Err: fmt.Errorf("%w: %v after %d evaluations", ErrNoConvergence, result.Status, result.FuncEvaluations)}
	}
	if math.IsInf(result.F, 1) {
		return nil, &FitError{Model: spec.Name, Err: ErrNotPositiveDefinite}
	}

	sigma := sigmaFromLogs(names, result.X)
	llik, beta, err := spec.logLik(sigma)
	if err != nil {
		return nil, &FitError{Model: spec.Name, Err: err}
	}
	log.LLvl1(time.Now().Format(time.StampMilli), "model", spec.Name,
		"fitted in", time.Since(start), "llik", llik, "evals", result.FuncEvaluations)
	return NewFitted(spec, sigma, llik, beta), nil
}

func sigmaFromLogs(names []string, theta []float64) *VarComps {
	sigma := NewVarComps()
	for i, nm := range names {
		sigma.Set(nm, math.Exp(theta[i]))
	}
	return sigma
}
