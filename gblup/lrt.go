package gblup

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/statgen/gblup/regress"
)

// ErrRefitInstability reports a reduced refit whose likelihood exceeds the
// full model's beyond numerical tolerance. The likelihood difference is
// meaningless in that case and no p-value is produced.
var ErrRefitInstability = errors.New("gblup: reduced model likelihood exceeds full model")

const llikTol = 1e-6

// VarCompRow compares one variance component across the full and reduced
// fits. Reduced is NaN for the tested component, which does not exist in the
// reduced model.
type VarCompRow struct {
	Name    string
	Full    float64
	Reduced float64
	PctFull float64
}

// LRTResult is the outcome of one likelihood-ratio test.
type LRTResult struct {
	PValue      float64
	LlikFull    float64
	LlikReduced float64
	Diff        float64
	Table       []VarCompRow
}

// LikelihoodRatioTest tests the null hypothesis that the named variance
// component of a fitted model is zero. The reduced model drops the
// component's covariance term, warm-starts from the remaining full-model
// estimates and keeps the full model's likelihood mode so the two
// log-likelihoods stay comparable. The p-value halves the chi-squared(1)
// tail probability: a variance tested at the boundary of its parameter space
// follows a 50:50 mixture of a point mass at zero and chi-squared(1) under
// the null, so P(chi2_1 > 2*diff)/2 never exceeds 0.5.
func LikelihoodRatioTest(fitter regress.Fitter, full *regress.Fitted, term string) (*LRTResult, error) {
	if _, ok := full.Sigma.Get(term); !ok {
		return nil, fmt.Errorf("gblup: model %q has no variance component %q", full.Spec.Name, term)
	}
	reducedSpec, err := full.Spec.Without(term)
	if err != nil {
		return nil, err
	}
	reducedSpec.Name = full.Spec.Name + " (reduced)"
	start := make(map[string]float64)
	for _, nm := range full.Sigma.Names() {
		if nm == term {
			continue
		}
		if v, ok := full.Sigma.Get(nm); ok && v > 0 {
			start[nm] = v
		}
	}
	reducedSpec.Start = start

	reduced, err := fitter.Fit(reducedSpec)
	if err != nil {
		return nil, fmt.Errorf("gblup: reduced refit without %q: %w", term, err)
	}

	diff := full.Llik - reduced.Llik
	if diff < -llikTol {
		return nil, fmt.Errorf("%w: term %q, llik full %v, reduced %v",
			ErrRefitInstability, term, full.Llik, reduced.Llik)
	}
	if diff < 0 {
		diff = 0
	}

	chi := distuv.ChiSquared{K: 1}
	res := &LRTResult{
		PValue:      chi.Survival(2*diff) / 2,
		LlikFull:    full.Llik,
		LlikReduced: reduced.Llik,
		Diff:        diff,
	}

	total := full.Sigma.Total()
	for _, nm := range full.Sigma.Names() {
		fv, _ := full.Sigma.Get(nm)
		rv := math.NaN()
		if nm != term {
			if v, ok := reduced.Sigma.Get(nm); ok {
				rv = v
			}
		}
		row := VarCompRow{Name: nm, Full: fv, Reduced: rv}
		if total > 0 {
			row.PctFull = 100 * fv / total
		}
		res.Table = append(res.Table, row)
	}
	return res, nil
}
