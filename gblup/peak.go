package gblup

import (
	"fmt"
	"time"

	"go.dedis.ch/onet/v3/log"

	"github.com/statgen/gblup/kinship"
	"github.com/statgen/gblup/regress"
)

// TestPeak tests whether the markers selected by peakPos carry genetic
// signal beyond the genome-wide background captured by the fitted model's
// genetic term. The peak relationship matrix is rescaled to the background
// matrix's mean diagonal so the two variance components are comparable in
// magnitude; the augmented model keeps the background under "G_bkg" and the
// peak under "G", and the LRT drops only the peak term.
//
// A nil or empty peakPos selects the entire block. That degenerates to
// testing total genetic variance against itself, which is a valid fit but
// rarely a meaningful local hypothesis.
func TestPeak(fitter regress.Fitter, full *regress.Fitted, geno *GenoBlock, peakPos []int) (*LRTResult, error) {
	bkg, ok := full.Spec.Term(GeneticTerm)
	if !ok {
		return nil, fmt.Errorf("gblup: model %q has no %q covariance term", full.Spec.Name, GeneticTerm)
	}
	if geno.NumInds() != full.Spec.NumObs() {
		return nil, fmt.Errorf("gblup: genotype block has %d individuals, model %q has %d",
			geno.NumInds(), full.Spec.Name, full.Spec.NumObs())
	}

	zp, err := kinship.SelectMarkers(geno.Z, peakPos)
	if err != nil {
		return nil, err
	}
	peak, err := kinship.FromGenotypes(zp, kinship.MeanDiag(bkg.K))
	if err != nil {
		return nil, err
	}

	terms := []regress.Term{
		{Name: BackgroundTerm, K: bkg.K},
		{Name: GeneticTerm, K: peak},
	}
	start := make(map[string]float64)
	// Warm start: split the fitted genetic variance 75/25 between background
	// and peak. A convergence aid only; the likelihood optimum does not
	// depend on it.
	if sg, ok := full.Sigma.Get(GeneticTerm); ok && sg > 0 {
		start[BackgroundTerm] = 0.75 * sg
		start[GeneticTerm] = 0.25 * sg
	}
	for _, t := range full.Spec.Terms {
		if t.Name == GeneticTerm {
			continue
		}
		terms = append(terms, t)
		if v, ok := full.Sigma.Get(t.Name); ok && v > 0 {
			start[t.Name] = v
		}
	}
	if se, ok := full.Sigma.Get(regress.ResidualName); ok && se > 0 {
		start[regress.ResidualName] = se
	}

	spec := &regress.Spec{
		Name:       full.Spec.Name + " (peak)",
		Y:          full.Spec.Y,
		X:          full.Spec.X,
		XNames:     full.Spec.XNames,
		Terms:      terms,
		Weights:    full.Spec.Weights,
		Start:      start,
		Restricted: full.Spec.Restricted,
	}

	np, _ := zp.Dims()
	log.LLvl1(time.Now().Format(time.StampMilli), "testing peak of", np, "markers for", full.Spec.Name)
	aug, err := fitter.Fit(spec)
	if err != nil {
		return nil, err
	}
	return LikelihoodRatioTest(fitter, aug, GeneticTerm)
}
