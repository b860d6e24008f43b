package gblup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/statgen/gblup/kinship"
	"github.com/statgen/gblup/regress"
)

func peakFixture(t *testing.T) (*regress.Fitted, *GenoBlock) {
	t.Helper()
	trait, g, geno := testData(t, 6, 8, 21)
	spec := &regress.Spec{
		Name:   trait.Name,
		Y:      trait.Y,
		X:      trait.X,
		XNames: trait.XNames,
		Terms:  []regress.Term{{Name: GeneticTerm, K: g}},
	}
	sigma := regress.NewVarComps()
	sigma.Set(GeneticTerm, 1.0)
	sigma.Set(regress.ResidualName, 0.5)
	return regress.NewFitted(spec, sigma, -100, []float64{1}), geno
}

func TestPeakSubset(t *testing.T) {
	full, geno := peakFixture(t)
	fitter := newStub()

	res, err := TestPeak(fitter, full, geno, []int{0, 2})
	require.NoError(t, err)
	assert.InDelta(t, boundaryPValue, res.PValue, 1e-6)

	// First fit is the augmented background+peak model, second the reduced
	// refit without the peak.
	require.Len(t, fitter.specs, 2)
	aug := fitter.specs[0]
	require.Len(t, aug.Terms, 2)
	assert.Equal(t, BackgroundTerm, aug.Terms[0].Name)
	assert.Equal(t, GeneticTerm, aug.Terms[1].Name)

	reduced := fitter.specs[1]
	require.Len(t, reduced.Terms, 1)
	assert.Equal(t, BackgroundTerm, reduced.Terms[0].Name)

	// Warm start splits the fitted genetic variance 75/25 and carries the
	// residual over.
	assert.InDelta(t, 0.75, aug.Start[BackgroundTerm], 1e-12)
	assert.InDelta(t, 0.25, aug.Start[GeneticTerm], 1e-12)
	assert.InDelta(t, 0.5, aug.Start[regress.ResidualName], 1e-12)

	// The peak matrix is built from the selected rows only and rescaled to
	// the background's mean diagonal.
	bkg, _ := full.Spec.Term(GeneticTerm)
	ref := kinship.MeanDiag(bkg.K)
	zp, err := kinship.SelectMarkers(geno.Z, []int{0, 2})
	require.NoError(t, err)
	want, err := kinship.FromGenotypes(zp, ref)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, aug.Terms[1].K, 1e-12))
	assert.InDelta(t, ref, kinship.MeanDiag(aug.Terms[1].K), 1e-10)
}

func TestPeakNilPositionsUseAllMarkers(t *testing.T) {
	full, geno := peakFixture(t)
	fitter := newStub()

	_, err := TestPeak(fitter, full, geno, nil)
	require.NoError(t, err)

	// The peak degenerates to the whole block: same matrix as rescaling
	// Z'Z over all markers to the background's mean diagonal.
	bkg, _ := full.Spec.Term(GeneticTerm)
	want, err := kinship.FromGenotypes(geno.Z, kinship.MeanDiag(bkg.K))
	require.NoError(t, err)

	require.NotEmpty(t, fitter.specs)
	aug := fitter.specs[0]
	peak, ok := aug.Term(GeneticTerm)
	require.True(t, ok)
	assert.True(t, mat.EqualApprox(want, peak.K, 1e-12))
}

func TestPeakRequiresGeneticTerm(t *testing.T) {
	full, geno := peakFixture(t)
	spec, err := full.Spec.Without(GeneticTerm)
	require.NoError(t, err)
	bare := regress.NewFitted(spec, regress.NewVarComps(), -100, nil)

	_, err = TestPeak(newStub(), bare, geno, nil)
	assert.Error(t, err)
}
