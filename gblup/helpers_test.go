package gblup

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/statgen/gblup/kinship"
	"github.com/statgen/gblup/regress"
)

// stubFitter satisfies the fitter contract with canned likelihoods so the
// testing and gating logic can be exercised deterministically. Specs with a
// "G" term get llikFull, specs without it get llikReduced.
type stubFitter struct {
	llikFull    float64
	llikReduced float64
	sigmaG      float64
	sigmaE      float64
	fitErr      error
	reducedErr  error

	mu    sync.Mutex
	specs []*regress.Spec
}

func (s *stubFitter) Fit(spec *regress.Spec) (*regress.Fitted, error) {
	s.mu.Lock()
	s.specs = append(s.specs, spec)
	s.mu.Unlock()

	if s.fitErr != nil {
		return nil, s.fitErr
	}
	_, hasG := spec.Term(GeneticTerm)
	if !hasG && s.reducedErr != nil {
		return nil, s.reducedErr
	}

	sigma := regress.NewVarComps()
	for _, t := range spec.Terms {
		sigma.Set(t.Name, s.sigmaG)
	}
	sigma.Set(regress.ResidualName, s.sigmaE)
	llik := s.llikReduced
	if hasG {
		llik = s.llikFull
	}
	return regress.NewFitted(spec, sigma, llik, make([]float64, spec.NumFixed())), nil
}

func newStub() *stubFitter {
	return &stubFitter{llikFull: -100, llikReduced: -102, sigmaG: 0.6, sigmaE: 0.4}
}

func randomGenotypes(m, n int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	z := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			z.Set(i, j, rng.NormFloat64())
		}
	}
	return z
}

func testData(t *testing.T, m, n int, seed int64) (Trait, *mat.SymDense, *GenoBlock) {
	t.Helper()
	z := randomGenotypes(m, n, seed)
	g, err := kinship.FromGenotypes(z, 2.0)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(seed + 100))
	y := make([]float64, n)
	for i := range y {
		y[i] = 1.0 + rng.NormFloat64()
	}
	x := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	ids := make([]string, m)
	for j := range ids {
		ids[j] = "rs" + string(rune('a'+j))
	}
	trait := Trait{Name: "height", Y: y, X: x, XNames: []string{"intercept"}}
	return trait, g, &GenoBlock{IDs: ids, Z: z}
}

// boundaryPValue is P(chi2_1 > 4)/2 for a likelihood difference of 2.
const boundaryPValue = 0.022750131948
