// Package gblup orchestrates genomic prediction and association testing on
// linear mixed models: GBLUP model fitting, likelihood-ratio significance
// testing of the genetic variance, marker-wise association scoring and local
// QTL peak testing.
package gblup

import (
	"fmt"
	"math"
	"time"

	"go.dedis.ch/onet/v3/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/statgen/gblup/regress"
)

// Variance-component names used by the orchestrator. The genetic term is
// "G"; TestPeak keeps the genome-wide matrix under "G_bkg" and tests the
// peak under "G".
const (
	GeneticTerm    = "G"
	BackgroundTerm = "G_bkg"
)

// Trait bundles one response with its fixed-effect design.
type Trait struct {
	Name    string
	Y       []float64
	X       *mat.Dense
	XNames  []string
	Weights []float64
}

// GenoBlock is a standardized genotype block, markers by individuals, with
// one identifier per marker row.
type GenoBlock struct {
	IDs []string
	Z   *mat.Dense
}

func (g *GenoBlock) NumMarkers() int {
	if g == nil || g.Z == nil {
		return 0
	}
	m, _ := g.Z.Dims()
	return m
}

func (g *GenoBlock) NumInds() int {
	if g == nil || g.Z == nil {
		return 0
	}
	_, n := g.Z.Dims()
	return n
}

// AssocOptions controls one association run.
type AssocOptions struct {
	// RunLRT gates marker scoring on the genetic variance being significant
	// at Threshold. When false, scoring proceeds unconditionally.
	RunLRT    bool
	Threshold float64

	// ZScore additionally reduces each marker to effect/sqrt(variance).
	ZScore bool

	Restricted bool
	Start      map[string]float64

	// PersistBase, when set, writes the fitted model artifact to
	// PersistDir/<PersistBase>.<model>.gob before testing.
	PersistDir  string
	PersistBase string
}

// MarkerScores holds per-marker association statistics, index-aligned with
// IDs in genotype-block order. Z is populated only when z-scores were
// requested.
type MarkerScores struct {
	IDs      []string
	Effect   []float64
	Variance []float64
	Z        []float64
}

// AssocResult is the outcome of RunAssociation. Gated reports that the LRT
// did not reach the significance threshold; Scores is nil in exactly that
// case. Computation failures return an error instead, so a gated stop is
// always distinguishable from a failure.
type AssocResult struct {
	Fit    *regress.Fitted
	LRT    *LRTResult
	Scores *MarkerScores
	Gated  bool
}

// RunAssociation fits the GBLUP model for trait with genomic relationship
// matrix g plus any extra covariance terms, optionally persists the fit,
// optionally tests the genetic variance component, and if significant (or
// untested) scores every marker in geno. Any fit failure is fatal for the
// invocation; there are no retries.
func RunAssociation(fitter regress.Fitter, trait Trait, g *mat.SymDense, extra []regress.Term, geno *GenoBlock, opt AssocOptions) (*AssocResult, error) {
	terms := make([]regress.Term, 0, len(extra)+1)
	terms = append(terms, regress.Term{Name: GeneticTerm, K: g})
	terms = append(terms, extra...)
	spec := &regress.Spec{
		Name:       trait.Name,
		Y:          trait.Y,
		X:          trait.X,
		XNames:     trait.XNames,
		Terms:      terms,
		Weights:    trait.Weights,
		Start:      opt.Start,
		Restricted: opt.Restricted,
	}

	log.LLvl1(time.Now().Format(time.StampMilli), "fitting GBLUP model for", trait.Name)
	fit, err := fitter.Fit(spec)
	if err != nil {
		return nil, err
	}
	res := &AssocResult{Fit: fit}

	if opt.PersistBase != "" {
		path, err := SaveModel(fit, opt.PersistDir, opt.PersistBase)
		if err != nil {
			return nil, fmt.Errorf("gblup: persisting model %q: %w", trait.Name, err)
		}
		log.LLvl1("saved model artifact to", path)
	}

	if opt.RunLRT {
		lrt, err := LikelihoodRatioTest(fitter, fit, GeneticTerm)
		if err != nil {
			return nil, err
		}
		res.LRT = lrt
		if lrt.PValue > opt.Threshold {
			log.LLvl1(time.Now().Format(time.StampMilli), trait.Name,
				"genetic variance not significant, p =", lrt.PValue, "> threshold", opt.Threshold)
			res.Gated = true
			return res, nil
		}
	}

	scores, err := scoreMarkers(fit, geno, opt.ZScore)
	if err != nil {
		return nil, err
	}
	res.Scores = scores
	return res, nil
}

// scoreMarkers back-solves per-marker statistics from the fitted genetic
// component: effect_j = sigma_G * z_j'Py and var_j = sigma_G^2 * z_j'Pz_j,
// with P the fitted model's projection matrix and z_j the j-th standardized
// marker row.
func scoreMarkers(fit *regress.Fitted, geno *GenoBlock, zscore bool) (*MarkerScores, error) {
	m := geno.NumMarkers()
	if m == 0 {
		return nil, fmt.Errorf("gblup: no genotypes to score for model %q", fit.Spec.Name)
	}
	if len(geno.IDs) != m {
		return nil, fmt.Errorf("gblup: %d marker IDs for %d markers", len(geno.IDs), m)
	}
	n := geno.NumInds()
	if n != fit.Spec.NumObs() {
		return nil, fmt.Errorf("gblup: genotype block has %d individuals, model %q has %d",
			n, fit.Spec.Name, fit.Spec.NumObs())
	}
	sg, ok := fit.Sigma.Get(GeneticTerm)
	if !ok {
		return nil, fmt.Errorf("gblup: fitted model %q has no %q component", fit.Spec.Name, GeneticTerm)
	}

	proj, err := fit.Projector()
	if err != nil {
		return nil, err
	}
	py, err := fit.ProjectY()
	if err != nil {
		return nil, err
	}

	var pzt mat.Dense
	pzt.Mul(proj, geno.Z.T())

	out := &MarkerScores{
		IDs:      append([]string(nil), geno.IDs...),
		Effect:   make([]float64, m),
		Variance: make([]float64, m),
	}
	if zscore {
		out.Z = make([]float64, m)
	}
	row := make([]float64, n)
	col := make([]float64, n)
	for j := 0; j < m; j++ {
		mat.Row(row, j, geno.Z)
		mat.Col(col, j, &pzt)
		out.Effect[j] = sg * floats.Dot(row, py)
		out.Variance[j] = sg * sg * floats.Dot(row, col)
		if zscore {
			out.Z[j] = out.Effect[j] / math.Sqrt(out.Variance[j])
		}
	}
	return out, nil
}
