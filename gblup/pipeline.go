package gblup

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/raulk/go-watchdog"
	"go.dedis.ch/onet/v3/log"
	"gonum.org/v1/gonum/mat"

	"github.com/statgen/gblup/kinship"
	"github.com/statgen/gblup/regress"
)

// Run executes the configured pipeline end to end: load phenotype,
// covariates and genotypes, build the genomic relationship matrix, fit and
// test the GBLUP model and score markers. A nil fitter uses the default REML
// fitter bounded by the config's iteration and time limits. Score output is
// written to the output directory when one is configured.
func Run(fitter regress.Fitter, config *Config) (*AssocResult, error) {
	if config.MemoryLimit > 0 {
		err, stopFn := watchdog.HeapDriven(config.MemoryLimit, 40, watchdog.NewAdaptivePolicy(0.5))
		if err != nil {
			log.Warn("memory watchdog unavailable:", err)
		} else {
			defer stopFn()
		}
	}
	if fitter == nil {
		reml := regress.NewREML()
		if config.MaxFitIters > 0 {
			reml.Opt.MaxIterations = config.MaxFitIters
		}
		if config.MaxFitSeconds > 0 {
			reml.Opt.MaxRuntime = time.Duration(config.MaxFitSeconds) * time.Second
		}
		fitter = reml
	}

	z, err := LoadGenotypesNpy(config.GenoNpyFile)
	if err != nil {
		return nil, err
	}
	m, n := z.Dims()
	log.LLvl1(time.Now().Format(time.StampMilli), "loaded", m, "markers x", n, "individuals")

	y, err := LoadVectorFromFile(config.PhenoFile)
	if err != nil {
		return nil, err
	}
	if len(y) != n {
		return nil, fmt.Errorf("gblup: %d phenotypes for %d individuals", len(y), n)
	}

	var ids []string
	if config.MarkerIDFile != "" {
		if ids, err = ReadMarkerIDs(config.MarkerIDFile); err != nil {
			return nil, err
		}
		if len(ids) != m {
			return nil, fmt.Errorf("gblup: %d marker IDs for %d markers", len(ids), m)
		}
	} else {
		ids = make([]string, m)
		for j := range ids {
			ids[j] = fmt.Sprintf("M%d", j+1)
		}
	}

	x, xnames, err := buildDesign(config.CovarFile, n)
	if err != nil {
		return nil, err
	}

	g, err := kinship.Gram(z)
	if err != nil {
		return nil, err
	}
	if config.RefMeanDiag > 0 {
		if err := kinship.Rescale(g, config.RefMeanDiag); err != nil {
			return nil, err
		}
	}

	traitName := config.TraitName
	if traitName == "" {
		traitName = "trait"
	}
	trait := Trait{Name: traitName, Y: y, X: x, XNames: xnames}
	geno := &GenoBlock{IDs: ids, Z: z}
	opt := AssocOptions{
		RunLRT:     config.RunLRT,
		Threshold:  config.LrtThreshold,
		ZScore:     config.ReturnZScore,
		Restricted: config.Restricted,
	}
	if config.SaveModel {
		base := config.ModelBasename
		if base == "" {
			base = traitName
		}
		opt.PersistDir = config.OutDir
		opt.PersistBase = base
	}

	res, err := RunAssociation(fitter, trait, g, nil, geno, opt)
	if err != nil {
		return nil, err
	}
	if res.Scores != nil && config.OutDir != "" {
		out := filepath.Join(config.OutDir, fmt.Sprintf("assoc.%s.tsv", traitName))
		if err := WriteScores(out, res.Scores); err != nil {
			return nil, err
		}
		log.LLvl1("wrote association scores to", out)
	}
	return res, nil
}

// buildDesign assembles the fixed-effect design: an intercept column,
// followed by covariates from covarFile when given.
func buildDesign(covarFile string, n int) (*mat.Dense, []string, error) {
	if covarFile == "" {
		x := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			x.Set(i, 0, 1)
		}
		return x, []string{"intercept"}, nil
	}
	cov, err := LoadMatrixFromFile(covarFile, '\t')
	if err != nil {
		return nil, nil, err
	}
	cr, cc := cov.Dims()
	if cr != n {
		return nil, nil, fmt.Errorf("gblup: covariate file has %d rows for %d individuals", cr, n)
	}
	x := mat.NewDense(n, cc+1, nil)
	names := make([]string, cc+1)
	names[0] = "intercept"
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j := 0; j < cc; j++ {
			x.Set(i, j+1, cov.At(i, j))
		}
	}
	for j := 1; j <= cc; j++ {
		names[j] = fmt.Sprintf("covar%d", j)
	}
	return x, names, nil
}
