package gblup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kshedden/gonpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNpy(t *testing.T, path string, shape []int, data []float64) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := gonpy.NewWriter(f)
	require.NoError(t, err)
	w.Shape = shape
	require.NoError(t, w.WriteFloat64(data))
}

func TestRunPipeline(t *testing.T) {
	dir := t.TempDir()
	m, n := 3, 5
	z := randomGenotypes(m, n, 51)
	data := make([]float64, 0, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			data = append(data, z.At(i, j))
		}
	}
	genoPath := filepath.Join(dir, "geno.npy")
	writeNpy(t, genoPath, []int{m, n}, data)

	var pheno strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&pheno, "%g\n", 1.0+0.1*float64(i))
	}
	phenoPath := writeFile(t, dir, "pheno.txt", pheno.String())

	config := &Config{
		PhenoFile:    phenoPath,
		GenoNpyFile:  genoPath,
		TraitName:    "yield",
		RefMeanDiag:  2.0,
		ReturnZScore: true,
		SaveModel:    true,
		OutDir:       dir,
	}

	res, err := Run(newStub(), config)
	require.NoError(t, err)
	require.NotNil(t, res.Scores)
	require.Len(t, res.Scores.IDs, m)
	assert.Equal(t, "M1", res.Scores.IDs[0])
	assert.NotNil(t, res.Scores.Z)

	_, err = os.Stat(filepath.Join(dir, "assoc.yield.tsv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "yield.yield.gob"))
	assert.NoError(t, err)
}

func TestRunPipelinePhenotypeMismatch(t *testing.T) {
	dir := t.TempDir()
	genoPath := filepath.Join(dir, "geno.npy")
	writeNpy(t, genoPath, []int{2, 3}, []float64{1, 0, 1, 0, 1, 0})
	phenoPath := writeFile(t, dir, "pheno.txt", "1.0\n2.0\n")

	_, err := Run(newStub(), &Config{PhenoFile: phenoPath, GenoNpyFile: genoPath})
	assert.Error(t, err)
}
