// Package kinship builds genomic relationship matrices from standardized
// genotype blocks.
package kinship

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate reports a genotype block that cannot produce a usable
// relationship matrix: no markers or individuals, or an all-zero diagonal
// that would make the rescaling divide by zero.
var ErrDegenerate = errors.New("kinship: degenerate relationship matrix")

// Gram computes the unscaled relationship matrix M = Z'Z over individuals
// from a standardized genotype block Z (markers x individuals).
func Gram(z mat.Matrix) (*mat.SymDense, error) {
	m, n := z.Dims()
	if m == 0 || n == 0 {
		return nil, fmt.Errorf("%w: genotype block is %dx%d", ErrDegenerate, m, n)
	}
	var prod mat.Dense
	prod.Mul(z.T(), z)
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			k.SetSym(i, j, (prod.At(i, j)+prod.At(j, i))/2)
		}
	}
	return k, nil
}

// FromGenotypes computes Z'Z and rescales it so its mean diagonal equals
// refDiag. Relationship matrices rescaled to a common reference are mutually
// proportional, so the variance components they carry in one model are
// directly comparable in magnitude.
func FromGenotypes(z mat.Matrix, refDiag float64) (*mat.SymDense, error) {
	k, err := Gram(z)
	if err != nil {
		return nil, err
	}
	if err := Rescale(k, refDiag); err != nil {
		return nil, err
	}
	return k, nil
}

// MeanDiag returns the mean of the diagonal of m.
func MeanDiag(m mat.Matrix) float64 {
	r, _ := m.Dims()
	if r == 0 {
		return 0
	}
	d := make([]float64, r)
	for i := range d {
		d[i] = m.At(i, i)
	}
	return floats.Sum(d) / float64(r)
}

// Rescale scales m in place so its mean diagonal equals refDiag.
func Rescale(m *mat.SymDense, refDiag float64) error {
	if refDiag <= 0 || math.IsNaN(refDiag) {
		return fmt.Errorf("%w: reference mean diagonal %v", ErrDegenerate, refDiag)
	}
	md := MeanDiag(m)
	if md <= 0 || math.IsNaN(md) {
		return fmt.Errorf("%w: mean diagonal %v", ErrDegenerate, md)
	}
	m.ScaleSym(refDiag/md, m)
	return nil
}

// SelectMarkers returns the genotype rows named by rows, preserving order.
// A nil or empty selection returns the full block.
func SelectMarkers(z *mat.Dense, rows []int) (*mat.Dense, error) {
	m, n := z.Dims()
	if len(rows) == 0 {
		return z, nil
	}
	out := mat.NewDense(len(rows), n, nil)
	for i, r := range rows {
		if r < 0 || r >= m {
			return nil, fmt.Errorf("kinship: marker index %d out of range [0,%d)", r, m)
		}
		out.SetRow(i, mat.Row(nil, r, z))
	}
	return out, nil
}
