package kinship

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

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

func TestFromGenotypesRescalesMeanDiag(t *testing.T) {
	// Two markers, two individuals, each column with squared norm 4, so the
	// unscaled mean diagonal is exactly 4.
	z := mat.NewDense(2, 2, []float64{2, 0, 0, 2})

	raw, err := Gram(z)
	require.NoError(t, err)
	require.InDelta(t, 4.0, MeanDiag(raw), 1e-12)

	k, err := FromGenotypes(z, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, MeanDiag(k), 1e-12)

	// Rescaling to half the mean diagonal halves every entry.
	n := raw.Symmetric()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, raw.At(i, j)/2, k.At(i, j), 1e-12)
		}
	}
}

func TestFromGenotypesSymmetricPSD(t *testing.T) {
	z := randomGenotypes(20, 8, 1)
	k, err := FromGenotypes(z, 1.5)
	require.NoError(t, err)

	n := k.Symmetric()
	require.Equal(t, 8, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.Equal(t, k.At(i, j), k.At(j, i))
		}
	}

	// x'Kx >= 0 for arbitrary x.
	rng := rand.New(rand.NewSource(2))
	for trial := 0; trial < 10; trial++ {
		x := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			x.SetVec(i, rng.NormFloat64())
		}
		var kx mat.VecDense
		kx.MulVec(k, x)
		assert.GreaterOrEqual(t, mat.Dot(x, &kx), -1e-10)
	}

	assert.InDelta(t, 1.5, MeanDiag(k), 1e-10)
}

func TestFromGenotypesDegenerate(t *testing.T) {
	// An all-zero block has a zero diagonal; rescaling would divide by zero.
	z := mat.NewDense(3, 4, nil)
	_, err := FromGenotypes(z, 2.0)
	require.ErrorIs(t, err, ErrDegenerate)
}

func TestRescaleRejectsBadReference(t *testing.T) {
	z := randomGenotypes(5, 4, 3)
	k, err := Gram(z)
	require.NoError(t, err)
	assert.ErrorIs(t, Rescale(k, 0), ErrDegenerate)
	assert.ErrorIs(t, Rescale(k, -1), ErrDegenerate)
}

func TestSelectMarkers(t *testing.T) {
	z := randomGenotypes(6, 3, 4)

	full, err := SelectMarkers(z, nil)
	require.NoError(t, err)
	assert.True(t, mat.Equal(z, full))

	sub, err := SelectMarkers(z, []int{4, 0})
	require.NoError(t, err)
	m, n := sub.Dims()
	require.Equal(t, 2, m)
	require.Equal(t, 3, n)
	for j := 0; j < n; j++ {
		assert.Equal(t, z.At(4, j), sub.At(0, j))
		assert.Equal(t, z.At(0, j), sub.At(1, j))
	}

	_, err = SelectMarkers(z, []int{6})
	assert.Error(t, err)
}
