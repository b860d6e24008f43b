package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Fitter is the mixed-model fitting contract: a pure function of its spec,
// returning a new Fitted on every call. Implementations must be reentrant.
type Fitter interface {
	Fit(spec *Spec) (*Fitted, error)
}

// Fitted is the result of one mixed-model fit. It is immutable; refits
// produce a new Fitted. Sigma holds one non-negative variance per component
// of the spec (residual under ResidualName), Llik the (restricted)
// log-likelihood at the optimum and Beta the GLS fixed-effect estimates.
type Fitted struct {
	Spec  *Spec
	Sigma *VarComps
	Llik  float64
	Beta  []float64

	proj *mat.Dense
	py   []float64
}

// NewFitted assembles a fit result. It is exported so external fitter
// collaborators can satisfy the Fitter contract.
func NewFitted(spec *Spec, sigma *VarComps, llik float64, beta []float64) *Fitted {
	return &Fitted{Spec: spec, Sigma: sigma, Llik: llik, Beta: beta}
}

// covariance assembles V = sum_t sigma_t*K_t + sigma_In*diag(1/w) at the
// given variance components.
func (s *Spec) covariance(sigma *VarComps) (*mat.SymDense, error) {
	n := s.NumObs()
	v := mat.NewSymDense(n, nil)
	for _, t := range s.Terms {
		sv, ok := sigma.Get(t.Name)
		if !ok {
			return nil, fmt.Errorf("%w: no variance for term %q", ErrBadSpec, t.Name)
		}
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v.SetSym(i, j, v.At(i, j)+sv*t.K.At(i, j))
			}
		}
	}
	se, ok := sigma.Get(ResidualName)
	if !ok {
		return nil, fmt.Errorf("%w: no residual variance %q", ErrBadSpec, ResidualName)
	}
	for i := 0; i < n; i++ {
		wi := 1.0
		if s.Weights != nil {
			wi = 1 / s.Weights[i]
		}
		v.SetSym(i, i, v.At(i, i)+se*wi)
	}
	return v, nil
}

const ln2pi = 1.8378770664093453

// logLik evaluates the (restricted) log-likelihood at sigma with the
// fixed effects profiled out by GLS. It returns the GLS estimates alongside.
func (s *Spec) logLik(sigma *VarComps) (float64, []float64, error) {
	n, p := s.NumObs(), s.NumFixed()

	v, err := s.covariance(sigma)
	if err != nil {
		return 0, nil, err
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(v); !ok {
		return 0, nil, ErrNotPositiveDefinite
	}
	logDetV := chol.LogDet()

	var vinvX mat.Dense
	if err := chol.SolveTo(&vinvX, s.X); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}
	yv := mat.NewVecDense(n, s.Y)
	var vinvY mat.VecDense
	if err := chol.SolveVecTo(&vinvY, yv); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}

	var xtvx mat.Dense
	xtvx.Mul(s.X.T(), &vinvX)
	xtvxSym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			xtvxSym.SetSym(i, j, (xtvx.At(i, j)+xtvx.At(j, i))/2)
		}
	}
	var cholX mat.Cholesky
	if ok := cholX.Factorize(xtvxSym); !ok {
		return 0, nil, fmt.Errorf("%w: singular fixed-effect design", ErrNotPositiveDefinite)
	}
	logDetX := cholX.LogDet()

	var xty mat.VecDense
	xty.MulVec(s.X.T(), &vinvY)
	var betaVec mat.VecDense
	if err := cholX.SolveVecTo(&betaVec, &xty); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}

	var xb mat.VecDense
	xb.MulVec(s.X, &betaVec)
	r := mat.NewVecDense(n, nil)
	r.SubVec(yv, &xb)
	var vinvR mat.VecDense
	if err := chol.SolveVecTo(&vinvR, r); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}
	quad := mat.Dot(r, &vinvR)

	var llik float64
	if s.Restricted {
		llik = -0.5 * (float64(n-p)*ln2pi + logDetV + logDetX + quad)
	} else {
		llik = -0.5 * (float64(n)*ln2pi + logDetV + quad)
	}
	if math.IsNaN(llik) {
		return 0, nil, fmt.Errorf("%w: log-likelihood is NaN", ErrNotPositiveDefinite)
	}

	beta := make([]float64, p)
	for i := range beta {
		beta[i] = betaVec.AtVec(i)
	}
	return llik, beta, nil
}

// Projector returns the projection matrix
// P = V^-1 - V^-1 X (X' V^-1 X)^-1 X' V^-1 evaluated at the fitted variance
// components. P annihilates the fixed-effect design; P*y are the scaled
// residuals that marker scoring projects genotypes onto. The matrix is
// computed once and cached.
func (f *Fitted) Projector() (*mat.Dense, error) {
	if f.proj != nil {
		return f.proj, nil
	}
	n, p := f.Spec.NumObs(), f.Spec.NumFixed()

	v, err := f.Spec.covariance(f.Sigma)
	if err != nil {
		return nil, &FitError{Model: f.Spec.Name, Err: err}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(v); !ok {
		return nil, &FitError{Model: f.Spec.Name, Err: ErrNotPositiveDefinite}
	}
	var vinv mat.SymDense
	if err := chol.InverseTo(&vinv); err != nil {
		return nil, &FitError{Model: f.Spec.Name, Err: err}
	}
	var vinvX mat.Dense
	if err := chol.SolveTo(&vinvX, f.Spec.X); err != nil {
		return nil, &FitError{Model: f.Spec.Name, Err: err}
	}
	var xtvx mat.Dense
	xtvx.Mul(f.Spec.X.T(), &vinvX)
	xtvxSym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			xtvxSym.SetSym(i, j, (xtvx.At(i, j)+xtvx.At(j, i))/2)
		}
	}
	var cholX mat.Cholesky
	if ok := cholX.Factorize(xtvxSym); !ok {
		return nil, &FitError{Model: f.Spec.Name, Err: fmt.Errorf("%w: singular fixed-effect design", ErrNotPositiveDefinite)}
	}
	var xtvxInv mat.SymDense
	if err := cholX.InverseTo(&xtvxInv); err != nil {
		return nil, &FitError{Model: f.Spec.Name, Err: err}
	}

	var t1 mat.Dense
	t1.Mul(&vinvX, &xtvxInv)
	var t2 mat.Dense
	t2.Mul(&t1, vinvX.T())

	proj := mat.NewDense(n, n, nil)
	proj.Sub(&vinv, &t2)
	f.proj = proj
	return f.proj, nil
}

// ProjectY returns P*y for the fitted model.
func (f *Fitted) ProjectY() ([]float64, error) {
	if f.py != nil {
		return f.py, nil
	}
	proj, err := f.Projector()
	if err != nil {
		return nil, err
	}
	n := f.Spec.NumObs()
	var py mat.VecDense
	py.MulVec(proj, mat.NewVecDense(n, f.Spec.Y))
	out := make([]float64, n)
	for i := range out {
		out[i] = py.AtVec(i)
	}
	f.py = out
	return f.py, nil
}
