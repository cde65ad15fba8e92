package esn

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// solver fits Wout incrementally, one post-washout sample at a time.
type solver interface {
	// Add appends a state row and its target and refits the readout.
	Add(state, target []float64) error
	// Weights returns the current L×N readout.
	Weights() *mat.Dense
	// Samples returns the number of fitted rows.
	Samples() int
}

func newSolver(kind Readout, n, l int) solver {
	if kind == ReadoutRLS {
		return newRLSSolver(n, l)
	}
	return newPinvSolver(n, l)
}

// TrainingAccumulator is the design matrix M (one state row per sample) and
// target matrix D (one target row per sample) of a single Train call.
type TrainingAccumulator struct {
	n, l    int
	states  []float64
	targets []float64
	rows    int
}

// NewTrainingAccumulator returns an empty accumulator for width-n states
// and width-l targets.
func NewTrainingAccumulator(n, l int) *TrainingAccumulator {
	return &TrainingAccumulator{n: n, l: l}
}

// Append adds one row to M and D.
func (a *TrainingAccumulator) Append(state, target []float64) error {
	if len(state) != a.n || len(target) != a.l {
		return errors.Wrapf(ErrDimensionMismatch, "accumulator row %dx%d, expected %dx%d", len(state), len(target), a.n, a.l)
	}
	a.states = append(a.states, state...)
	a.targets = append(a.targets, target...)
	a.rows++
	return nil
}

// Rows returns the number of accumulated samples.
func (a *TrainingAccumulator) Rows() int { return a.rows }

// Design returns a copy of M (rows×N), or nil when empty.
func (a *TrainingAccumulator) Design() *mat.Dense {
	if a.rows == 0 {
		return nil
	}
	return mat.NewDense(a.rows, a.n, append([]float64(nil), a.states...))
}

// Targets returns a copy of D (rows×L), or nil when empty.
func (a *TrainingAccumulator) Targets() *mat.Dense {
	if a.rows == 0 {
		return nil
	}
	return mat.NewDense(a.rows, a.l, append([]float64(nil), a.targets...))
}

// Solve returns the least-squares readout (pinv(M)·D)ᵀ.
func (a *TrainingAccumulator) Solve() (*mat.Dense, error) {
	if a.rows == 0 {
		return nil, errors.Wrap(ErrNumericalInstability, "no samples to fit")
	}
	pinv, err := Pseudoinverse(a.rowsView())
	if err != nil {
		return nil, err
	}
	var fit mat.Dense
	fit.Mul(pinv, mat.NewDense(a.rows, a.l, a.targets))
	wout := mat.DenseCopyOf(fit.T())
	if !finite(wout.RawMatrix().Data) {
		return nil, errors.Wrapf(ErrNumericalInstability, "non-finite readout after %d samples", a.rows)
	}
	return wout, nil
}

func (a *TrainingAccumulator) rowsView() *mat.Dense {
	return mat.NewDense(a.rows, a.n, a.states)
}

// Pseudoinverse returns the Moore-Penrose pseudoinverse of a computed from a
// thin SVD. Singular values below max(r,c)·σmax·ε are treated as zero, so
// rank-deficient inputs yield the minimum-norm solution instead of failing.
func Pseudoinverse(a mat.Matrix) (*mat.Dense, error) {
	rows, cols := a.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.Wrapf(ErrNumericalInstability, "svd of %dx%d matrix did not converge", rows, cols)
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tolerance := 0.0
	if len(values) > 0 {
		tolerance = float64(max(rows, cols)) * values[0] * epsilon
	}
	inverted := make([]float64, len(values))
	for i, value := range values {
		if value > tolerance {
			inverted[i] = 1 / value
		}
	}

	// pinv = V · Σ⁺ · Uᵀ
	var scaled mat.Dense
	scaled.Mul(&v, mat.NewDiagDense(len(inverted), inverted))
	pinv := mat.NewDense(cols, rows, nil)
	pinv.Mul(&scaled, u.T())
	return pinv, nil
}

var epsilon = math.Nextafter(1, 2) - 1

type pinvSolver struct {
	acc  *TrainingAccumulator
	wout *mat.Dense
}

func newPinvSolver(n, l int) *pinvSolver {
	return &pinvSolver{acc: NewTrainingAccumulator(n, l)}
}

func (s *pinvSolver) Add(state, target []float64) error {
	if err := s.acc.Append(state, target); err != nil {
		return err
	}
	wout, err := s.acc.Solve()
	if err != nil {
		return err
	}
	s.wout = wout
	return nil
}

func (s *pinvSolver) Weights() *mat.Dense { return s.wout }

func (s *pinvSolver) Samples() int { return s.acc.Rows() }

// rlsDelta sets the initial inverse covariance P₀ = I/δ. A small δ is a
// weak ridge prior that vanishes as samples accumulate.
const rlsDelta = 1e-4

// rlsSolver keeps the readout and the running inverse covariance P and
// applies the Sherman-Morrison update P ← P − (P·x)(P·x)ᵀ/(1 + xᵀ·P·x).
type rlsSolver struct {
	n, l    int
	p       *mat.Dense
	wout    *mat.Dense
	px      *mat.VecDense
	gain    *mat.VecDense
	outer   *mat.Dense
	pred    *mat.VecDense
	samples int
}

func newRLSSolver(n, l int) *rlsSolver {
	p := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		p.Set(i, i, 1/rlsDelta)
	}
	return &rlsSolver{
		n:     n,
		l:     l,
		p:     p,
		wout:  mat.NewDense(l, n, nil),
		px:    mat.NewVecDense(n, nil),
		gain:  mat.NewVecDense(n, nil),
		outer: mat.NewDense(n, n, nil),
		pred:  mat.NewVecDense(l, nil),
	}
}

func (s *rlsSolver) Add(state, target []float64) error {
	if len(state) != s.n || len(target) != s.l {
		return errors.Wrapf(ErrDimensionMismatch, "rls row %dx%d, expected %dx%d", len(state), len(target), s.n, s.l)
	}
	x := mat.NewVecDense(s.n, append([]float64(nil), state...))

	s.px.MulVec(s.p, x)
	denominator := 1 + mat.Dot(x, s.px)
	if denominator < 1e-12 || math.IsNaN(denominator) || math.IsInf(denominator, 0) {
		return errors.Wrapf(ErrNumericalInstability, "rls denominator %v after %d samples", denominator, s.samples)
	}
	s.gain.ScaleVec(1/denominator, s.px)

	// Wout ← Wout + (d − Wout·x)·gainᵀ
	s.pred.MulVec(s.wout, x)
	residual := mat.NewVecDense(s.l, append([]float64(nil), target...))
	residual.SubVec(residual, s.pred)
	var correction mat.Dense
	correction.Outer(1, residual, s.gain)
	s.wout.Add(s.wout, &correction)

	s.outer.Outer(1, s.gain, s.px)
	s.p.Sub(s.p, s.outer)
	s.samples++

	if !finite(s.wout.RawMatrix().Data) {
		return errors.Wrapf(ErrNumericalInstability, "non-finite readout after %d samples", s.samples)
	}
	return nil
}

func (s *rlsSolver) Weights() *mat.Dense { return s.wout }

func (s *rlsSolver) Samples() int { return s.samples }
