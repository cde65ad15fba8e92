package esn

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Reservoir holds the fixed reservoir weights, the trained readout and the
// evolving input, state and output vectors.
type Reservoir struct {
	cfg Config

	u *mat.VecDense // current input, length K
	x *mat.VecDense // reservoir activation, length N
	v *mat.VecDense // output, length L

	win   *mat.Dense // N×K
	w     *mat.Dense // N×N, fixed after construction
	wout  *mat.Dense // L×N, the only trained matrix
	wback *mat.Dense // N×L, used when feedback is enabled

	unscaledRadius float64
	t              int
	trained        bool
	outputs        [][]float64

	update func(input *mat.VecDense)
	pre    *mat.VecDense
	tmpN   *mat.VecDense
	tmpL   *mat.VecDense
}

type options struct {
	rng *rand.Rand
}

// Option configures reservoir construction.
type Option func(*options)

// WithSeed draws every random weight from a source seeded with seed.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand draws every random weight from rng. A nil rng is ignored.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// New validates cfg, wires and scales the recurrent matrix and draws the
// input, readout and feedback weights. Nothing is allocated when cfg is
// invalid.
func New(cfg Config, opts ...Option) (*Reservoir, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng := o.rng

	w, err := BuildTopology(cfg.N, cfg.Topology, cfg.Connectivity, rng)
	if err != nil {
		return nil, err
	}
	radius, err := ScaleToUnitRadius(w)
	if err != nil {
		return nil, err
	}

	r := &Reservoir{
		cfg:            cfg,
		w:              w,
		win:            uniformDense(cfg.N, cfg.K, rng),
		wout:           uniformDense(cfg.L, cfg.N, rng),
		wback:          uniformDense(cfg.N, cfg.L, rng),
		u:              mat.NewVecDense(cfg.K, uniformSlice(cfg.K, rng)),
		x:              mat.NewVecDense(cfg.N, nil),
		v:              mat.NewVecDense(cfg.L, nil),
		unscaledRadius: radius,
		pre:            mat.NewVecDense(cfg.N, nil),
		tmpN:           mat.NewVecDense(cfg.N, nil),
		tmpL:           mat.NewVecDense(cfg.L, nil),
	}
	switch cfg.Mode {
	case ModeDiscretised:
		r.update = r.stepDiscretised
	case ModeInstantaneous:
		r.update = r.stepInstantaneous
	}
	return r, nil
}

// Step advances the reservoir by one timestep with a raw input vector.
func (r *Reservoir) Step(input []float64) error {
	if len(input) != r.cfg.K {
		return errors.Wrapf(ErrDimensionMismatch, "input width %d, reservoir expects %d", len(input), r.cfg.K)
	}
	r.update(r.prepareInput(input))
	r.t++
	if !finite(r.x.RawVector().Data) || !finite(r.v.RawVector().Data) {
		return errors.Wrapf(ErrNumericalInstability, "non-finite reservoir state at timestep %d", r.t)
	}
	return nil
}

func (r *Reservoir) prepareInput(input []float64) *mat.VecDense {
	data := make([]float64, len(input))
	for i, value := range input {
		if r.cfg.InputNorm {
			value = math.Tanh(value)
		}
		data[i] = value
	}
	return mat.NewVecDense(len(data), data)
}

// drive computes W·x + Win·u (+ Wback·v) into r.pre from the current vectors.
func (r *Reservoir) drive() {
	r.pre.MulVec(r.w, r.x)
	r.tmpN.MulVec(r.win, r.u)
	r.pre.AddVec(r.pre, r.tmpN)
	if r.cfg.Feedback {
		r.tmpN.MulVec(r.wback, r.v)
		r.pre.AddVec(r.pre, r.tmpN)
	}
	r.applyActivation(r.pre)
}

func (r *Reservoir) readout(state *mat.VecDense) {
	r.tmpL.MulVec(r.wout, state)
	r.applyActivation(r.tmpL)
	r.v.CopyVec(r.tmpL)
}

// stepDiscretised derives the new state and the output from the old state,
// then commits the state and the input.
func (r *Reservoir) stepDiscretised(input *mat.VecDense) {
	r.drive()
	r.readout(r.x)
	r.x.CopyVec(r.pre)
	r.u.CopyVec(input)
}

// stepInstantaneous commits the input first so the output reflects the
// same timestep.
func (r *Reservoir) stepInstantaneous(input *mat.VecDense) {
	r.u.CopyVec(input)
	r.drive()
	r.x.CopyVec(r.pre)
	r.readout(r.x)
}

func (r *Reservoir) applyActivation(v *mat.VecDense) {
	data := v.RawVector().Data
	for i := range data {
		data[i] = r.cfg.Activation(data[i])
	}
}

// Config returns the normalised construction parameters.
func (r *Reservoir) Config() Config { return r.cfg }

// Timestep returns the number of updates applied since construction.
func (r *Reservoir) Timestep() int { return r.t }

// Trained reports whether a Train call has fitted at least one sample.
func (r *Reservoir) Trained() bool { return r.trained }

// Input returns a copy of u.
func (r *Reservoir) Input() []float64 { return vecCopy(r.u) }

// State returns a copy of x.
func (r *Reservoir) State() []float64 { return vecCopy(r.x) }

// Output returns a copy of v.
func (r *Reservoir) Output() []float64 { return vecCopy(r.v) }

// W returns a copy of the scaled recurrent matrix.
func (r *Reservoir) W() *mat.Dense { return mat.DenseCopyOf(r.w) }

// Win returns a copy of the input weights.
func (r *Reservoir) Win() *mat.Dense { return mat.DenseCopyOf(r.win) }

// Wout returns a copy of the readout weights.
func (r *Reservoir) Wout() *mat.Dense { return mat.DenseCopyOf(r.wout) }

// Wback returns a copy of the feedback weights.
func (r *Reservoir) Wback() *mat.Dense { return mat.DenseCopyOf(r.wback) }

// UnscaledSpectralRadius returns the radius of W before normalisation.
func (r *Reservoir) UnscaledSpectralRadius() float64 { return r.unscaledRadius }

// Outputs returns a copy of the output rows logged by the latest Train or
// Test call.
func (r *Reservoir) Outputs() [][]float64 {
	out := make([][]float64, len(r.outputs))
	for i, row := range r.outputs {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Diagnostics reports spectral heuristics of W. It does not mutate r.
func (r *Reservoir) Diagnostics() (Diagnostics, error) {
	radius, err := SpectralRadius(r.w)
	if err != nil {
		return Diagnostics{}, err
	}
	sigma, err := LargestSingularValue(r.w)
	if err != nil {
		return Diagnostics{}, err
	}
	return Diagnostics{
		SpectralRadius:       radius,
		LargestSingularValue: sigma,
		SufficientEchoState:  sigma < 1,
		Timestep:             r.t,
		Trained:              r.trained,
	}, nil
}

func uniformDense(rows, cols int, rng *rand.Rand) *mat.Dense {
	return mat.NewDense(rows, cols, uniformSlice(rows*cols, rng))
}

func uniformSlice(n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}

func vecCopy(v *mat.VecDense) []float64 {
	return append([]float64(nil), v.RawVector().Data...)
}

func finite(values []float64) bool {
	for _, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}
