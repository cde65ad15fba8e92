package benchmark

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"tinyesn/internal/esn"
)

// NARMAParams are the coefficients of an order-n NARMA system
//
//	y(t+1) = α·y(t) + β·y(t)·Σ y(t-i) + γ·u(t-n+1)·u(t) + δ
//
// where the sum runs over the last n outputs.
type NARMAParams struct {
	Order int     `json:"order"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
	Delta float64 `json:"delta"`
}

var (
	NARMA5  = NARMAParams{Order: 5, Alpha: 0.3, Beta: 0.05, Gamma: 1.5, Delta: 0.1}
	NARMA10 = NARMAParams{Order: 10, Alpha: 0.3, Beta: 0.05, Gamma: 1.5, Delta: 0.1}
	NARMA20 = NARMAParams{Order: 20, Alpha: 0.3, Beta: 0.05, Gamma: 1.5, Delta: 0.01}
)

// narmaInputCeiling bounds driving inputs to [0, 0.5).
const narmaInputCeiling = 0.5

// divergenceLimit flags a NARMA run whose output left any useful range.
const divergenceLimit = 1e6

// NARMA generates a stateful NARMA series driven by uniform random inputs.
//
// In discretised mode the target paired with an input is driven by the
// previous input, matching a reservoir whose output lags one step. In
// instantaneous mode the target is driven by the input it is paired with.
type NARMA struct {
	name   string
	params NARMAParams
	mode   esn.Mode
	rng    *rand.Rand

	y       float64
	ys      []float64
	drives  []float64
	pending float64
}

func NewNARMA(name string, params NARMAParams, mode esn.Mode, rng *rand.Rand) (*NARMA, error) {
	if params.Order <= 0 {
		return nil, errors.Errorf("narma order must be positive, got %d", params.Order)
	}
	if mode == "" {
		mode = esn.ModeDiscretised
	}
	if mode != esn.ModeDiscretised && mode != esn.ModeInstantaneous {
		return nil, errors.Errorf("unsupported narma mode %q", mode)
	}
	if rng == nil {
		return nil, errors.New("narma requires a random source")
	}
	if name == "" {
		name = fmt.Sprintf("narma%d", params.Order)
	}
	return &NARMA{name: name, params: params, mode: mode, rng: rng}, nil
}

func (n *NARMA) Name() string { return n.name }

func (n *NARMA) Params() NARMAParams { return n.params }

func (n *NARMA) Mode() esn.Mode { return n.mode }

func (n *NARMA) CreateTrainingSet(size int) (esn.Sequence, error) {
	if size < 0 {
		return nil, errors.Errorf("training set size must be non-negative, got %d", size)
	}
	seq := make(esn.Sequence, 0, size)
	for i := 0; i < size; i++ {
		input := n.rng.Float64() * narmaInputCeiling
		drive := input
		if n.mode == esn.ModeDiscretised {
			drive, n.pending = n.pending, input
		}
		y, err := n.advance(drive)
		if err != nil {
			return nil, err
		}
		seq = append(seq, esn.Sample{Input: []float64{input}, Target: []float64{y}})
	}
	return seq, nil
}

func (n *NARMA) advance(drive float64) (float64, error) {
	p := n.params
	n.drives = append(n.drives, drive)

	start := max(len(n.ys)-p.Order, 0)
	sum := floats.Sum(n.ys[start:])
	lagged := 0.0
	if idx := len(n.drives) - p.Order; idx >= 0 {
		lagged = n.drives[idx]
	}

	y := p.Alpha*n.y + p.Beta*n.y*sum + p.Gamma*lagged*drive + p.Delta
	if math.IsNaN(y) || math.IsInf(y, 0) || math.Abs(y) > divergenceLimit {
		return 0, errors.Wrapf(ErrDiverged, "%s at step %d", n.name, len(n.ys)+1)
	}
	n.y = y
	n.ys = append(n.ys, y)
	return y, nil
}

func (n *NARMA) Reset() {
	n.y = 0
	n.pending = 0
	n.ys = nil
	n.drives = nil
}
