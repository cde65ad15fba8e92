package benchmark

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"tinyesn/internal/esn"
)

// XOR pairs random integers a, b in [0, root) with target a XOR b, where
// root = floor(√size). Inputs and targets are divided by 2·root. The set
// holds root² samples; repeated pairs are kept.
type XOR struct {
	rng *rand.Rand
}

func NewXOR(rng *rand.Rand) *XOR {
	return &XOR{rng: rng}
}

func (x *XOR) Name() string { return "xor" }

func (x *XOR) CreateTrainingSet(size int) (esn.Sequence, error) {
	if size < 0 {
		return nil, errors.Errorf("training set size must be non-negative, got %d", size)
	}
	root := int(math.Sqrt(float64(size)))
	if root == 0 {
		return esn.Sequence{}, nil
	}
	a := make([]int, root)
	b := make([]int, root)
	for i := range a {
		a[i] = x.rng.Intn(root)
		b[i] = x.rng.Intn(root)
	}

	scale := float64(2 * root)
	seq := make(esn.Sequence, 0, root*root)
	for _, left := range a {
		for _, right := range b {
			seq = append(seq, esn.Sample{
				Input:  []float64{float64(left) / scale, float64(right) / scale},
				Target: []float64{float64(left^right) / scale},
			})
		}
	}
	return seq, nil
}

func (x *XOR) Reset() {}
