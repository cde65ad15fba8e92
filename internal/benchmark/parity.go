package benchmark

import (
	"math/rand"

	"github.com/pkg/errors"

	"tinyesn/internal/esn"
)

// Parity presents the integers 0..size-1, scaled to [0,1), in random order.
// The two-component target is (0, 0.5) for even integers and (0.5, 0) for
// odd ones.
type Parity struct {
	rng *rand.Rand
}

func NewParity(rng *rand.Rand) *Parity {
	return &Parity{rng: rng}
}

func (p *Parity) Name() string { return "parity" }

func (p *Parity) CreateTrainingSet(size int) (esn.Sequence, error) {
	if size < 0 {
		return nil, errors.Errorf("training set size must be non-negative, got %d", size)
	}
	seq := make(esn.Sequence, 0, size)
	for _, value := range p.rng.Perm(size) {
		target := []float64{0, 0.5}
		if value%2 == 1 {
			target = []float64{0.5, 0}
		}
		seq = append(seq, esn.Sample{
			Input:  []float64{float64(value) / float64(size)},
			Target: target,
		})
	}
	return seq, nil
}

func (p *Parity) Reset() {}
