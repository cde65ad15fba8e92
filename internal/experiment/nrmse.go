package experiment

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrLengthMismatch = errors.New("target and output lengths differ")
	ErrZeroVariance   = errors.New("targets have zero variance")
)

// NRMSE returns sqrt(mean((t-o)²) / mean((t-mean(t))²)) over every sample
// and component. A predictor that always emits the target mean scores 1.
func NRMSE(targets, outputs [][]float64) (float64, error) {
	if len(targets) != len(outputs) {
		return 0, errors.Wrapf(ErrLengthMismatch, "%d targets, %d outputs", len(targets), len(outputs))
	}
	if len(targets) == 0 {
		return 0, errors.Wrap(ErrLengthMismatch, "no samples")
	}

	width := len(targets[0])
	for i, row := range targets {
		if len(row) != width || len(outputs[i]) != width {
			return 0, errors.Wrapf(ErrLengthMismatch, "sample %d has widths %d/%d, expected %d", i, len(row), len(outputs[i]), width)
		}
	}

	n := len(targets)
	target := make([]float64, n)
	output := make([]float64, n)
	diff := make([]float64, n)
	var squared, variance float64
	for j := 0; j < width; j++ {
		for i := range targets {
			target[i] = targets[i][j]
			output[i] = outputs[i][j]
		}
		floats.SubTo(diff, target, output)
		squared += floats.Dot(diff, diff)

		floats.AddConst(-stat.Mean(target, nil), target)
		variance += floats.Dot(target, target)
	}
	if variance == 0 {
		return 0, ErrZeroVariance
	}
	return math.Sqrt(squared / variance), nil
}
