package experiment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tinyesn/internal/benchmark"
)

const DefaultTrials = 100

// RunOptions controls a batch of independent trials.
type RunOptions struct {
	Trials int
	Size   int
	// Seed is the base seed; trial i uses Seed+i. Zero picks a time-based
	// base seed.
	Seed   int64
	Logger logrus.FieldLogger
}

func (o RunOptions) normalized() RunOptions {
	if o.Trials <= 0 {
		o.Trials = DefaultTrials
	}
	if o.Size <= 0 {
		o.Size = DefaultTrialSize
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	return o
}

// RunMany trains and tests opts.Trials fresh reservoirs one after another
// and returns their results in trial order. The context is checked before
// every trial.
func RunMany(ctx context.Context, params Params, bench benchmark.Benchmark, opts RunOptions) ([]TrialResult, error) {
	if bench == nil {
		return nil, errors.New("benchmark is required")
	}
	opts = opts.normalized()
	log := opts.Logger.WithFields(logrus.Fields{
		"benchmark": bench.Name(),
		"trials":    opts.Trials,
		"size":      opts.Size,
	})

	results := make([]TrialResult, 0, opts.Trials)
	for i := 0; i < opts.Trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seed := opts.Seed + int64(i)
		result, err := RunTrial(params, bench, opts.Size, seed)
		if err != nil {
			return nil, errors.Wrapf(err, "trial %d", i)
		}
		result.Index = i
		results = append(results, result)
		log.WithFields(logrus.Fields{
			"trial":          i,
			"seed":           seed,
			"training_nrmse": result.TrainingNRMSE,
			"testing_nrmse":  result.TestingNRMSE,
		}).Debug("trial complete")
	}
	log.Info("trials complete")
	return results, nil
}

// Comparison holds the results of two configurations run side by side.
type Comparison struct {
	A []TrialResult `json:"a"`
	B []TrialResult `json:"b"`
}

// Compare runs both configurations against their own benchmarks with the
// same options, so trial i of A and B share a seed.
func Compare(ctx context.Context, a, b Params, benchA, benchB benchmark.Benchmark, opts RunOptions) (Comparison, error) {
	opts = opts.normalized()
	first, err := RunMany(ctx, a, benchA, opts)
	if err != nil {
		return Comparison{}, errors.Wrap(err, "run a")
	}
	second, err := RunMany(ctx, b, benchB, opts)
	if err != nil {
		return Comparison{}, errors.Wrap(err, "run b")
	}
	return Comparison{A: first, B: second}, nil
}

// TrainingNRMSEs returns the training errors of results in order.
func TrainingNRMSEs(results []TrialResult) []float64 {
	out := make([]float64, len(results))
	for i, result := range results {
		out[i] = result.TrainingNRMSE
	}
	return out
}

// TestingNRMSEs returns the testing errors of results in order.
func TestingNRMSEs(results []TrialResult) []float64 {
	out := make([]float64, len(results))
	for i, result := range results {
		out[i] = result.TestingNRMSE
	}
	return out
}
