package experiment

import (
	"github.com/pkg/errors"

	"tinyesn/internal/benchmark"
	"tinyesn/internal/esn"
)

const (
	DefaultTrialSize     = 500
	DefaultBehaviourSize = 1000
)

// TrialResult is the outcome of training and testing one fresh reservoir.
type TrialResult struct {
	Index         int     `json:"index"`
	Seed          int64   `json:"seed"`
	TrainingNRMSE float64 `json:"training_nrmse"`
	TestingNRMSE  float64 `json:"testing_nrmse"`
}

// Behaviour holds the target and output series of one trial, aligned row
// for row as they were scored. Training targets exclude the washout
// samples. A discretised reservoir emits f(Wout·x(t-1)) at step t, so its
// output at row i+1 estimates the target of row i: both series drop one
// sample (the first output and the last target) before scoring.
type Behaviour struct {
	Result          TrialResult     `json:"result"`
	TrainingTargets [][]float64     `json:"training_targets"`
	TrainingOutputs [][]float64     `json:"training_outputs"`
	TestingTargets  [][]float64     `json:"testing_targets"`
	TestingOutputs  [][]float64     `json:"testing_outputs"`
	Diagnostics     esn.Diagnostics `json:"diagnostics"`
}

// Split divides seq into the training half (the second half) and the
// testing half (the first half).
func Split(seq esn.Sequence) (training, testing esn.Sequence) {
	mid := len(seq) / 2
	return seq[mid:], seq[:mid]
}

// RunTrial resets bench, draws size samples, then trains and tests a
// reservoir built from params with the given seed.
func RunTrial(params Params, bench benchmark.Benchmark, size int, seed int64) (TrialResult, error) {
	behaviour, err := RunBehaviour(params, bench, size, seed)
	if err != nil {
		return TrialResult{}, err
	}
	return behaviour.Result, nil
}

// RunBehaviour is RunTrial keeping the full target and output series.
func RunBehaviour(params Params, bench benchmark.Benchmark, size int, seed int64) (Behaviour, error) {
	if bench == nil {
		return Behaviour{}, errors.New("benchmark is required")
	}
	if size <= 0 {
		return Behaviour{}, errors.Errorf("trial size must be positive, got %d", size)
	}
	cfg, err := params.Config()
	if err != nil {
		return Behaviour{}, err
	}

	bench.Reset()
	data, err := bench.CreateTrainingSet(size)
	if err != nil {
		return Behaviour{}, errors.Wrapf(err, "create %s training set", bench.Name())
	}
	training, testing := Split(data)
	lag := 0
	if cfg.Mode == esn.ModeDiscretised {
		lag = 1
	}
	if len(training) <= esn.Washout+lag {
		return Behaviour{}, errors.Errorf("training half of %d samples does not exceed the %d sample washout", len(training), esn.Washout+lag)
	}
	if len(testing) <= lag {
		return Behaviour{}, errors.Errorf("testing half of %d samples is too short", len(testing))
	}

	reservoir, err := esn.New(cfg, esn.WithSeed(seed))
	if err != nil {
		return Behaviour{}, err
	}
	diag, err := reservoir.Diagnostics()
	if err != nil {
		return Behaviour{}, err
	}

	if err := reservoir.Train(training); err != nil {
		return Behaviour{}, errors.Wrap(err, "train")
	}
	out := Behaviour{
		Result:      TrialResult{Seed: seed},
		Diagnostics: diag,
	}
	out.TrainingTargets, out.TrainingOutputs = align(training.Targets(esn.Washout), reservoir.Outputs(), lag)
	out.Result.TrainingNRMSE, err = NRMSE(out.TrainingTargets, out.TrainingOutputs)
	if err != nil {
		return Behaviour{}, errors.Wrap(err, "training nrmse")
	}

	if err := reservoir.Test(testing); err != nil {
		return Behaviour{}, errors.Wrap(err, "test")
	}
	out.TestingTargets, out.TestingOutputs = align(testing.Targets(0), reservoir.Outputs(), lag)
	out.Result.TestingNRMSE, err = NRMSE(out.TestingTargets, out.TestingOutputs)
	if err != nil {
		return Behaviour{}, errors.Wrap(err, "testing nrmse")
	}
	out.Diagnostics.Timestep = reservoir.Timestep()
	out.Diagnostics.Trained = reservoir.Trained()
	return out, nil
}

// align pairs each output with the target it estimates when outputs trail
// their targets by lag steps.
func align(targets, outputs [][]float64, lag int) ([][]float64, [][]float64) {
	if lag == 0 || len(targets) != len(outputs) || len(targets) <= lag {
		return targets, outputs
	}
	return targets[:len(targets)-lag], outputs[lag:]
}
