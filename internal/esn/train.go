package esn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Train drives the reservoir through seq in order. The first Washout
// samples only warm the state; every later post-update state and its target
// are fitted and the readout is re-solved after each sample, so Wout is the
// least-squares fit over all samples seen so far. Outputs logged during the
// call replace any previous outputs.
//
// Every sample is validated before the reservoir is touched. A numerical
// failure aborts the whole call with ErrNumericalInstability; samples are
// never skipped. After a failure Wout, Trained and Outputs are those from
// before the call, while the state vectors and timestep keep the steps
// already taken.
func (r *Reservoir) Train(seq Sequence) error {
	if err := r.validate(seq, true); err != nil {
		return err
	}

	prevWout := mat.DenseCopyOf(r.wout)
	prevTrained := r.trained
	outputs, err := r.fit(seq)
	if err != nil {
		r.wout.Copy(prevWout)
		r.trained = prevTrained
		return err
	}
	r.outputs = outputs
	return nil
}

// fit refits Wout after every post-washout sample. Later steps read the
// refitted Wout, so it is updated in place.
func (r *Reservoir) fit(seq Sequence) ([][]float64, error) {
	solver := newSolver(r.cfg.Readout, r.cfg.N, r.cfg.L)
	outputs := make([][]float64, 0, max(len(seq)-Washout, 0))
	for i, sample := range seq {
		if err := r.Step(sample.Input); err != nil {
			return nil, errors.WithMessagef(err, "train sample %d", i)
		}
		if i < Washout {
			continue
		}
		outputs = append(outputs, r.Output())
		if err := solver.Add(r.State(), sample.Target); err != nil {
			return nil, errors.WithMessagef(err, "train sample %d", i)
		}
		r.wout.Copy(solver.Weights())
		r.trained = true
	}
	return outputs, nil
}

// Test drives the trained reservoir through the inputs of seq and logs one
// output row per input. Targets are ignored and Wout is left untouched. No
// washout is applied: the state carries over from earlier calls.
func (r *Reservoir) Test(seq Sequence) error {
	if err := r.validate(seq, false); err != nil {
		return err
	}

	outputs := make([][]float64, 0, len(seq))
	for i, sample := range seq {
		if err := r.Step(sample.Input); err != nil {
			return errors.WithMessagef(err, "test sample %d", i)
		}
		outputs = append(outputs, r.Output())
	}
	r.outputs = outputs
	return nil
}

func (r *Reservoir) validate(seq Sequence, targets bool) error {
	for i, sample := range seq {
		if len(sample.Input) != r.cfg.K {
			return errors.Wrapf(ErrDimensionMismatch, "sample %d input width %d, reservoir expects %d", i, len(sample.Input), r.cfg.K)
		}
		if targets && len(sample.Target) != r.cfg.L {
			return errors.Wrapf(ErrDimensionMismatch, "sample %d target width %d, reservoir expects %d", i, len(sample.Target), r.cfg.L)
		}
	}
	return nil
}
