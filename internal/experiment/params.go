package experiment

import (
	"github.com/pkg/errors"

	"tinyesn/internal/esn"
	"tinyesn/internal/nn"
)

// Params is the serialisable description of one reservoir configuration.
// The activation is referenced by its registered name.
type Params struct {
	K            int          `json:"k"`
	N            int          `json:"n"`
	L            int          `json:"l"`
	Activation   string       `json:"activation"`
	Mode         esn.Mode     `json:"mode"`
	Feedback     bool         `json:"feedback"`
	Topology     esn.Topology `json:"topology"`
	Connectivity float64      `json:"connectivity"`
	InputNorm    bool         `json:"input_norm"`
	Readout      esn.Readout  `json:"readout"`
}

func DefaultParams() Params {
	cfg := esn.DefaultConfig()
	return Params{
		K:            cfg.K,
		N:            cfg.N,
		L:            cfg.L,
		Activation:   nn.DefaultActivation,
		Mode:         cfg.Mode,
		Feedback:     cfg.Feedback,
		Topology:     cfg.Topology,
		Connectivity: cfg.Connectivity,
		InputNorm:    cfg.InputNorm,
		Readout:      cfg.Readout,
	}
}

// Config resolves the activation and validates the result.
func (p Params) Config() (esn.Config, error) {
	fn, err := nn.GetActivation(p.Activation)
	if err != nil {
		return esn.Config{}, err
	}
	cfg := esn.Config{
		K:            p.K,
		N:            p.N,
		L:            p.L,
		Activation:   fn,
		Mode:         p.Mode,
		Feedback:     p.Feedback,
		Topology:     p.Topology,
		Connectivity: p.Connectivity,
		InputNorm:    p.InputNorm,
		Readout:      p.Readout,
	}
	if err := cfg.Validate(); err != nil {
		return esn.Config{}, errors.Wrap(err, "validate params")
	}
	return cfg, nil
}
