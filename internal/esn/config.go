package esn

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects whether the output reflects the previous or the current
// reservoir state.
type Mode string

const (
	// ModeDiscretised computes the output from the pre-update state and
	// commits the new input after the update.
	ModeDiscretised Mode = "discretised"
	// ModeInstantaneous commits the new input first and computes the output
	// from the post-update state.
	ModeInstantaneous Mode = "instantaneous"
)

// Topology names the connectivity pattern of the recurrent matrix.
type Topology string

const (
	TopologyRandom         Topology = "random"
	TopologyRing           Topology = "ring"
	TopologyLattice        Topology = "lattice"
	TopologyTorus          Topology = "torus"
	TopologyFullyConnected Topology = "fully_connected"
)

// Readout names the least-squares solver used to fit Wout.
type Readout string

const (
	// ReadoutPseudoinverse recomputes pinv(M)·D after every sample.
	ReadoutPseudoinverse Readout = "pinv"
	// ReadoutRLS applies a Sherman-Morrison rank-1 update per sample.
	ReadoutRLS Readout = "rls"
)

// Washout is the number of leading training samples whose states are
// computed but never fitted.
const Washout = 10

// ActivationFunc is a scalar nonlinearity applied elementwise.
type ActivationFunc func(float64) float64

// Config is the full construction surface of a Reservoir.
type Config struct {
	K int // input width
	N int // reservoir width
	L int // output width

	// Activation defaults to math.Tanh when nil.
	Activation ActivationFunc

	Mode         Mode
	Feedback     bool
	Topology     Topology
	Connectivity float64 // used by TopologyRandom only
	InputNorm    bool
	Readout      Readout
}

// DefaultConfig mirrors the classic small reservoir used for NARMA runs.
func DefaultConfig() Config {
	return Config{
		K:            1,
		N:            30,
		L:            1,
		Activation:   math.Tanh,
		Mode:         ModeDiscretised,
		Topology:     TopologyRandom,
		Connectivity: 0.1,
		InputNorm:    true,
		Readout:      ReadoutPseudoinverse,
	}
}

// ParseMode maps a mode name onto the closed set of modes.
func ParseMode(name string) (Mode, error) {
	mode := Mode(strings.TrimSpace(strings.ToLower(name)))
	switch mode {
	case ModeDiscretised, ModeInstantaneous:
		return mode, nil
	default:
		return "", errors.Wrapf(ErrInvalidConfiguration, "unknown mode %q", name)
	}
}

// ParseTopology maps a topology name onto the closed set of topologies.
func ParseTopology(name string) (Topology, error) {
	topology := Topology(strings.TrimSpace(strings.ToLower(name)))
	switch topology {
	case TopologyRandom, TopologyRing, TopologyLattice, TopologyTorus, TopologyFullyConnected:
		return topology, nil
	default:
		return "", errors.Wrapf(ErrInvalidConfiguration, "unknown topology %q", name)
	}
}

// ParseReadout maps a readout name onto the closed set of solvers.
func ParseReadout(name string) (Readout, error) {
	readout := Readout(strings.TrimSpace(strings.ToLower(name)))
	switch readout {
	case ReadoutPseudoinverse, ReadoutRLS:
		return readout, nil
	default:
		return "", errors.Wrapf(ErrInvalidConfiguration, "unknown readout %q", name)
	}
}

// Validate checks every field without allocating anything. An empty
// Readout is accepted and means ReadoutPseudoinverse.
func (c Config) Validate() error {
	if c.K <= 0 || c.N <= 0 || c.L <= 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "dimensions must be positive: K=%d N=%d L=%d", c.K, c.N, c.L)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if _, err := ParseTopology(string(c.Topology)); err != nil {
		return err
	}
	if c.Readout != "" {
		if _, err := ParseReadout(string(c.Readout)); err != nil {
			return err
		}
	}
	if math.IsNaN(c.Connectivity) || c.Connectivity < 0 || c.Connectivity > 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "connectivity %v outside [0,1]", c.Connectivity)
	}
	return nil
}

func (c Config) normalized() Config {
	c.Mode, _ = ParseMode(string(c.Mode))
	c.Topology, _ = ParseTopology(string(c.Topology))
	if c.Readout == "" {
		c.Readout = ReadoutPseudoinverse
	} else {
		c.Readout, _ = ParseReadout(string(c.Readout))
	}
	if c.Activation == nil {
		c.Activation = math.Tanh
	}
	return c
}
