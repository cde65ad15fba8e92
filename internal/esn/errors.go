package esn

import "github.com/pkg/errors"

var (
	// ErrInvalidConfiguration reports an unknown mode, topology or readout,
	// a connectivity outside [0,1], or non-positive dimensions.
	ErrInvalidConfiguration = errors.New("esn: invalid configuration")
	// ErrInvalidTopology reports a lattice or torus requested for a
	// reservoir width that is not a perfect square.
	ErrInvalidTopology = errors.New("esn: invalid topology")
	// ErrDimensionMismatch reports a sample whose input or target width
	// does not match the reservoir.
	ErrDimensionMismatch = errors.New("esn: dimension mismatch")
	// ErrNumericalInstability reports a failed factorisation or a
	// non-finite state or readout.
	ErrNumericalInstability = errors.New("esn: numerical instability")
)
