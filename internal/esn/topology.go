package esn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// BuildTopology returns the unscaled n×n recurrent matrix for topology.
// Template topologies (ring, lattice, torus, fully connected) carry unit
// weights; the random topology places exactly round(connectivity·n²)
// weights drawn uniformly from [-1,1] at distinct random cells.
func BuildTopology(n int, topology Topology, connectivity float64, rng *rand.Rand) (*mat.Dense, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "reservoir width must be positive, got %d", n)
	}
	switch topology {
	case TopologyRandom:
		if math.IsNaN(connectivity) || connectivity < 0 || connectivity > 1 {
			return nil, errors.Wrapf(ErrInvalidConfiguration, "connectivity %v outside [0,1]", connectivity)
		}
		if rng == nil {
			return nil, errors.Wrap(ErrInvalidConfiguration, "random topology requires a random source")
		}
		return randomTopology(n, connectivity, rng), nil
	case TopologyRing:
		return ringTopology(n), nil
	case TopologyFullyConnected:
		return fullyConnectedTopology(n), nil
	case TopologyLattice:
		return gridTopology(n, false)
	case TopologyTorus:
		return gridTopology(n, true)
	default:
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unknown topology %q", topology)
	}
}

func randomTopology(n int, connectivity float64, rng *rand.Rand) *mat.Dense {
	cells := n * n
	count := int(math.Round(connectivity * float64(cells)))
	w := mat.NewDense(n, n, nil)
	for _, cell := range rng.Perm(cells)[:count] {
		w.Set(cell/n, cell%n, rng.Float64()*2-1)
	}
	return w
}

func ringTopology(n int) *mat.Dense {
	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		w.Set(i, i, 1)
		w.Set(i, (i-1+n)%n, 1)
		w.Set(i, (i+1)%n, 1)
	}
	return w
}

func fullyConnectedTopology(n int) *mat.Dense {
	data := make([]float64, n*n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(n, n, data)
}

// gridTopology wires each node of a √n×√n grid to itself and its Moore
// neighbourhood. Without wrap, neighbours outside the grid are omitted.
func gridTopology(n int, wrap bool) (*mat.Dense, error) {
	side, ok := squareSide(n)
	if !ok {
		kind := TopologyLattice
		if wrap {
			kind = TopologyTorus
		}
		return nil, errors.Wrapf(ErrInvalidTopology, "%s requires a perfect-square reservoir width, got %d", kind, n)
	}

	w := mat.NewDense(n, n, nil)
	for r := 0; r < side; r++ {
		for c := 0; c < side; c++ {
			node := r*side + c
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					nr, nc := r+dr, c+dc
					if wrap {
						nr = (nr + side) % side
						nc = (nc + side) % side
					} else if nr < 0 || nr >= side || nc < 0 || nc >= side {
						continue
					}
					w.Set(node, nr*side+nc, 1)
				}
			}
		}
	}
	return w, nil
}

func squareSide(n int) (int, bool) {
	side := int(math.Round(math.Sqrt(float64(n))))
	return side, side*side == n
}
