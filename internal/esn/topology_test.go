package esn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func nonzeroColumns(w *mat.Dense, row int) []int {
	_, c := w.Dims()
	var cols []int
	for j := 0; j < c; j++ {
		if w.At(row, j) != 0 {
			cols = append(cols, j)
		}
	}
	return cols
}

func TestRingTopologyLinksNeighbours(t *testing.T) {
	for _, n := range []int{3, 5, 30} {
		w, err := BuildTopology(n, TopologyRing, 0, nil)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			want := []int{(i - 1 + n) % n, i, (i + 1) % n}
			require.ElementsMatch(t, want, nonzeroColumns(w, i), "n=%d row %d", n, i)
		}
	}
}

func TestFullyConnectedTopologyIsAllOnes(t *testing.T) {
	w, err := BuildTopology(6, TopologyFullyConnected, 0, nil)
	require.NoError(t, err)
	for _, value := range w.RawMatrix().Data {
		require.Equal(t, 1.0, value)
	}
}

func TestRandomTopologyPlacesExactWeightCount(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	w, err := BuildTopology(30, TopologyRandom, 0.1, rng)
	require.NoError(t, err)

	count := 0
	for _, value := range w.RawMatrix().Data {
		if value != 0 {
			count++
			require.GreaterOrEqual(t, value, -1.0)
			require.LessOrEqual(t, value, 1.0)
		}
	}
	require.Equal(t, 90, count)
}

func TestRandomTopologyRejectsConnectivityOutsideUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := BuildTopology(10, TopologyRandom, 1.5, rng)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = BuildTopology(10, TopologyRandom, -0.1, rng)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestGridTopologiesRequirePerfectSquare(t *testing.T) {
	for _, topology := range []Topology{TopologyLattice, TopologyTorus} {
		_, err := BuildTopology(10, topology, 0, nil)
		require.ErrorIs(t, err, ErrInvalidTopology, "topology %s", topology)

		w, err := BuildTopology(9, topology, 0, nil)
		require.NoError(t, err, "topology %s", topology)
		r, c := w.Dims()
		require.Equal(t, 9, r)
		require.Equal(t, 9, c)
	}
}

func TestTorusGivesEveryNodeNineNeighbours(t *testing.T) {
	w, err := BuildTopology(16, TopologyTorus, 0, nil)
	require.NoError(t, err)
	require.True(t, mat.Equal(w, w.T()), "torus must be symmetric")
	for i := 0; i < 16; i++ {
		require.Len(t, nonzeroColumns(w, i), 9, "row %d", i)
	}
}

func TestLatticeTrimsBorderNeighbours(t *testing.T) {
	w, err := BuildTopology(16, TopologyLattice, 0, nil)
	require.NoError(t, err)
	require.True(t, mat.Equal(w, w.T()), "lattice must be symmetric")

	require.Len(t, nonzeroColumns(w, 0), 4, "corner")
	require.Len(t, nonzeroColumns(w, 1), 6, "edge")
	require.Len(t, nonzeroColumns(w, 5), 9, "interior")
	require.ElementsMatch(t, []int{0, 1, 4, 5}, nonzeroColumns(w, 0))
}

func TestUnknownTopologyIsInvalidConfiguration(t *testing.T) {
	_, err := BuildTopology(9, Topology("hexagon"), 0, nil)
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}
