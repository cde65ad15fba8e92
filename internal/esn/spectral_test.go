package esn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestScaleToUnitRadiusReturnsOriginalRadius(t *testing.T) {
	w := mat.NewDense(2, 2, []float64{2, 0, 0, -3})
	radius, err := ScaleToUnitRadius(w)
	require.NoError(t, err)
	require.InDelta(t, 3, radius, 1e-12)
	require.InDelta(t, 2.0/3, w.At(0, 0), 1e-12)
	require.InDelta(t, -1, w.At(1, 1), 1e-12)
}

func TestScaleToUnitRadiusLeavesZeroMatrix(t *testing.T) {
	w := mat.NewDense(4, 4, nil)
	radius, err := ScaleToUnitRadius(w)
	require.NoError(t, err)
	require.Zero(t, radius)
	for _, value := range w.RawMatrix().Data {
		require.Zero(t, value)
	}
}

func TestSpectralRadiusRejectsNonSquare(t *testing.T) {
	_, err := SpectralRadius(mat.NewDense(2, 3, nil))
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNewReservoirHasUnitSpectralRadius(t *testing.T) {
	cases := []struct {
		topology Topology
		n        int
	}{
		{TopologyRandom, 30},
		{TopologyRing, 30},
		{TopologyFullyConnected, 12},
		{TopologyLattice, 25},
		{TopologyTorus, 9},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.N = tc.n
		cfg.Topology = tc.topology
		r, err := New(cfg, WithSeed(21))
		require.NoError(t, err, "topology %s", tc.topology)

		radius, err := SpectralRadius(r.W())
		require.NoError(t, err)
		require.InDelta(t, 1, radius, 1e-9, "topology %s", tc.topology)
		require.Greater(t, r.UnscaledSpectralRadius(), 0.0)
	}
}

func TestZeroConnectivityKeepsZeroRecurrentMatrix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connectivity = 0
	r, err := New(cfg, WithSeed(3))
	require.NoError(t, err)
	require.Zero(t, mat.Norm(r.W(), 1))

	diag, err := r.Diagnostics()
	require.NoError(t, err)
	require.Zero(t, diag.SpectralRadius)
	require.Zero(t, diag.LargestSingularValue)
	require.True(t, diag.SufficientEchoState)
}

func TestLargestSingularValueBoundsSpectralRadius(t *testing.T) {
	cfg := DefaultConfig()
	r, err := New(cfg, WithSeed(8))
	require.NoError(t, err)

	diag, err := r.Diagnostics()
	require.NoError(t, err)
	require.InDelta(t, 1, diag.SpectralRadius, 1e-9)
	require.GreaterOrEqual(t, diag.LargestSingularValue, diag.SpectralRadius-1e-9)
	require.Equal(t, diag.LargestSingularValue < 1, diag.SufficientEchoState)
	require.Zero(t, diag.Timestep)
	require.False(t, diag.Trained)
}

func TestPseudoinverseOfInvertibleMatrixIsInverse(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{4, 7, 2, 6})
	pinv, err := Pseudoinverse(a)
	require.NoError(t, err)

	var inv mat.Dense
	require.NoError(t, inv.Inverse(a))
	require.True(t, mat.EqualApprox(pinv, &inv, 1e-12))
}

func TestPseudoinverseHandlesRankDeficientMatrix(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	pinv, err := Pseudoinverse(a)
	require.NoError(t, err)
	want := mat.NewDense(2, 2, []float64{0.25, 0.25, 0.25, 0.25})
	require.True(t, mat.EqualApprox(pinv, want, 1e-12))

	for _, value := range pinv.RawMatrix().Data {
		require.False(t, math.IsNaN(value))
	}
}

func TestPseudoinverseOfTallMatrixHasTransposedShape(t *testing.T) {
	a := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 1, 1, 2, -1})
	pinv, err := Pseudoinverse(a)
	require.NoError(t, err)
	r, c := pinv.Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 4, c)

	var identity mat.Dense
	identity.Mul(pinv, a)
	require.True(t, mat.EqualApprox(&identity, mat.NewDiagDense(2, []float64{1, 1}), 1e-12))
}
