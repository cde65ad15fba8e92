package esn

import (
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// zeroRadius is the spectral radius below which a matrix is treated as
// having no eigenvalue mass; scaling is skipped rather than amplifying noise.
const zeroRadius = 1e-12

// SpectralRadius returns the largest eigenvalue modulus of a square matrix.
func SpectralRadius(a mat.Matrix) (float64, error) {
	r, c := a.Dims()
	if r != c {
		return 0, errors.Wrapf(ErrDimensionMismatch, "spectral radius needs a square matrix, got %dx%d", r, c)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenNone); !ok {
		return 0, errors.Wrap(ErrNumericalInstability, "eigen decomposition did not converge")
	}
	radius := 0.0
	for _, value := range eig.Values(nil) {
		if abs := cmplx.Abs(value); abs > radius {
			radius = abs
		}
	}
	return radius, nil
}

// ScaleToUnitRadius divides w in place by its spectral radius and returns
// the radius measured before scaling. A zero radius leaves w unchanged.
func ScaleToUnitRadius(w *mat.Dense) (float64, error) {
	radius, err := SpectralRadius(w)
	if err != nil {
		return 0, err
	}
	if radius < zeroRadius {
		return radius, nil
	}
	w.Scale(1/radius, w)
	return radius, nil
}

// LargestSingularValue returns the operator 2-norm of a.
func LargestSingularValue(a mat.Matrix) (float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return 0, errors.Wrap(ErrNumericalInstability, "singular value decomposition did not converge")
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0, nil
	}
	return values[0], nil
}

// Diagnostics reports echo-state heuristics of the recurrent matrix.
type Diagnostics struct {
	SpectralRadius       float64 `json:"spectral_radius"`
	LargestSingularValue float64 `json:"largest_singular_value"`
	// SufficientEchoState holds when the largest singular value is below 1,
	// which guarantees the echo state property for tanh-like activations.
	SufficientEchoState bool `json:"sufficient_echo_state"`
	Timestep            int  `json:"timestep"`
	Trained             bool `json:"trained"`
}
