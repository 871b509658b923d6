package errors

import "math"

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckScalar returns a NumericalInstabilityError when a fitted value is
// NaN or infinite.
func CheckScalar(operation string, value float64, iteration int) error {
	if finite(value) {
		return nil
	}
	return NewNumericalInstabilityError(operation, []float64{value}, iteration)
}

// CheckFinite rejects matrices with NaN or infinite cells. Estimators call
// it before fitting, so an un-imputed missing value surfaces as a ValueError
// that names the fix.
func CheckFinite(operation string, m interface {
	At(int, int) float64
	Dims() (int, int)
}) error {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !finite(m.At(i, j)) {
				return NewValueError(operation, "input contains NaN or infinity; add an imputer to the numeric steps")
			}
		}
	}
	return nil
}
