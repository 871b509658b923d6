package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// ClassLabels reads an n×1 label matrix encoded as 0..k-1 and returns the
// labels with k. At least two distinct classes are required.
func ClassLabels(op string, y mat.Matrix) ([]int, int, error) {
	rows, cols := y.Dims()
	if cols != 1 {
		return nil, 0, errors.NewDimensionError(op, 1, cols, 1)
	}
	labels := make([]int, rows)
	k := 0
	seen := map[int]bool{}
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, 0, errors.NewValueError(op, fmt.Sprintf("class labels must be encoded as 0..k-1, got %v", v))
		}
		labels[i] = int(v)
		seen[labels[i]] = true
		if labels[i]+1 > k {
			k = labels[i] + 1
		}
	}
	if len(seen) < 2 {
		return nil, 0, errors.NewValueError(op, "needs samples of at least 2 classes in the data")
	}
	return labels, k, nil
}

// ArgMax returns the index of the largest value; ties go to the lowest index.
func ArgMax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// PredictFromProba turns an n×k probability matrix into n×1 class indices.
func PredictFromProba(proba mat.Matrix) *mat.Dense {
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(ArgMax(row)))
	}
	return out
}
