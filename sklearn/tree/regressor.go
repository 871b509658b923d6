package tree

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// DecisionTreeRegressor is a CART regressor minimizing squared error.
type DecisionTreeRegressor struct {
	State *model.StateManager

	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int64

	Tree *Tree
}

// NewDecisionTreeRegressor returns a regressor with scikit-learn defaults.
func NewDecisionTreeRegressor() *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (d *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", 1, yCols, 1)
	}

	target := make([]float64, rows)
	mat.Col(target, 0, y)
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	cfg := Config{
		Criterion:       CriterionSquaredError,
		MaxDepth:        d.MaxDepth,
		MinSamplesSplit: d.MinSamplesSplit,
		MinSamplesLeaf:  d.MinSamplesLeaf,
		MaxFeatures:     d.MaxFeatures,
	}
	d.Tree = GrowRegressor(mat.DenseCopyOf(X), target, idx, cfg, rand.New(rand.NewSource(d.RandomState)))
	d.State.SetFitted()
	d.State.SetDimensions(cols, rows)
	return nil
}

func (d *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := d.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := d.State.RequireFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, d.Tree.Value(row)[0])
	}
	return out, nil
}

func (d *DecisionTreeRegressor) SetRandomState(seed int64) { d.RandomState = seed }

func (d *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         d.MaxDepth,
		"min_samples_split": d.MinSamplesSplit,
		"min_samples_leaf":  d.MinSamplesLeaf,
		"max_features":      d.MaxFeatures,
		"random_state":      d.RandomState,
	}
}

func (d *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("DecisionTreeRegressor", params, map[string]model.ParamFunc{
		"max_depth":         model.IntParam(&d.MaxDepth),
		"min_samples_split": model.IntParam(&d.MinSamplesSplit),
		"min_samples_leaf":  model.IntParam(&d.MinSamplesLeaf),
		"max_features":      model.IntParam(&d.MaxFeatures),
		"random_state":      model.Int64Param(&d.RandomState),
	})
}

func (d *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d)", d.MaxDepth)
}
