package tree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion(CriterionGini), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
	}
}

func TestDecisionTreeClassifier_XOR(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5), WithMinSamplesLeaf(1))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1.0, dt.Score(X, y))
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		3, 3, 3, 4, 4, 3,
		6, 6, 6, 7, 7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	for _, criterion := range []string{CriterionGini, CriterionEntropy} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			require.NoError(t, dt.Fit(X, y))
			assert.Equal(t, 3, dt.NClasses)
			assert.Equal(t, 1.0, dt.Score(X, y))

			proba, err := dt.PredictProba(X)
			require.NoError(t, err)
			_, c := proba.Dims()
			assert.Equal(t, 3, c)
		})
	}
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	imp := dt.GetFeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0], 1e-9)
	assert.Equal(t, 0.0, imp[1])
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
}

func TestDecisionTreeClassifier_Limits(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	shallow := NewDecisionTreeClassifier(WithMaxDepth(2))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.GetDepth(), 2)

	leafy := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(2))
	require.NoError(t, leafy.Fit(X, y))
	assert.LessOrEqual(t, leafy.GetNLeaves(), 8)
	for _, n := range leafy.Tree.Nodes {
		if n.IsLeaf() {
			assert.GreaterOrEqual(t, n.NSamples, 2)
		}
	}
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])

	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2,
	}))
	assert.Equal(t, "entropy", dt.Criterion)
	assert.Equal(t, 5, dt.MaxDepth)
	assert.Equal(t, 4, dt.MinSamplesSplit)
	assert.Equal(t, 2, dt.MinSamplesLeaf)

	var ve *errors.ValidationError
	assert.True(t, errors.As(dt.SetParams(map[string]interface{}{"criterion": "log_loss"}), &ve))
	assert.True(t, errors.As(dt.SetParams(map[string]interface{}{"splitter": "random"}), &ve))
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var nf *errors.NotFittedError
	_, err := dt.Predict(X)
	assert.True(t, errors.As(err, &nf))
	_, err = dt.PredictProba(X)
	assert.True(t, errors.As(err, &nf))
}

func TestDecisionTreeRegressor(t *testing.T) {
	// 階段関数: x<5 => 1, x>=5 => 10
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		if i < 5 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 10)
		}
	}

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.Tree.Depth())
	assert.InDelta(t, 4.5, dt.Tree.Nodes[0].Threshold, 1e-12)

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{2, 7}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 10.0, pred.At(1, 0))

	_, err = dt.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestGrowClassifier_Bootstrap(t *testing.T) {
	X, _ := separable()
	labels := []int{0, 0, 0, 1, 1, 1}

	// 同じ行の重複はそのまま数に入る
	idx := []int{0, 0, 0, 3}
	tr := GrowClassifier(X, labels, 2, idx, Config{Criterion: CriterionGini}, rand.New(rand.NewSource(1)))
	require.Len(t, tr.Nodes, 3)
	assert.Equal(t, 4, tr.Nodes[0].NSamples)
	assert.Equal(t, []float64{0.75, 0.25}, tr.Nodes[0].Value)

	row := make([]float64, 2)
	mat.Row(row, 4, X)
	assert.Equal(t, []float64{0, 1}, tr.Value(row))
}

func TestTree_GobRoundTrip(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	var m model.MatrixClassifier = dt
	data, err := model.Marshal(&m)
	require.NoError(t, err)

	var back model.MatrixClassifier
	require.NoError(t, model.Unmarshal(data, &back))
	pred, err := back.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))
}
