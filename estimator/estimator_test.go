package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/sklearn/ensemble"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		wantID  string
		problem Problem
	}{
		{"linear_regression", LinearRegressionID, Regression},
		{"LinearRegression", LinearRegressionID, Regression},
		{"RANDOM_FOREST_REGRESSOR", RandomForestRegressorID, Regression},
		{"XGBRegressor", GradientBoostingRegressorID, Regression},
		{"SVR", LinearSVRID, Regression},
		{"LogisticRegression", LogisticRegressionID, Classification},
		{"RandomForestClassifier", RandomForestClassifierID, Classification},
		{"XGBClassifier", GradientBoostingClassifierID, Classification},
		{"SVC", LinearSVCID, Classification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, spec.ID)
			assert.Equal(t, tt.problem, spec.Problem)
		})
	}

	_, err := Lookup("KNeighborsClassifier")
	var ue *errors.UnknownEstimatorError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, IDs(), ue.Supported)

	assert.Len(t, List(), 8)
	assert.Len(t, ForProblem(Regression), 4)
	assert.Len(t, ForProblem(Classification), 4)
}

func TestNew_SeedAndParams(t *testing.T) {
	est, err := New("random_forest_classifier", map[string]interface{}{"n_estimators": 5}, 42)
	require.NoError(t, err)
	clf, ok := est.(*Classifier)
	require.True(t, ok)
	rf := clf.Model.(*ensemble.RandomForestClassifier)
	assert.Equal(t, int64(42), rf.RandomState)
	assert.Equal(t, 5, rf.NEstimators)

	// 明示的な random_state が優先される
	est, err = New("random_forest_classifier", map[string]interface{}{"random_state": 7}, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(7), est.(*Classifier).Model.(*ensemble.RandomForestClassifier).RandomState)

	_, err = New("linear_regression", map[string]interface{}{"alpha": 1.0}, 42)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func regressionFrame(t *testing.T) (*frame.Frame, *frame.Series) {
	t.Helper()
	X, err := frame.New(
		frame.NewNumeric("a", []float64{0, 1, 2, 3, 4}),
		frame.NewNumeric("b", []float64{1, 0, 1, 0, 1}),
	)
	require.NoError(t, err)
	// y = 2a + 3b + 1
	return X, frame.NewNumeric("y", []float64{4, 3, 8, 7, 12})
}

func TestRegressor_FitPredict(t *testing.T) {
	X, y := regressionFrame(t)
	est, err := New(LinearRegressionID, nil, 42)
	require.NoError(t, err)
	assert.Equal(t, Regression, est.Problem())

	_, err = est.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, est.Fit(X, y))

	// 列順が違っても学習時の順序に揃える
	reordered, err := X.Select("b", "a")
	require.NoError(t, err)
	pred, err := est.Predict(reordered)
	require.NoError(t, err)
	assert.Equal(t, "y", pred.Name)
	assert.InDeltaSlice(t, y.Floats, pred.Floats, 1e-9)

	w, err := est.(*Regressor).Weights()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, w.Features)
	assert.InDeltaSlice(t, []float64{2, 3}, w.Coefficients, 1e-9)

	dropped, err := X.Drop("b")
	require.NoError(t, err)
	_, err = est.Predict(dropped)
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))
}

func TestRegressor_InputErrors(t *testing.T) {
	X, _ := regressionFrame(t)
	est, err := New(LinearRegressionID, nil, 0)
	require.NoError(t, err)

	var ve *errors.ValueError
	err = est.Fit(X, frame.NewCategorical("y", []string{"a", "b", "a", "b", "a"}))
	assert.True(t, errors.As(err, &ve))

	err = est.Fit(X, frame.NewNumeric("y", []float64{1, math.NaN(), 3, 4, 5}))
	assert.True(t, errors.As(err, &ve))

	withNaN, err := X.WithColumn(frame.NewNumeric("a", []float64{0, math.NaN(), 2, 3, 4}))
	require.NoError(t, err)
	err = est.Fit(withNaN, frame.NewNumeric("y", []float64{1, 2, 3, 4, 5}))
	assert.True(t, errors.As(err, &ve))

	withCat, err := X.WithColumn(frame.NewCategorical("city", []string{"a", "b", "a", "b", "a"}))
	require.NoError(t, err)
	err = est.Fit(withCat, frame.NewNumeric("y", []float64{1, 2, 3, 4, 5}))
	assert.True(t, errors.As(err, &ve))
}

func TestClassifier_StringLabels(t *testing.T) {
	X, err := frame.New(frame.NewNumeric("x", []float64{-3, -2, -1, 1, 2, 3}))
	require.NoError(t, err)
	y := frame.NewCategorical("label", []string{"no", "no", "no", "yes", "yes", "yes"})

	est, err := New(LogisticRegressionID, nil, 42)
	require.NoError(t, err)
	require.NoError(t, est.Fit(X, y))

	clf := est.(*Classifier)
	assert.Equal(t, []string{"no", "yes"}, clf.Classes)

	pred, err := est.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, frame.Categorical, pred.Kind)
	assert.Equal(t, y.Strings, pred.Strings)

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, []string{"no", "yes"}, proba.Names())

	w, err := clf.Weights()
	require.NoError(t, err)
	assert.Equal(t, []string{"no", "yes"}, w.Classes)
}

func TestClassifier_NumericLabels(t *testing.T) {
	X, err := frame.New(frame.NewNumeric("x", []float64{0, 1, 2, 10, 11, 12, 20, 21, 22}))
	require.NoError(t, err)
	y := frame.NewNumeric("y", []float64{5, 5, 5, 10, 10, 10, 20, 20, 20})

	est, err := New(RandomForestClassifierID, map[string]interface{}{"n_estimators": 10}, 42)
	require.NoError(t, err)

	var calls int
	est.(*Classifier).SetProgress(func(done, total int) { calls++ })
	require.NoError(t, est.Fit(X, y))
	assert.Equal(t, 10, calls)

	pred, err := est.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, frame.Numeric, pred.Kind)
	assert.Equal(t, y.Floats, pred.Floats)

	imp, ok := est.(*Classifier).Importances()
	require.True(t, ok)
	assert.InDelta(t, 1.0, imp["x"], 1e-9)

	_, err = est.(*Classifier).Weights()
	assert.Error(t, err)
}

func TestClassifier_SingleClass(t *testing.T) {
	X, err := frame.New(frame.NewNumeric("x", []float64{1, 2}))
	require.NoError(t, err)
	est, err := New(LinearSVCID, nil, 0)
	require.NoError(t, err)

	var ve *errors.ValueError
	assert.True(t, errors.As(est.Fit(X, frame.NewCategorical("y", []string{"a", "a"})), &ve))
}

func TestAdapters_GobRoundTrip(t *testing.T) {
	X, y := regressionFrame(t)
	est, err := New(GradientBoostingRegressorID, map[string]interface{}{"n_estimators": 10}, 1)
	require.NoError(t, err)
	require.NoError(t, est.Fit(X, y))

	var m model.Estimator = est
	data, err := model.Marshal(&m)
	require.NoError(t, err)
	var back model.Estimator
	require.NoError(t, model.Unmarshal(data, &back))

	p1, err := est.Predict(X)
	require.NoError(t, err)
	p2, err := back.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, p1.Floats, p2.Floats)
}
