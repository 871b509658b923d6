package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/dataset"
	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/metrics"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/preprocessing"
	"github.com/YuminosukeSato/mlplayground/run"
)

const houses = `rooms,area,zone,price
2,50,n,110
3,65,s,150
3,70,n,158
4,82,s,190
4,90,n,205
5,104,s,238
2,48,s,104
3,60,n,139
5,110,n,251
6,125,s,286
1,30,n,68
4,88,s,200
`

func fit(t *testing.T, estimatorID, target string, cats []preprocessing.StepConfig) *run.Result {
	t.Helper()
	l, err := dataset.Load(strings.NewReader(houses))
	require.NoError(t, err)
	ds, err := dataset.New(l.Frame, target)
	require.NoError(t, err)

	cfg := run.DefaultConfig()
	cfg.Estimator = estimatorID
	cfg.TrainSize = 0.75
	cfg.NumericSteps = []preprocessing.StepConfig{{Type: preprocessing.StepStandardScaler}}
	cfg.CategoricalSteps = cats
	res, err := run.RunModel(context.Background(), ds, cfg)
	require.NoError(t, err)
	return res
}

func TestEvaluate_Regression(t *testing.T) {
	res := fit(t, estimator.LinearRegressionID, "price",
		[]preprocessing.StepConfig{{Type: preprocessing.StepOrdinal}})

	ev, err := Evaluate(res)
	require.NoError(t, err)
	assert.Equal(t, estimator.Regression, ev.Problem)
	require.NotNil(t, ev.Test.Regression)
	assert.Nil(t, ev.Test.Classification)
	assert.Greater(t, ev.Train.Regression.R2, 0.9)
	assert.Equal(t, 3, ev.TestPred.Len())
	assert.ElementsMatch(t,
		[]string{metrics.R2Name, metrics.MSEName, metrics.RMSEName, metrics.MAEName},
		keys(ev.Test.Map()))

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res, ev))
	out := buf.String()
	assert.Contains(t, out, "estimator: linear_regression")
	assert.Contains(t, out, "Train rows: 9  Test rows: 3")
	assert.Contains(t, out, "pre_processing -> estimator")
	assert.Contains(t, out, "rmse")
	assert.NotContains(t, out, "Confusion matrix")
}

func TestEvaluate_Classification(t *testing.T) {
	res := fit(t, estimator.RandomForestClassifierID, "zone", nil)

	ev, err := Evaluate(res)
	require.NoError(t, err)
	require.NotNil(t, ev.Test.Classification)
	assert.Nil(t, ev.Test.Regression)
	assert.ElementsMatch(t, []string{metrics.AccuracyName, metrics.MacroF1Name}, keys(ev.Train.Map()))
	assert.GreaterOrEqual(t, ev.Test.Classification.Accuracy, 0.0)
	assert.LessOrEqual(t, ev.Test.Classification.Accuracy, 1.0)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res, ev))
	assert.Contains(t, buf.String(), "Confusion matrix")
	assert.Contains(t, buf.String(), "accuracy")
}

func TestEvaluate_NoResult(t *testing.T) {
	_, err := Evaluate(nil)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestSavePlots(t *testing.T) {
	dir := t.TempDir()

	reg, err := Evaluate(fit(t, estimator.LinearRegressionID, "price",
		[]preprocessing.StepConfig{{Type: preprocessing.StepOrdinal}}))
	require.NoError(t, err)
	paths, err := SavePlots(dir, reg)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], PredictedVsActualFile))
	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	clf, err := Evaluate(fit(t, estimator.LogisticRegressionID, "zone", nil))
	require.NoError(t, err)
	paths, err = SavePlots(dir, clf)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(paths[0], ClassCountsFile))
	_, err = os.Stat(paths[0])
	assert.NoError(t, err)
}

func TestSavePlots_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots", "nested")

	ev, err := Evaluate(fit(t, estimator.LinearRegressionID, "price",
		[]preprocessing.StepConfig{{Type: preprocessing.StepOrdinal}}))
	require.NoError(t, err)
	paths, err := SavePlots(dir, ev)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, PredictedVsActualFile), paths[0])
	_, err = os.Stat(paths[0])
	assert.NoError(t, err)
}

func TestPlots_InputErrors(t *testing.T) {
	num := frame.NewNumeric("y", []float64{1, 2})
	cat := frame.NewCategorical("y", []string{"a", "b"})

	_, err := PredictedVsActual(num, cat)
	assert.Error(t, err)
	_, err = PredictedVsActual(num, frame.NewNumeric("p", []float64{1}))
	assert.Error(t, err)
	_, err = ClassCounts(cat, cat, nil)
	assert.Error(t, err)

	p, err := ClassCounts(cat, frame.NewCategorical("p", []string{"a", "a"}), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "Class counts", p.Title.Text)
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
