package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []string
		yPred   []string
		want    float64
		wantErr bool
	}{
		{"perfect", []string{"a", "b", "a"}, []string{"a", "b", "a"}, 1, false},
		{"half", []string{"a", "b", "a", "b"}, []string{"a", "a", "b", "b"}, 0.5, false},
		{"none", []string{"a", "b"}, []string{"b", "a"}, 0, false},
		{"empty", nil, nil, 0, true},
		{"length mismatch", []string{"a"}, []string{"a", "b"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accuracy(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"2", "10", "11"}, Labels([]string{"10", "2"}, []string{"11", "2"}))
	assert.Equal(t, []string{"cat", "dog", "owl"}, Labels([]string{"dog", "cat"}, []string{"owl", "cat"}))
}

func TestMacroF1(t *testing.T) {
	// a: TP=2 FP=1 FN=0 -> 0.8, b: TP=1 FP=0 FN=1 -> 2/3
	yTrue := []string{"a", "a", "b", "b"}
	yPred := []string{"a", "a", "a", "b"}
	got, err := MacroF1(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, (0.8+2.0/3.0)/2, got, 1e-12)

	got, err = MacroF1([]string{"x", "y"}, []string{"x", "y"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestF1PerClass_Undefined(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(nil)

	f1, err := F1PerClass([]string{"a", "a"}, []string{"a", "a"}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, f1)
	require.Len(t, warned, 1)
	var uw *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warned[0], &uw))
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := ConfusionMatrix(
		[]string{"a", "b", "b", "c"},
		[]string{"a", "a", "b", "c"},
		[]string{"a", "b", "c"},
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cm.At(0, 0))
	assert.Equal(t, 1.0, cm.At(1, 0))
	assert.Equal(t, 1.0, cm.At(1, 1))
	assert.Equal(t, 1.0, cm.At(2, 2))
	assert.Equal(t, 0.0, cm.At(0, 1))

	_, err = ConfusionMatrix([]string{"a"}, []string{"a"}, nil)
	assert.Error(t, err)
}

func TestEvaluateClassification(t *testing.T) {
	yTrue := frame.NewNumeric("y", []float64{0, 1, 1, 0})
	yPred := frame.NewNumeric("y", []float64{0, 1, 0, 0})

	s, err := EvaluateClassification(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, s.Accuracy, 1e-12)
	assert.Equal(t, []string{"0", "1"}, s.Labels)
	assert.Equal(t, [][]float64{{2, 0}, {1, 1}}, s.Confusion)
	// 0: 2TP=4, FP=1 -> 0.8; 1: 2TP=2, FN=1 -> 2/3
	assert.InDelta(t, (0.8+2.0/3.0)/2, s.MacroF1, 1e-12)
	assert.False(t, math.IsNaN(s.Map()[MacroF1Name]))
}
