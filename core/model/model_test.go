package model

import (
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

type addOne struct {
	Column string
	Fitted bool
}

func (a *addOne) Fit(X *frame.Frame, y *frame.Series) error {
	a.Fitted = true
	return nil
}

func (a *addOne) Transform(X *frame.Frame) (*frame.Frame, error) {
	col, err := X.Column(a.Column)
	if err != nil {
		return nil, err
	}
	out := col.Clone()
	for i := range out.Floats {
		out.Floats[i]++
	}
	return X.WithColumn(out)
}

func init() {
	gob.Register(&addOne{})
}

func TestStep_Validate(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{"transformer", NewTransformerStep("add", &addOne{}), false},
		{"missing name", NewTransformerStep("", &addOne{}), true},
		{"nil transformer", Step{Name: "x", Kind: TransformerStep}, true},
		{"nil estimator", Step{Name: "x", Kind: EstimatorStep}, true},
		{"unknown kind", Step{Name: "x", Kind: StepKind(9)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStepSpec_BuildsFreshInstances(t *testing.T) {
	spec := StepSpec{Name: "add", New: func() Transformer { return &addOne{Column: "x"} }}

	steps := BuildSteps([]StepSpec{spec, spec})
	require.Len(t, steps, 2)
	assert.NotSame(t, steps[0].Transformer, steps[1].Transformer)
	assert.Equal(t, TransformerStep, steps[0].Kind)
	assert.Equal(t, "transformer", steps[0].Kind.String())
}

func TestFitTransform(t *testing.T) {
	X, err := frame.New(frame.NewNumeric("x", []float64{1, 2}))
	require.NoError(t, err)

	tr := &addOne{Column: "x"}
	out, err := FitTransform(tr, X, nil)
	require.NoError(t, err)
	assert.True(t, tr.Fitted)

	col, _ := out.Column("x")
	assert.Equal(t, []float64{2, 3}, col.Floats)
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("Pipeline", "Predict")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Predict", nf.Method)

	s.SetFitted()
	s.SetDimensions(3, 10)
	assert.NoError(t, s.RequireFitted("Pipeline", "Predict"))
	assert.NoError(t, s.RequireFeatures("Predict", 3))

	var de *errors.DimensionError
	assert.True(t, errors.As(s.RequireFeatures("Predict", 4), &de))

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestMarshalRoundTrip(t *testing.T) {
	step := NewTransformerStep("add", &addOne{Column: "x", Fitted: true})

	data, err := Marshal(&step)
	require.NoError(t, err)

	var got Step
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, "add", got.Name)
	tr, ok := got.Transformer.(*addOne)
	require.True(t, ok)
	assert.Equal(t, "x", tr.Column)
	assert.True(t, tr.Fitted)

	assert.True(t, errors.Is(Unmarshal(nil, &got), errors.ErrEmptyData))
}

func TestModelWeights(t *testing.T) {
	w := &ModelWeights{
		ModelType:    "LinearRegression",
		Version:      "1.0.0",
		Coefficients: []float64{0.5, -1},
		Intercept:    2,
		Features:     []string{"age", "income"},
		IsFitted:     true,
	}
	require.NoError(t, w.Validate())

	clone := w.Clone()
	clone.Coefficients[0] = 9
	assert.Equal(t, 0.5, w.Coefficients[0])

	data, err := w.ToJSON()
	require.NoError(t, err)
	var back ModelWeights
	require.NoError(t, back.FromJSON(data))
	assert.Equal(t, w.Features, back.Features)

	w.Coefficients = nil
	assert.Error(t, w.Validate())
}

func TestApplyParams(t *testing.T) {
	var (
		c       = 1.0
		maxIter = 100
		fit     = true
		penalty = "l2"
		seed    int64
	)
	setters := map[string]ParamFunc{
		"C":             Positive(&c),
		"max_iter":      IntParam(&maxIter),
		"fit_intercept": BoolParam(&fit),
		"penalty":       StringParam(&penalty, "l2", "none"),
		"random_state":  Int64Param(&seed),
	}

	err := ApplyParams("LogisticRegression", map[string]interface{}{
		"C":             0.5,
		"max_iter":      float64(200), // JSON numbers decode as float64
		"fit_intercept": "false",
		"penalty":       "none",
		"random_state":  7,
	}, setters)
	require.NoError(t, err)
	assert.Equal(t, 0.5, c)
	assert.Equal(t, 200, maxIter)
	assert.False(t, fit)
	assert.Equal(t, "none", penalty)
	assert.Equal(t, int64(7), seed)

	tests := []struct {
		name   string
		params map[string]interface{}
		param  string
	}{
		{"unknown key", map[string]interface{}{"alpha": 1}, "alpha"},
		{"non integer", map[string]interface{}{"max_iter": 2.5}, "max_iter"},
		{"not positive", map[string]interface{}{"C": 0}, "C"},
		{"not allowed", map[string]interface{}{"penalty": "l1"}, "penalty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ApplyParams("LogisticRegression", tt.params, setters)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
	assert.Equal(t, 0.5, c)
}
