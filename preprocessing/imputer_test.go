package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func TestSimpleImputer_Numeric(t *testing.T) {
	X, err := frame.New(frame.NewNumeric("x", []float64{1, math.NaN(), 3, 3, 10}))
	require.NoError(t, err)

	tests := []struct {
		strategy string
		fill     string
		want     float64
	}{
		{StrategyMean, "", 4.25},
		{StrategyMedian, "", 3},
		{StrategyMostFrequent, "", 3},
		{StrategyConstant, "-1", -1},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			imp := NewSimpleImputer(tt.strategy, tt.fill)
			out, err := model.FitTransform(imp, X, nil)
			require.NoError(t, err)
			col, _ := out.Column("x")
			assert.InDelta(t, tt.want, col.Floats[1], 1e-12)
			assert.Equal(t, 1.0, col.Floats[0])
		})
	}
}

func TestSimpleImputer_Categorical(t *testing.T) {
	X, err := frame.New(frame.NewCategorical("city", []string{"Paris", "", "Lyon", "Lyon"}))
	require.NoError(t, err)

	imp := NewSimpleImputer(StrategyConstant, "")
	out, err := model.FitTransform(imp, X, nil)
	require.NoError(t, err)
	col, _ := out.Column("city")
	assert.Equal(t, DefaultCategoricalFill, col.Strings[1])

	imp = NewSimpleImputer(StrategyMostFrequent, "")
	out, err = model.FitTransform(imp, X, nil)
	require.NoError(t, err)
	col, _ = out.Column("city")
	assert.Equal(t, "Lyon", col.Strings[1])

	imp = NewSimpleImputer(StrategyMean, "")
	err = imp.Fit(X, nil)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestSimpleImputer_AllMissing(t *testing.T) {
	X, err := frame.New(frame.NewNumeric("x", []float64{math.NaN(), math.NaN()}))
	require.NoError(t, err)

	err = NewSimpleImputer(StrategyMean, "").Fit(X, nil)
	require.Error(t, err)

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewSimpleImputer("bogus", "").Fit(X, nil), &ve))
}
