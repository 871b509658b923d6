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

func cityFrame(t *testing.T, cities ...string) *frame.Frame {
	t.Helper()
	age := make([]float64, len(cities))
	for i := range age {
		age[i] = float64(20 + i)
	}
	f, err := frame.New(
		frame.NewNumeric("age", age),
		frame.NewCategorical("city", cities),
	)
	require.NoError(t, err)
	return f
}

func TestOneHotEncoder(t *testing.T) {
	train, _ := cityFrame(t, "Paris", "Lyon", "Paris").Select("city")
	enc := NewOneHotEncoder(HandleUnknownIgnore)

	out, err := model.FitTransform(enc, train, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"city_Lyon", "city_Paris"}, out.Names())
	paris, _ := out.Column("city_Paris")
	assert.Equal(t, []float64{1, 0, 1}, paris.Floats)

	// 未知カテゴリは全て0
	test, _ := cityFrame(t, "Nice").Select("city")
	out, err = enc.Transform(test)
	require.NoError(t, err)
	for _, c := range out.Columns() {
		assert.Equal(t, []float64{0}, c.Floats)
	}

	strict := NewOneHotEncoder(HandleUnknownError)
	require.NoError(t, strict.Fit(train, nil))
	_, err = strict.Transform(test)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestOneHotEncoder_KeepsOtherColumnsInPlace(t *testing.T) {
	X := cityFrame(t, "b", "", "a")
	city, _ := X.Select("city")

	enc := NewOneHotEncoder(HandleUnknownIgnore)
	require.NoError(t, enc.Fit(city, nil))

	out, err := enc.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "city_a", "city_b", "city_nan"}, out.Names())
	assert.Equal(t, enc.FeatureNames(), []string{"city_a", "city_b", "city_nan"})
}

func TestOrdinalEncoder(t *testing.T) {
	X, _ := cityFrame(t, "b", "a", "", "b").Select("city")
	enc := NewOrdinalEncoder()

	out, err := model.FitTransform(enc, X, nil)
	require.NoError(t, err)
	col, _ := out.Column("city")
	assert.True(t, col.IsNumeric())
	assert.Equal(t, 1.0, col.Floats[0])
	assert.Equal(t, 0.0, col.Floats[1])
	assert.True(t, math.IsNaN(col.Floats[2]))

	unknown, _ := cityFrame(t, "c").Select("city")
	_, err = enc.Transform(unknown)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}
