package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		NewNumeric("age", []float64{31, 45, math.NaN(), 22}),
		NewCategorical("city", []string{"Paris", "", "Lyon", "Paris"}),
		NewNumeric("income", []float64{10, 20, 30, 40}),
	)
	require.NoError(t, err)
	return f
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cols    []*Series
		wantErr func(error) bool
	}{
		{
			name: "duplicate names",
			cols: []*Series{NewNumeric("a", []float64{1}), NewNumeric("a", []float64{2})},
			wantErr: func(err error) bool {
				var dup *errors.DuplicateColumnError
				return errors.As(err, &dup)
			},
		},
		{
			name: "ragged columns",
			cols: []*Series{NewNumeric("a", []float64{1, 2}), NewNumeric("b", []float64{2})},
			wantErr: func(err error) bool {
				var dim *errors.DimensionError
				return errors.As(err, &dim)
			},
		},
		{
			name: "empty name",
			cols: []*Series{NewNumeric("", []float64{1})},
			wantErr: func(err error) bool {
				var v *errors.ValidationError
				return errors.As(err, &v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cols...)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error type: %v", err)
		})
	}
}

func TestFrame_ColumnGroups(t *testing.T) {
	f := sampleFrame(t)

	assert.Equal(t, []string{"age", "income"}, f.NumericColumns())
	assert.Equal(t, []string{"city"}, f.CategoricalColumns())
	r, c := f.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
}

func TestFrame_Drop(t *testing.T) {
	f := sampleFrame(t)

	dropped, err := f.Drop("city")
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income"}, dropped.Names())
	assert.Equal(t, 4, dropped.NRows())
	// receiver untouched
	assert.Equal(t, 3, f.NCols())

	_, err = dropped.Drop("city", "zip")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))

	var mc *errors.MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, []string{"city", "zip"}, mc.Columns)
}

func TestFrame_SelectAndTake(t *testing.T) {
	f := sampleFrame(t)

	sel, err := f.Select("income", "age")
	require.NoError(t, err)
	assert.Equal(t, []string{"income", "age"}, sel.Names())

	taken := f.Take([]int{3, 0})
	city, err := taken.Column("city")
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris", "Paris"}, city.Strings)
	income, _ := taken.Column("income")
	assert.Equal(t, []float64{40, 10}, income.Floats)

	assert.Equal(t, 2, f.Head(2).NRows())
	tail := f.Tail(10)
	assert.Equal(t, 4, tail.NRows())
}

func TestFrame_Dense(t *testing.T) {
	f := sampleFrame(t)

	_, err := f.Dense()
	var ve *errors.ValueError
	require.True(t, errors.As(err, &ve))

	num, err := f.Select("income", "age")
	require.NoError(t, err)
	m, err := num.Dense()
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 20.0, m.At(1, 0))
	assert.Equal(t, 45.0, m.At(1, 1))

	back, err := FromDense([]string{"x", "y"}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, back.Names())
}

func TestFrame_WithColumnAndHStack(t *testing.T) {
	f := sampleFrame(t)

	g, err := f.WithColumn(NewNumeric("age", []float64{1, 2, 3, 4}))
	require.NoError(t, err)
	age, _ := g.Column("age")
	assert.Equal(t, []float64{1, 2, 3, 4}, age.Floats)
	assert.Equal(t, 3, g.NCols())

	_, err = f.WithColumn(NewNumeric("short", []float64{1}))
	assert.Error(t, err)

	left, _ := f.Select("age")
	right, _ := f.Select("city")
	stacked, err := HStack(left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "city"}, stacked.Names())

	_, err = HStack(left, left)
	var dup *errors.DuplicateColumnError
	assert.True(t, errors.As(err, &dup))
}

func TestSeries_Unique(t *testing.T) {
	s := NewCategorical("city", []string{"b", "", "a", "b"})
	assert.Equal(t, []string{"a", "b"}, s.Unique())
	assert.Equal(t, 1, s.MissingCount())

	n := NewNumeric("n", []float64{10, 2, math.NaN(), 2})
	assert.Equal(t, []string{"2", "10"}, n.Unique())
	assert.Equal(t, "", n.Value(2))
}
