package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/preprocessing"
)

func passengers(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.NewCategorical("name", []string{"Braund, Mr. Owen", "Cumings, Mrs. John", "Heikkinen, Miss. Laina", ""}),
		frame.NewNumeric("fare", []float64{7.25, 71.28, 7.92, 53.1}),
		frame.NewNumeric("family", []float64{1, 1, 0, 1}),
		frame.NewNumeric("age", []float64{22, 38, 26, math.NaN()}),
	)
	require.NoError(t, err)
	return f
}

func TestAssemble(t *testing.T) {
	creator, err := NewCreator([]Operation{{Type: OpLog1p, Output: "log_fare", Columns: []string{"fare"}}})
	require.NoError(t, err)

	tests := []struct {
		name      string
		creator   model.Transformer
		drop      []string
		wantNames []string
	}{
		{name: "nothing requested"},
		{name: "creator only", creator: creator, wantNames: []string{CreateFeaturesStep}},
		{name: "drop only", drop: []string{"name"}, wantNames: []string{ColumnDropperStep}},
		{name: "both", creator: creator, drop: []string{"name"}, wantNames: []string{CreateFeaturesStep, ColumnDropperStep}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := Assemble(tt.creator, tt.drop)
			if tt.wantNames == nil {
				assert.Nil(t, steps)
				return
			}
			var names []string
			for _, s := range steps {
				require.NoError(t, s.Validate())
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}

	steps := Assemble(nil, []string{"name"})
	dropper, ok := steps[0].Transformer.(*preprocessing.ColumnDropper)
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, dropper.Columns)
}

func TestCreator_Operations(t *testing.T) {
	X := passengers(t)
	creator, err := NewCreator([]Operation{
		{Type: OpExtract, Output: "title", Columns: []string{"name"}, Pattern: `,\s*([^.]+)\.`},
		{Type: OpRatio, Output: "fare_per_family", Columns: []string{"fare", "family"}},
		{Type: OpSum, Output: "fare_plus_family", Columns: []string{"fare", "family"}},
		{Type: OpLength, Output: "name_len", Columns: []string{"name"}},
		{Type: OpBin, Output: "fare_band", Columns: []string{"fare"}, Bins: 2},
	})
	require.NoError(t, err)

	out, err := creator.FitTransform(X, nil)
	require.NoError(t, err)

	title, _ := out.Column("title")
	assert.Equal(t, []string{"Mr", "Mrs", "Miss", ""}, title.Strings)

	ratio, _ := out.Column("fare_per_family")
	assert.InDelta(t, 7.25, ratio.Floats[0], 1e-12)
	assert.True(t, math.IsNaN(ratio.Floats[2]), "division by zero is missing")

	sum, _ := out.Column("fare_plus_family")
	assert.InDelta(t, 8.25, sum.Floats[0], 1e-12)

	length, _ := out.Column("name_len")
	assert.Equal(t, 16.0, length.Floats[0])
	assert.True(t, math.IsNaN(length.Floats[3]))

	band, _ := out.Column("fare_band")
	assert.Equal(t, []float64{0, 1, 0, 1}, band.Floats)

	assert.Equal(t, []string{"title", "fare_per_family", "fare_plus_family", "name_len", "fare_band"}, creator.OutputColumns())
}

func TestCreator_Validation(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
	}{
		{"empty", nil},
		{"unknown op", []Operation{{Type: "eval", Output: "x", Columns: []string{"a"}}}},
		{"missing output", []Operation{{Type: OpLog1p, Columns: []string{"a"}}}},
		{"wrong arity", []Operation{{Type: OpRatio, Output: "r", Columns: []string{"a"}}}},
		{"no capture group", []Operation{{Type: OpExtract, Output: "t", Columns: []string{"a"}, Pattern: "Mr"}}},
		{"bins too small", []Operation{{Type: OpBin, Output: "b", Columns: []string{"a"}, Bins: 1}}},
		{"duplicate output", []Operation{
			{Type: OpLog1p, Output: "x", Columns: []string{"a"}},
			{Type: OpLog1p, Output: "x", Columns: []string{"b"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCreator(tt.ops)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
		})
	}
}

func TestCreator_InputErrors(t *testing.T) {
	X := passengers(t)

	missing, err := NewCreator([]Operation{{Type: OpLog1p, Output: "x", Columns: []string{"salary"}}})
	require.NoError(t, err)
	assert.True(t, errors.Is(missing.Fit(X, nil), errors.ErrMissingColumn))

	wrongKind, err := NewCreator([]Operation{{Type: OpLog1p, Output: "x", Columns: []string{"name"}}})
	require.NoError(t, err)
	var ve *errors.ValueError
	assert.True(t, errors.As(wrongKind.Fit(X, nil), &ve))

	unfitted, err := NewCreator([]Operation{{Type: OpLog1p, Output: "x", Columns: []string{"fare"}}})
	require.NoError(t, err)
	_, err = unfitted.Transform(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestParseCreator(t *testing.T) {
	doc := `
operations:
  - type: product
    output: fare_x_family
    columns: [fare, family]
`
	c, err := ParseCreator([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"fare_x_family"}, c.OutputColumns())

	list := `[{"type": "difference", "output": "d", "columns": ["fare", "family"]}]`
	c, err = ParseCreator([]byte(list))
	require.NoError(t, err)
	assert.Equal(t, OpDifference, c.Operations[0].Type)

	_, err = ParseCreator([]byte("operations: [{type: exec, output: x, columns: [a]}]"))
	assert.Error(t, err)
}
