package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

const sample = `id,age,income,city,target
1,22,30,a,0
2,,42,b,0
3,35,,NA,1
4,41,80,a,1
5,29,38,b,0
6,50,95,a,1
7,33,61,b,1
8,27,35,a,0
`

func TestLoad(t *testing.T) {
	l, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 8, l.Frame.NRows())
	assert.Equal(t, []string{"id", "target", "age", "income", "city"}, l.ColumnSelector)
	assert.Equal(t, []string{"", "id", "target", "age", "income", "city"}, l.IDSelector)
	assert.Equal(t, []string{"", "id", "age", "income", "city"}, l.IDSelectorFor("target"))

	city, err := l.Frame.Column("city")
	require.NoError(t, err)
	assert.Equal(t, frame.Categorical, city.Kind)
	assert.Equal(t, 1, city.MissingCount())
}

func TestLoad_Errors(t *testing.T) {
	var pe *errors.ParseError
	_, err := Load(strings.NewReader(""))
	assert.True(t, errors.As(err, &pe))

	_, err = Load(strings.NewReader("a,b\n1,2,3\n"))
	assert.True(t, errors.As(err, &pe))

	var de *errors.DuplicateColumnError
	_, err = Load(strings.NewReader("a,a\n1,2\n"))
	assert.True(t, errors.As(err, &de))
}

func TestColumnSelector(t *testing.T) {
	assert.Equal(t, []string{"a"}, ColumnSelector([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, ColumnSelector([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "d", "b", "c"}, ColumnSelector([]string{"a", "b", "c", "d"}))
}

func TestDataset(t *testing.T) {
	l, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	_, err = New(l.Frame, "price")
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))

	ds, err := New(l.Frame, "target")
	require.NoError(t, err)

	var ve *errors.ValidationError
	assert.True(t, errors.As(ds.DropID("target"), &ve))
	require.NoError(t, ds.DropID(""))
	require.NoError(t, ds.DropID("id"))
	assert.False(t, ds.Frame.Has("id"))
	assert.True(t, errors.Is(ds.DropID("id"), errors.ErrMissingColumn))

	X, y, err := ds.XY()
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income", "city"}, X.Names())
	assert.Equal(t, "target", y.Name)
	assert.True(t, y.IsNumeric())
}

func TestPreview(t *testing.T) {
	l, err := Load(strings.NewReader(sample))
	require.NoError(t, err)

	p := Preview(l.Frame, 3)
	require.Equal(t, 6, p.NRows())
	id, _ := p.Column("id")
	assert.Equal(t, []float64{1, 2, 3, 6, 7, 8}, id.Floats)

	assert.Equal(t, 8, Preview(l.Frame, 4).NRows())
}
