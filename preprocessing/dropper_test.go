package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func TestColumnDropper(t *testing.T) {
	X := cityFrame(t, "Paris", "Lyon")
	d := NewColumnDropper("city")

	require.NoError(t, d.Fit(X, nil))
	once, err := d.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, once.Names())

	// 二度目の適用は列が存在しないため失敗する
	_, err = d.Transform(once)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingColumn))

	var mc *errors.MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, []string{"city"}, mc.Columns)
	assert.Equal(t, "ColumnDropper.Transform", mc.Op)
}

func TestColumnDropper_CopiesColumns(t *testing.T) {
	cols := []string{"age"}
	d := NewColumnDropper(cols...)
	cols[0] = "city"
	assert.Equal(t, []string{"age"}, d.Columns)
}
