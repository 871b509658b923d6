package preprocessing

import (
	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// ColumnDropper は構築時に指定した列を取り除くステートレスなトランスフォーマー
//
// Fit は何もしない。Transform は指定列がひとつでも存在しなければ
// MissingColumnError（errors.Is(err, errors.ErrMissingColumn)）を返すため、
// 同じ ColumnDropper を二度適用すると二度目は失敗する。
type ColumnDropper struct {
	Columns []string
}

// NewColumnDropper は新しいColumnDropperを作成する
func NewColumnDropper(columns ...string) *ColumnDropper {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &ColumnDropper{Columns: cols}
}

// Fit は何もしない
func (d *ColumnDropper) Fit(_ *frame.Frame, _ *frame.Series) error {
	return nil
}

// Transform は指定された列を取り除いたテーブルを返す
func (d *ColumnDropper) Transform(X *frame.Frame) (*frame.Frame, error) {
	if missing := X.Missing(d.Columns...); len(missing) > 0 {
		return nil, errors.NewMissingColumnError("ColumnDropper.Transform", missing...)
	}
	return X.Drop(d.Columns...)
}
