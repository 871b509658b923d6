// Package preprocessing はテーブル (frame.Frame) 上で動作する scikit-learn 互換の
// 前処理トランスフォーマーを提供する。
//
// 各トランスフォーマーは Fit 時に見た列名を記憶し、Transform ではその列だけを
// 置き換える。学習済みの状態はすべてエクスポートされたフィールドに保持され、
// Pipeline と一緒に gob でシリアライズできる。
package preprocessing

import (
	"encoding/gob"
	"math"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func init() {
	gob.Register(&StandardScaler{})
	gob.Register(&MinMaxScaler{})
	gob.Register(&SimpleImputer{})
	gob.Register(&OneHotEncoder{})
	gob.Register(&OrdinalEncoder{})
	gob.Register(&ColumnDropper{})
}

// requireRows は空のテーブルを拒否する
func requireRows(op string, X *frame.Frame) error {
	if X == nil || X.NRows() == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return nil
}

// numericSeries は全列が数値であることを確認して列を返す
func numericSeries(op string, X *frame.Frame) ([]*frame.Series, error) {
	if cat := X.CategoricalColumns(); len(cat) > 0 {
		return nil, errors.NewValueError(op, "expected numeric columns, got categorical: "+cat[0])
	}
	return X.Columns(), nil
}

// requireColumns は Fit 時の列がすべて存在することを確認する
func requireColumns(op string, X *frame.Frame, columns []string) error {
	if missing := X.Missing(columns...); len(missing) > 0 {
		return errors.NewMissingColumnError(op, missing...)
	}
	return nil
}

// observed は欠損値を除いた値を返す
func observed(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// replaceColumns は同名の列を置き換えた新しいテーブルを返す
func replaceColumns(X *frame.Frame, cols []*frame.Series) (*frame.Frame, error) {
	out := X
	var err error
	for _, c := range cols {
		out, err = out.WithColumn(c)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
