package preprocessing

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// 未知カテゴリの扱い
const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// missingCategory は欠損値を表すカテゴリの出力名
const missingCategory = "nan"

// OneHotEncoder はscikit-learn互換のワンホットエンコーダー
//
// 各列はカテゴリごとの指示列 "<列名>_<カテゴリ>" に置き換えられる。
// Fit 時に欠損値があった列では欠損値もひとつのカテゴリとして扱う。
// HandleUnknown が "ignore" の場合、未知カテゴリの行は全て0になる。
type OneHotEncoder struct {
	State *model.StateManager

	// HandleUnknown は未知カテゴリの扱い (ignore | error)
	HandleUnknown string

	// Columns は Fit 時の列名
	Columns []string

	// Categories は列ごとのカテゴリ（ソート済み、欠損は末尾の ""）
	Categories [][]string
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder(handleUnknown string) *OneHotEncoder {
	return &OneHotEncoder{
		State:         model.NewStateManager(),
		HandleUnknown: handleUnknown,
	}
}

// Fit は列ごとのカテゴリを学習する
func (e *OneHotEncoder) Fit(X *frame.Frame, _ *frame.Series) error {
	if e.HandleUnknown != HandleUnknownIgnore && e.HandleUnknown != HandleUnknownError {
		return errors.NewValidationError("handle_unknown", "must be ignore or error", e.HandleUnknown)
	}
	if err := requireRows("OneHotEncoder.Fit", X); err != nil {
		return err
	}

	e.Columns = X.Names()
	e.Categories = make([][]string, len(e.Columns))
	for j, c := range X.Columns() {
		e.Categories[j] = learnCategories(c)
	}

	e.State.SetFitted()
	e.State.SetDimensions(X.NCols(), X.NRows())
	return nil
}

// Transform は各列を指示列に展開する
func (e *OneHotEncoder) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := requireColumns("OneHotEncoder.Transform", X, e.Columns); err != nil {
		return nil, err
	}

	encoded := make(map[string][]*frame.Series, len(e.Columns))
	for j, name := range e.Columns {
		c, _ := X.Column(name)
		lookup := indexOf(e.Categories[j])
		indicators := make([][]float64, len(e.Categories[j]))
		for k := range indicators {
			indicators[k] = make([]float64, X.NRows())
		}
		for i := 0; i < X.NRows(); i++ {
			k, ok := lookup[c.Value(i)]
			if !ok {
				if e.HandleUnknown == HandleUnknownError {
					return nil, errors.NewValueError("OneHotEncoder.Transform",
						"found unknown category "+strconv.Quote(c.Value(i))+" in column "+name)
				}
				continue
			}
			indicators[k][i] = 1
		}
		series := make([]*frame.Series, len(indicators))
		for k, vals := range indicators {
			series[k] = frame.NewNumeric(e.FeatureName(j, k), vals)
		}
		encoded[name] = series
	}

	// 元の列の位置に指示列を挿入する
	var cols []*frame.Series
	for _, c := range X.Columns() {
		if ind, ok := encoded[c.Name]; ok {
			cols = append(cols, ind...)
			continue
		}
		cols = append(cols, c)
	}
	return frame.New(cols...)
}

// FeatureName は j 列目 k 番目のカテゴリに対応する出力列名を返す
func (e *OneHotEncoder) FeatureName(j, k int) string {
	cat := e.Categories[j][k]
	if cat == "" {
		cat = missingCategory
	}
	return e.Columns[j] + "_" + cat
}

// FeatureNames は出力される指示列の名前をすべて返す
func (e *OneHotEncoder) FeatureNames() []string {
	var names []string
	for j := range e.Columns {
		for k := range e.Categories[j] {
			names = append(names, e.FeatureName(j, k))
		}
	}
	return names
}

// OrdinalEncoder はscikit-learn互換の順序エンコーダー
// 各カテゴリを 0..k-1 の整数に置き換える。欠損値は NaN のまま残し、
// 未知カテゴリはエラーになる。
type OrdinalEncoder struct {
	State *model.StateManager

	// Columns は Fit 時の列名
	Columns []string

	// Categories は列ごとのカテゴリ（ソート済み）
	Categories [][]string
}

// NewOrdinalEncoder は新しいOrdinalEncoderを作成する
func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{State: model.NewStateManager()}
}

// Fit は列ごとのカテゴリを学習する
func (e *OrdinalEncoder) Fit(X *frame.Frame, _ *frame.Series) error {
	if err := requireRows("OrdinalEncoder.Fit", X); err != nil {
		return err
	}
	e.Columns = X.Names()
	e.Categories = make([][]string, len(e.Columns))
	for j, c := range X.Columns() {
		e.Categories[j] = c.Unique()
	}
	e.State.SetFitted()
	e.State.SetDimensions(X.NCols(), X.NRows())
	return nil
}

// Transform は各カテゴリを整数コードに置き換える
func (e *OrdinalEncoder) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := e.State.RequireFitted("OrdinalEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := requireColumns("OrdinalEncoder.Transform", X, e.Columns); err != nil {
		return nil, err
	}

	out := make([]*frame.Series, len(e.Columns))
	for j, name := range e.Columns {
		c, _ := X.Column(name)
		lookup := indexOf(e.Categories[j])
		codes := make([]float64, X.NRows())
		for i := range codes {
			if c.IsMissing(i) {
				codes[i] = math.NaN()
				continue
			}
			k, ok := lookup[c.Value(i)]
			if !ok {
				return nil, errors.NewValueError("OrdinalEncoder.Transform",
					"found unknown category "+strconv.Quote(c.Value(i))+" in column "+name)
			}
			codes[i] = float64(k)
		}
		out[j] = frame.NewNumeric(name, codes)
	}
	return replaceColumns(X, out)
}

// learnCategories はソート済みのカテゴリを返す。欠損値があれば末尾に "" を加える。
func learnCategories(c *frame.Series) []string {
	cats := c.Unique()
	if c.MissingCount() > 0 {
		cats = append(cats, "")
	}
	return cats
}

func indexOf(values []string) map[string]int {
	m := make(map[string]int, len(values))
	for i, v := range values {
		m[v] = i
	}
	return m
}
