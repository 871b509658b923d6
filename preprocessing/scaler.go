package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する。欠損値 (NaN) は統計量の計算から除外され、
// 変換後もそのまま残る。
type StandardScaler struct {
	State *model.StateManager

	// Columns は Fit 時の列名
	Columns []string

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X, nil)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		State:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X *frame.Frame, _ *frame.Series) error {
	if err := requireRows("StandardScaler.Fit", X); err != nil {
		return err
	}
	cols, err := numericSeries("StandardScaler.Fit", X)
	if err != nil {
		return err
	}

	s.Columns = X.Names()
	s.Mean = make([]float64, len(cols))
	s.Scale = make([]float64, len(cols))

	for j, c := range cols {
		vals := observed(c.Floats)
		if len(vals) == 0 {
			s.Mean[j], s.Scale[j] = 0, 1
			continue
		}
		// 母標準偏差（ddof=0）
		mean, std := stat.PopMeanStdDev(vals, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		// 標準偏差が0に近い場合は1のまま（ゼロ除算を避ける）
		if s.WithStd && std > 1e-8 {
			s.Scale[j] = std
		}
	}

	s.State.SetFitted()
	s.State.SetDimensions(len(cols), X.NRows())
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := s.State.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	return s.apply("StandardScaler.Transform", X, func(j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X *frame.Frame) (*frame.Frame, error) {
	if err := s.State.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	return s.apply("StandardScaler.InverseTransform", X, func(j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

func (s *StandardScaler) apply(op string, X *frame.Frame, fn func(j int, v float64) float64) (*frame.Frame, error) {
	return scaleColumns(op, X, s.Columns, fn)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト [0, 1]）に変換する
type MinMaxScaler struct {
	State *model.StateManager

	// Columns は Fit 時の列名
	Columns []string

	// DataMin / DataMax は各特徴量の最小値・最大値
	DataMin []float64
	DataMax []float64

	// Scale / Min は変換係数 (x*Scale + Min)
	Scale []float64
	Min   []float64

	// FeatureRange は変換後の範囲
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		State:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定 [0, 1] でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit は訓練データから最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X *frame.Frame, _ *frame.Series) error {
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	if err := requireRows("MinMaxScaler.Fit", X); err != nil {
		return err
	}
	cols, err := numericSeries("MinMaxScaler.Fit", X)
	if err != nil {
		return err
	}

	n := len(cols)
	m.Columns = X.Names()
	m.DataMin = make([]float64, n)
	m.DataMax = make([]float64, n)
	m.Scale = make([]float64, n)
	m.Min = make([]float64, n)

	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	for j, c := range cols {
		vals := observed(c.Floats)
		if len(vals) == 0 {
			m.Scale[j], m.Min[j] = 1, 0
			continue
		}
		m.DataMin[j] = floats.Min(vals)
		m.DataMax[j] = floats.Max(vals)
		dataRange := m.DataMax[j] - m.DataMin[j]
		if dataRange < 1e-12 {
			dataRange = 1.0
		}
		m.Scale[j] = (hi - lo) / dataRange
		m.Min[j] = lo - m.DataMin[j]*m.Scale[j]
	}

	m.State.SetFitted()
	m.State.SetDimensions(n, X.NRows())
	return nil
}

// Transform は学習済みのパラメータを使ってデータを変換する
func (m *MinMaxScaler) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := m.State.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	return scaleColumns("MinMaxScaler.Transform", X, m.Columns, func(j int, v float64) float64 {
		return v*m.Scale[j] + m.Min[j]
	})
}

// InverseTransform は変換されたデータを元のスケールに戻す
func (m *MinMaxScaler) InverseTransform(X *frame.Frame) (*frame.Frame, error) {
	if err := m.State.RequireFitted("MinMaxScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	return scaleColumns("MinMaxScaler.InverseTransform", X, m.Columns, func(j int, v float64) float64 {
		return (v - m.Min[j]) / m.Scale[j]
	})
}

// scaleColumns は columns の各列に fn を適用する。NaN はそのまま残す。
func scaleColumns(op string, X *frame.Frame, columns []string, fn func(j int, v float64) float64) (*frame.Frame, error) {
	if err := requireColumns(op, X, columns); err != nil {
		return nil, err
	}
	out := make([]*frame.Series, len(columns))
	for j, name := range columns {
		c, _ := X.Column(name)
		if !c.IsNumeric() {
			return nil, errors.NewValueError(op, "expected numeric column: "+name)
		}
		vals := make([]float64, len(c.Floats))
		for i, v := range c.Floats {
			if math.IsNaN(v) {
				vals[i] = v
				continue
			}
			vals[i] = fn(j, v)
		}
		out[j] = frame.NewNumeric(name, vals)
	}
	return replaceColumns(X, out)
}
