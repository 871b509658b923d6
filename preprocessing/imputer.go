package preprocessing

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// 欠損値補完の戦略
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
	StrategyConstant     = "constant"
)

// DefaultCategoricalFill はカテゴリ列の定数補完で使われる既定値
const DefaultCategoricalFill = "unknow"

// SimpleImputer はscikit-learn互換の欠損値補完器
//
// 数値列は mean / median / most_frequent / constant、カテゴリ列は
// most_frequent / constant をサポートする。constant の場合、数値列には
// FillValue を数値として解釈した値（解釈できなければ0）が使われる。
type SimpleImputer struct {
	State *model.StateManager

	// Strategy は補完戦略
	Strategy string

	// FillValue は constant 戦略で使う値
	FillValue string

	// Columns は Fit 時の列名
	Columns []string

	// NumericFill / CategoricalFill は列ごとの補完値
	NumericFill     map[string]float64
	CategoricalFill map[string]string
}

// NewSimpleImputer は新しいSimpleImputerを作成する
func NewSimpleImputer(strategy, fillValue string) *SimpleImputer {
	return &SimpleImputer{
		State:     model.NewStateManager(),
		Strategy:  strategy,
		FillValue: fillValue,
	}
}

// Fit は列ごとの補完値を学習する
func (s *SimpleImputer) Fit(X *frame.Frame, _ *frame.Series) error {
	switch s.Strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent, StrategyConstant:
	default:
		return errors.NewValidationError("strategy", "must be one of mean, median, most_frequent, constant", s.Strategy)
	}
	if err := requireRows("SimpleImputer.Fit", X); err != nil {
		return err
	}

	s.Columns = X.Names()
	s.NumericFill = make(map[string]float64)
	s.CategoricalFill = make(map[string]string)

	for _, c := range X.Columns() {
		if c.IsNumeric() {
			v, err := s.numericFill(c)
			if err != nil {
				return err
			}
			s.NumericFill[c.Name] = v
			continue
		}
		v, err := s.categoricalFill(c)
		if err != nil {
			return err
		}
		s.CategoricalFill[c.Name] = v
	}

	s.State.SetFitted()
	s.State.SetDimensions(X.NCols(), X.NRows())
	return nil
}

func (s *SimpleImputer) numericFill(c *frame.Series) (float64, error) {
	if s.Strategy == StrategyConstant {
		v, err := strconv.ParseFloat(s.FillValue, 64)
		if err != nil {
			v = 0
		}
		return v, nil
	}

	vals := observed(c.Floats)
	if len(vals) == 0 {
		return 0, errors.NewValueError("SimpleImputer.Fit",
			"column "+c.Name+" has no observed values; use strategy constant")
	}

	switch s.Strategy {
	case StrategyMean:
		return floats.Sum(vals) / float64(len(vals)), nil
	case StrategyMedian:
		sort.Float64s(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 0 {
			return (vals[mid-1] + vals[mid]) / 2, nil
		}
		return vals[mid], nil
	default:
		// 最頻値。同数の場合は最小値
		counts := make(map[float64]int)
		for _, v := range vals {
			counts[v]++
		}
		best, bestCount := math.Inf(1), 0
		for v, n := range counts {
			if n > bestCount || (n == bestCount && v < best) {
				best, bestCount = v, n
			}
		}
		return best, nil
	}
}

func (s *SimpleImputer) categoricalFill(c *frame.Series) (string, error) {
	switch s.Strategy {
	case StrategyConstant:
		if s.FillValue == "" {
			return DefaultCategoricalFill, nil
		}
		return s.FillValue, nil
	case StrategyMostFrequent:
		counts := make(map[string]int)
		for _, v := range c.Strings {
			if v != "" {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			return "", errors.NewValueError("SimpleImputer.Fit",
				"column "+c.Name+" has no observed values; use strategy constant")
		}
		best, bestCount := "", 0
		for v, n := range counts {
			if n > bestCount || (n == bestCount && v < best) {
				best, bestCount = v, n
			}
		}
		return best, nil
	default:
		return "", errors.NewValueError("SimpleImputer.Fit",
			"strategy "+s.Strategy+" cannot be used on categorical column "+c.Name)
	}
}

// Transform は欠損値を学習済みの値で置き換える
func (s *SimpleImputer) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	if err := requireColumns("SimpleImputer.Transform", X, s.Columns); err != nil {
		return nil, err
	}

	out := make([]*frame.Series, 0, len(s.Columns))
	for _, name := range s.Columns {
		c, _ := X.Column(name)
		filled := c.Clone()
		if fill, ok := s.NumericFill[name]; ok && c.IsNumeric() {
			for i, v := range filled.Floats {
				if math.IsNaN(v) {
					filled.Floats[i] = fill
				}
			}
		} else if fill, ok := s.CategoricalFill[name]; ok && !c.IsNumeric() {
			for i, v := range filled.Strings {
				if v == "" {
					filled.Strings[i] = fill
				}
			}
		} else {
			return nil, errors.NewValueError("SimpleImputer.Transform", "column "+name+" changed type since fit")
		}
		out = append(out, filled)
	}
	return replaceColumns(X, out)
}
