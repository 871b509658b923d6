package preprocessing

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// Group は前処理ステップを適用する列グループ
type Group string

const (
	NumericGroup     Group = "numeric"
	CategoricalGroup Group = "categorical"
)

// ステップの種類（設定ファイルでの名前）
const (
	StepImpute         = "impute"
	StepStandardScaler = "standard_scaler"
	StepMinMaxScaler   = "min_max_scaler"
	StepOneHot         = "one_hot"
	StepOrdinal        = "ordinal"
)

// StepConfig は設定ファイル上の前処理ステップ
//
// YAML/JSON では {"type": "impute", "strategy": "median"} のようなオブジェクト、
// または "standard_scaler" のような文字列で記述できる。
type StepConfig struct {
	Type          string    `yaml:"type" json:"type" mapstructure:"type"`
	Strategy      string    `yaml:"strategy,omitempty" json:"strategy,omitempty" mapstructure:"strategy"`
	FillValue     string    `yaml:"fill_value,omitempty" json:"fill_value,omitempty" mapstructure:"fill_value"`
	FeatureRange  []float64 `yaml:"feature_range,omitempty" json:"feature_range,omitempty" mapstructure:"feature_range"`
	HandleUnknown string    `yaml:"handle_unknown,omitempty" json:"handle_unknown,omitempty" mapstructure:"handle_unknown"`
}

type stepConfigAlias StepConfig

// UnmarshalYAML は文字列形式とオブジェクト形式の両方を受け付ける
func (c *StepConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = StepConfig{Type: node.Value}
		return nil
	}
	var a stepConfigAlias
	if err := node.Decode(&a); err != nil {
		return err
	}
	*c = StepConfig(a)
	return nil
}

// UnmarshalJSON は文字列形式とオブジェクト形式の両方を受け付ける
func (c *StepConfig) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = StepConfig{Type: name}
		return nil
	}
	var a stepConfigAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = StepConfig(a)
	return nil
}

// String はパラメータサマリー用の表記を返す
func (c StepConfig) String() string {
	switch c.Type {
	case StepImpute:
		if c.Strategy == StrategyConstant && c.FillValue != "" {
			return fmt.Sprintf("SimpleImputer(strategy=%s, fill_value=%s)", c.Strategy, c.FillValue)
		}
		if c.Strategy != "" {
			return fmt.Sprintf("SimpleImputer(strategy=%s)", c.Strategy)
		}
		return "SimpleImputer()"
	case StepStandardScaler:
		return "StandardScaler()"
	case StepMinMaxScaler:
		return "MinMaxScaler()"
	case StepOneHot:
		return "OneHotEncoder(handle_unknown=ignore)"
	case StepOrdinal:
		return "OrdinalEncoder()"
	default:
		return c.Type
	}
}

// StepTypes はグループごとに利用可能なステップの種類を返す
func StepTypes(group Group) []string {
	if group == NumericGroup {
		return []string{StepImpute, StepStandardScaler, StepMinMaxScaler}
	}
	return []string{StepImpute, StepOneHot, StepOrdinal}
}

// ParseSteps は設定をステップのファクトリ列に変換する
//
// ステップ名は impute_num / std / mms / impute_cat / onehot / ordinal。
// 同じ名前のステップを重ねて指定するとエラーになる。
func ParseSteps(group Group, cfgs []StepConfig) ([]model.StepSpec, error) {
	if group != NumericGroup && group != CategoricalGroup {
		return nil, errors.NewValidationError("group", "must be numeric or categorical", group)
	}

	param := string(group) + "_steps"
	specs := make([]model.StepSpec, 0, len(cfgs))
	seen := make(map[string]struct{}, len(cfgs))
	for _, cfg := range cfgs {
		spec, err := parseStep(group, cfg)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, errors.NewValidationError(param, "duplicate step", spec.Name)
		}
		seen[spec.Name] = struct{}{}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseStep(group Group, cfg StepConfig) (model.StepSpec, error) {
	param := string(group) + "_steps"
	typ := strings.ToLower(strings.TrimSpace(cfg.Type))

	allowed := false
	for _, t := range StepTypes(group) {
		if t == typ {
			allowed = true
			break
		}
	}
	if !allowed {
		return model.StepSpec{}, errors.NewValidationError(param,
			"unsupported step; choose one of "+strings.Join(StepTypes(group), ", "), cfg.Type)
	}

	switch typ {
	case StepImpute:
		return imputeSpec(group, cfg)
	case StepStandardScaler:
		return model.StepSpec{Name: "std", New: func() model.Transformer {
			return NewStandardScalerDefault()
		}}, nil
	case StepMinMaxScaler:
		rng := [2]float64{0, 1}
		if len(cfg.FeatureRange) > 0 {
			if len(cfg.FeatureRange) != 2 || cfg.FeatureRange[0] >= cfg.FeatureRange[1] {
				return model.StepSpec{}, errors.NewValidationError("feature_range",
					"must be two increasing numbers", cfg.FeatureRange)
			}
			rng = [2]float64{cfg.FeatureRange[0], cfg.FeatureRange[1]}
		}
		return model.StepSpec{Name: "mms", New: func() model.Transformer {
			return NewMinMaxScaler(rng)
		}}, nil
	case StepOneHot:
		handle := cfg.HandleUnknown
		if handle == "" {
			handle = HandleUnknownIgnore
		}
		if handle != HandleUnknownIgnore && handle != HandleUnknownError {
			return model.StepSpec{}, errors.NewValidationError("handle_unknown", "must be ignore or error", handle)
		}
		return model.StepSpec{Name: "onehot", New: func() model.Transformer {
			return NewOneHotEncoder(handle)
		}}, nil
	default:
		return model.StepSpec{Name: "ordinal", New: func() model.Transformer {
			return NewOrdinalEncoder()
		}}, nil
	}
}

func imputeSpec(group Group, cfg StepConfig) (model.StepSpec, error) {
	strategy := cfg.Strategy
	name := "impute_num"
	if group == NumericGroup {
		if strategy == "" {
			strategy = StrategyMean
		}
	} else {
		name = "impute_cat"
		if strategy == "" {
			strategy = StrategyConstant
		}
		if strategy != StrategyConstant && strategy != StrategyMostFrequent {
			return model.StepSpec{}, errors.NewValidationError("strategy",
				"categorical imputation supports constant or most_frequent", strategy)
		}
	}
	switch strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent, StrategyConstant:
	default:
		return model.StepSpec{}, errors.NewValidationError("strategy",
			"must be one of mean, median, most_frequent, constant", strategy)
	}

	fill := cfg.FillValue
	if group == CategoricalGroup && strategy == StrategyConstant && fill == "" {
		fill = DefaultCategoricalFill
	}
	return model.StepSpec{Name: name, New: func() model.Transformer {
		return NewSimpleImputer(strategy, fill)
	}}, nil
}
