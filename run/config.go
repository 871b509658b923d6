package run

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/features"
	"github.com/YuminosukeSato/mlplayground/pipeline"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/preprocessing"
)

// Defaults applied by DefaultConfig.
const (
	DefaultTrainSize   = 0.8
	DefaultRandomState = 42
)

// Config is the configuration of one run. It is read from YAML or JSON.
//
// The split is a single ratio: TestSize is derived as 1 - TrainSize. An
// explicit test_size is accepted only when it agrees.
type Config struct {
	Target           string                     `yaml:"target" json:"target"`
	IDColumn         string                     `yaml:"id_column,omitempty" json:"id_column,omitempty"`
	TrainSize        float64                    `yaml:"train_size" json:"train_size"`
	TestSizeValue    *float64                   `yaml:"test_size,omitempty" json:"test_size,omitempty"`
	Stratify         bool                       `yaml:"stratify" json:"stratify"`
	NumericSteps     []preprocessing.StepConfig `yaml:"numeric_steps,omitempty" json:"numeric_steps,omitempty"`
	CategoricalSteps []preprocessing.StepConfig `yaml:"categorical_steps,omitempty" json:"categorical_steps,omitempty"`
	FeatureCreator   []features.Operation       `yaml:"feature_creator,omitempty" json:"feature_creator,omitempty"`
	DropColumns      []string                   `yaml:"drop_columns,omitempty" json:"drop_columns,omitempty"`
	Estimator        string                     `yaml:"estimator" json:"estimator"`
	EstimatorParams  map[string]interface{}     `yaml:"estimator_params,omitempty" json:"estimator_params,omitempty"`
	RandomState      int64                      `yaml:"random_state" json:"random_state"`
	Remainder        string                     `yaml:"remainder,omitempty" json:"remainder,omitempty"`
}

// DefaultConfig returns a config with the default split and seed.
func DefaultConfig() Config {
	return Config{
		TrainSize:   DefaultTrainSize,
		RandomState: DefaultRandomState,
		Remainder:   pipeline.RemainderPassthrough,
	}
}

// ParseConfig decodes a YAML or JSON document over DefaultConfig.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.NewParseError(0, "invalid run config", err)
		}
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.NewParseError(0, "invalid run config", err)
	}
	return cfg, nil
}

// LoadConfig reads a run config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read run config %s", path)
	}
	return ParseConfig(data)
}

// TestSize is the derived test fraction.
func (c Config) TestSize() float64 {
	return 1 - c.TrainSize
}

// plan holds the validated, instantiable parts of a config.
type plan struct {
	spec        estimator.Spec
	numeric     []model.StepSpec
	categorical []model.StepSpec
	creator     *features.Creator
}

// Validate checks the config without looking at any data.
func (c Config) Validate() error {
	_, err := c.plan()
	return err
}

func (c Config) plan() (*plan, error) {
	if strings.TrimSpace(c.Target) == "" {
		return nil, errors.NewValidationError("target", "a target column is required", c.Target)
	}
	if math.IsNaN(c.TrainSize) || c.TrainSize <= 0 || c.TrainSize >= 1 {
		return nil, errors.NewValidationError("train_size", "must be in (0, 1)", c.TrainSize)
	}
	if c.TestSizeValue != nil && math.Abs(*c.TestSizeValue+c.TrainSize-1) > 1e-9 {
		return nil, errors.NewValidationError("test_size",
			fmt.Sprintf("train_size + test_size must equal 1 (train_size=%g)", c.TrainSize), *c.TestSizeValue)
	}
	if c.IDColumn != "" && c.IDColumn == c.Target {
		return nil, errors.NewValidationError("id_column", "identifier column cannot be the target", c.IDColumn)
	}
	for _, d := range c.DropColumns {
		if d == c.Target {
			return nil, errors.NewValidationError("drop_columns", "the target cannot be dropped", d)
		}
	}
	if c.Remainder != "" {
		if err := pipeline.ValidateRemainder(c.Remainder); err != nil {
			return nil, err
		}
	}

	spec, err := estimator.Lookup(c.Estimator)
	if err != nil {
		return nil, err
	}
	p := &plan{spec: spec}
	if p.numeric, err = preprocessing.ParseSteps(preprocessing.NumericGroup, c.NumericSteps); err != nil {
		return nil, err
	}
	if p.categorical, err = preprocessing.ParseSteps(preprocessing.CategoricalGroup, c.CategoricalSteps); err != nil {
		return nil, err
	}
	if len(c.FeatureCreator) > 0 {
		if p.creator, err = features.NewCreator(c.FeatureCreator); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// summary is the ordered view printed by Summary.
type summary struct {
	Target           string   `yaml:"target"`
	DropID           string   `yaml:"drop_id"`
	TestTrainSize    string   `yaml:"test/train size"`
	Stratify         bool     `yaml:"stratify"`
	FeatureCreator   bool     `yaml:"feature_creator"`
	DropColumns      string   `yaml:"drop_columns"`
	NumericSteps     []string `yaml:"numerical_transformers"`
	CategoricalSteps []string `yaml:"categorical_transformers"`
	Estimator        string   `yaml:"estimator"`
	RandomState      int64    `yaml:"random_state"`
}

// Summary renders the parameter summary as YAML.
func (c Config) Summary() (string, error) {
	s := summary{
		Target:         c.Target,
		DropID:         c.IDColumn,
		TestTrainSize:  fmt.Sprintf("%.2f / %.2f", c.TestSize(), c.TrainSize),
		Stratify:       c.Stratify,
		FeatureCreator: len(c.FeatureCreator) > 0,
		DropColumns:    strings.Join(c.DropColumns, ", "),
		Estimator:      c.Estimator,
		RandomState:    c.RandomState,
	}
	if s.DropID == "" {
		s.DropID = "None"
	}
	for _, st := range c.NumericSteps {
		s.NumericSteps = append(s.NumericSteps, st.String())
	}
	for _, st := range c.CategoricalSteps {
		s.CategoricalSteps = append(s.CategoricalSteps, st.String())
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "render summary")
	}
	return string(out), nil
}
