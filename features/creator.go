// Package features assembles the optional feature-engineering stage of a run:
// a declarative feature creator followed by a column dropper.
package features

import (
	"encoding/gob"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func init() {
	gob.Register(&Creator{})
}

// Operation types understood by Creator.
const (
	OpRatio      = "ratio"
	OpProduct    = "product"
	OpSum        = "sum"
	OpDifference = "difference"
	OpLog1p      = "log1p"
	OpExtract    = "extract"
	OpLength     = "length"
	OpBin        = "bin"
)

// Operation derives one output column from one or more input columns.
//
//	ratio, product, difference  two numeric columns
//	sum                         two or more numeric columns
//	log1p, bin                  one numeric column
//	extract                     one categorical column and a regexp with a capture group
//	length                      one categorical column
//
// Operations run in order, so later operations may read earlier outputs.
// An output that names an existing column replaces it.
type Operation struct {
	Type    string   `yaml:"type" json:"type"`
	Output  string   `yaml:"output" json:"output"`
	Columns []string `yaml:"columns" json:"columns"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Bins    int      `yaml:"bins,omitempty" json:"bins,omitempty"`
}

// Creator is a declarative feature-creation transformer.
type Creator struct {
	State      *model.StateManager
	Operations []Operation

	// Edges holds the learned quantile edges of each bin operation, keyed by output.
	Edges map[string][]float64

	once     sync.Once
	patterns map[string]*regexp.Regexp
}

// NewCreator validates the operations and returns an unfitted Creator.
func NewCreator(ops []Operation) (*Creator, error) {
	if len(ops) == 0 {
		return nil, errors.NewValidationError("feature_creator", "at least one operation is required", 0)
	}
	ops = append([]Operation(nil), ops...)
	outputs := make(map[string]struct{}, len(ops))
	for i, op := range ops {
		if err := validateOperation(op); err != nil {
			return nil, err
		}
		if _, dup := outputs[op.Output]; dup {
			return nil, errors.NewValidationError("feature_creator.output", "duplicate output column", op.Output)
		}
		outputs[op.Output] = struct{}{}
		ops[i].Type = strings.ToLower(op.Type)
	}
	return &Creator{
		State:      model.NewStateManager(),
		Operations: ops,
	}, nil
}

// ParseCreator reads a YAML or JSON document that is either a list of
// operations or an object with an "operations" key.
func ParseCreator(data []byte) (*Creator, error) {
	var ops []Operation
	if err := yaml.Unmarshal(data, &ops); err != nil {
		var doc struct {
			Operations []Operation `yaml:"operations"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, errors.NewParseError(0, "invalid feature creator document", err2)
		}
		ops = doc.Operations
	}
	return NewCreator(ops)
}

// LoadCreator reads a feature creator definition from a file.
func LoadCreator(path string) (*Creator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read feature creator %s", path)
	}
	return ParseCreator(data)
}

func validateOperation(op Operation) error {
	param := "feature_creator." + op.Output
	if op.Output == "" {
		return errors.NewValidationError("feature_creator.output", "output column name is required", op.Type)
	}
	arity := func(want int, exact bool) error {
		if (exact && len(op.Columns) != want) || (!exact && len(op.Columns) < want) {
			return errors.NewValidationError(param, op.Type+" has the wrong number of input columns", len(op.Columns))
		}
		return nil
	}

	switch strings.ToLower(op.Type) {
	case OpRatio, OpProduct, OpDifference:
		return arity(2, true)
	case OpSum:
		return arity(2, false)
	case OpLog1p, OpLength:
		return arity(1, true)
	case OpBin:
		if op.Bins < 2 {
			return errors.NewValidationError(param, "bin needs at least 2 bins", op.Bins)
		}
		return arity(1, true)
	case OpExtract:
		re, err := regexp.Compile(op.Pattern)
		if err != nil {
			return errors.NewValidationError(param, "invalid pattern: "+err.Error(), op.Pattern)
		}
		if re.NumSubexp() < 1 {
			return errors.NewValidationError(param, "pattern needs a capture group", op.Pattern)
		}
		return arity(1, true)
	default:
		return errors.NewValidationError(param, "unknown operation", op.Type)
	}
}

// Fit learns bin edges. Other operations are stateless.
func (c *Creator) Fit(X *frame.Frame, _ *frame.Series) error {
	c.Edges = make(map[string][]float64)
	if _, err := c.apply(X, true); err != nil {
		return err
	}
	c.State.SetFitted()
	c.State.SetDimensions(X.NCols(), X.NRows())
	return nil
}

// Transform appends (or replaces) the derived columns.
func (c *Creator) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := c.State.RequireFitted("Creator", "Transform"); err != nil {
		return nil, err
	}
	return c.apply(X, false)
}

// FitTransform fits and transforms in one pass.
func (c *Creator) FitTransform(X *frame.Frame, y *frame.Series) (*frame.Frame, error) {
	if err := c.Fit(X, y); err != nil {
		return nil, err
	}
	return c.apply(X, false)
}

// OutputColumns lists the columns the creator produces, in order.
func (c *Creator) OutputColumns() []string {
	out := make([]string, len(c.Operations))
	for i, op := range c.Operations {
		out[i] = op.Output
	}
	return out
}

func (c *Creator) apply(X *frame.Frame, learn bool) (*frame.Frame, error) {
	out := X
	for _, op := range c.Operations {
		if missing := out.Missing(op.Columns...); len(missing) > 0 {
			return nil, errors.NewMissingColumnError("Creator."+op.Type, missing...)
		}
		s, err := c.compute(out, op, learn)
		if err != nil {
			return nil, err
		}
		out, err = out.WithColumn(s)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Creator) compute(X *frame.Frame, op Operation, learn bool) (*frame.Series, error) {
	switch op.Type {
	case OpExtract, OpLength:
		src, err := categoricalInput(X, op)
		if err != nil {
			return nil, err
		}
		if op.Type == OpLength {
			vals := make([]float64, len(src.Strings))
			for i, v := range src.Strings {
				if v == "" {
					vals[i] = math.NaN()
					continue
				}
				vals[i] = float64(utf8.RuneCountInString(v))
			}
			return frame.NewNumeric(op.Output, vals), nil
		}
		re := c.pattern(op.Pattern)
		vals := make([]string, len(src.Strings))
		for i, v := range src.Strings {
			if m := re.FindStringSubmatch(v); len(m) > 1 {
				vals[i] = strings.TrimSpace(m[1])
			}
		}
		return frame.NewCategorical(op.Output, vals), nil
	}

	inputs, err := numericInputs(X, op)
	if err != nil {
		return nil, err
	}
	n := X.NRows()
	vals := make([]float64, n)

	switch op.Type {
	case OpRatio:
		for i := 0; i < n; i++ {
			if inputs[1][i] == 0 {
				vals[i] = math.NaN()
				continue
			}
			vals[i] = inputs[0][i] / inputs[1][i]
		}
	case OpProduct:
		for i := 0; i < n; i++ {
			vals[i] = inputs[0][i] * inputs[1][i]
		}
	case OpDifference:
		for i := 0; i < n; i++ {
			vals[i] = inputs[0][i] - inputs[1][i]
		}
	case OpSum:
		for i := 0; i < n; i++ {
			for _, in := range inputs {
				vals[i] += in[i]
			}
		}
	case OpLog1p:
		for i, v := range inputs[0] {
			if v <= -1 {
				vals[i] = math.NaN()
				continue
			}
			vals[i] = math.Log1p(v)
		}
	case OpBin:
		if learn {
			c.Edges[op.Output] = quantileEdges(inputs[0], op.Bins)
		}
		edges := c.Edges[op.Output]
		for i, v := range inputs[0] {
			if math.IsNaN(v) {
				vals[i] = v
				continue
			}
			vals[i] = float64(sort.SearchFloat64s(edges, v))
		}
	}
	return frame.NewNumeric(op.Output, vals), nil
}

func (c *Creator) pattern(p string) *regexp.Regexp {
	c.once.Do(func() {
		c.patterns = make(map[string]*regexp.Regexp)
		for _, op := range c.Operations {
			if op.Type == OpExtract {
				c.patterns[op.Pattern] = regexp.MustCompile(op.Pattern)
			}
		}
	})
	return c.patterns[p]
}

func numericInputs(X *frame.Frame, op Operation) ([][]float64, error) {
	out := make([][]float64, len(op.Columns))
	for i, name := range op.Columns {
		s, _ := X.Column(name)
		if !s.IsNumeric() {
			return nil, errors.NewValueError("Creator."+op.Type, "column "+name+" must be numeric")
		}
		out[i] = s.Floats
	}
	return out, nil
}

func categoricalInput(X *frame.Frame, op Operation) (*frame.Series, error) {
	s, _ := X.Column(op.Columns[0])
	if s.IsNumeric() {
		return nil, errors.NewValueError("Creator."+op.Type, "column "+op.Columns[0]+" must be categorical")
	}
	return s, nil
}

// quantileEdges returns the distinct inner quantile edges splitting values into bins.
func quantileEdges(values []float64, bins int) []float64 {
	var obs []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			obs = append(obs, v)
		}
	}
	if len(obs) == 0 {
		return nil
	}
	sort.Float64s(obs)

	var edges []float64
	for k := 1; k < bins; k++ {
		q := stat.Quantile(float64(k)/float64(bins), stat.Empirical, obs, nil)
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	return edges
}
