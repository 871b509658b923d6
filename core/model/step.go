package model

import (
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// StepKind tags the capability a Step carries.
type StepKind int

const (
	// TransformerStep steps expose Fit and Transform.
	TransformerStep StepKind = iota
	// EstimatorStep steps expose Fit and Predict.
	EstimatorStep
)

// String returns the string representation of the kind.
func (k StepKind) String() string {
	if k == EstimatorStep {
		return "estimator"
	}
	return "transformer"
}

// Step is a named pipeline stage. Exactly one of Transformer or Estimator is
// set, as indicated by Kind.
type Step struct {
	Name        string
	Kind        StepKind
	Transformer Transformer
	Estimator   Estimator
}

// NewTransformerStep builds a transformer step.
func NewTransformerStep(name string, t Transformer) Step {
	return Step{Name: name, Kind: TransformerStep, Transformer: t}
}

// NewEstimatorStep builds an estimator step.
func NewEstimatorStep(name string, e Estimator) Step {
	return Step{Name: name, Kind: EstimatorStep, Estimator: e}
}

// Validate checks that the step carries the component its kind promises.
func (s Step) Validate() error {
	if s.Name == "" {
		return errors.NewValidationError("step.name", "step name must not be empty", s.Name)
	}
	switch s.Kind {
	case TransformerStep:
		if s.Transformer == nil {
			return errors.NewValidationError(s.Name, "transformer step has no transformer", nil)
		}
	case EstimatorStep:
		if s.Estimator == nil {
			return errors.NewValidationError(s.Name, "estimator step has no estimator", nil)
		}
	default:
		return errors.NewValidationError(s.Name, "unknown step kind", int(s.Kind))
	}
	return nil
}

// Component returns the step's transformer or estimator.
func (s Step) Component() interface{} {
	if s.Kind == EstimatorStep {
		return s.Estimator
	}
	return s.Transformer
}

// StepSpec is a named transformer factory. Building a pipeline from specs
// yields fresh, unfitted transformers on every call, so one configuration
// can be reused across runs.
type StepSpec struct {
	Name string
	New  func() Transformer
}

// Build instantiates the spec as a transformer step.
func (s StepSpec) Build() Step {
	return NewTransformerStep(s.Name, s.New())
}

// BuildSteps instantiates every spec in order.
func BuildSteps(specs []StepSpec) []Step {
	steps := make([]Step, len(specs))
	for i, s := range specs {
		steps[i] = s.Build()
	}
	return steps
}
