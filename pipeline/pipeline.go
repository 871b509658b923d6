// Package pipeline chains frame transformers and a final estimator, routes
// column groups through their own sub-pipelines (ColumnTransformer) and
// assembles the preprocessing and model pipelines of a run.
package pipeline

import (
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"

	// Step types decoded by Unmarshal.
	_ "github.com/YuminosukeSato/mlplayground/features"
	_ "github.com/YuminosukeSato/mlplayground/preprocessing"
)

func init() {
	gob.Register(&Pipeline{})
	gob.Register(&ColumnTransformer{})
}

// Pipeline chains transformers and optionally a final estimator.
// Intermediate steps must be transformers; the final step may be a
// transformer or an estimator.
//
// Scikit-learn compatible implementation over frame.Frame.
type Pipeline struct {
	Steps []model.Step
	State *model.StateManager

	logOnce sync.Once
	logger  log.Logger
}

// New creates a new Pipeline with the given steps.
// This is equivalent to sklearn.pipeline.Pipeline(steps)
func New(steps ...model.Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.NewValidationError("steps", "pipeline needs at least one step", 0)
	}
	seen := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[s.Name]; dup {
			return nil, errors.NewValidationError("steps", "duplicate step name", s.Name)
		}
		seen[s.Name] = struct{}{}
		if i < len(steps)-1 && s.Kind != model.TransformerStep {
			return nil, errors.NewValidationError(
				"pipeline step",
				"all intermediate steps must be transformers",
				s.Name,
			)
		}
	}
	return &Pipeline{
		Steps: append([]model.Step(nil), steps...),
		State: model.NewStateManager(),
	}, nil
}

// MustNew is New that panics on invalid steps. Intended for tests and
// package-level literals.
func MustNew(steps ...model.Step) *Pipeline {
	p, err := New(steps...)
	if err != nil {
		panic(err)
	}
	return p
}

// Concat joins fitted pipelines into one fitted pipeline whose steps run in
// order. Nil pipelines are skipped. Only the last pipeline may end in an
// estimator.
func Concat(pipes ...*Pipeline) (*Pipeline, error) {
	var steps []model.Step
	for _, p := range pipes {
		if p == nil {
			continue
		}
		if err := p.State.RequireFitted("Pipeline", "Concat"); err != nil {
			return nil, err
		}
		steps = append(steps, p.Steps...)
	}
	out, err := New(steps...)
	if err != nil {
		return nil, err
	}
	out.State.SetFitted()
	return out, nil
}

func (p *Pipeline) log() log.Logger {
	p.logOnce.Do(func() {
		p.logger = log.GetLoggerWithName("Pipeline")
	})
	return p.logger
}

// Fit fits every transformer in order on the output of the previous one,
// then the final step. Any previous fitted state is replaced.
func (p *Pipeline) Fit(X *frame.Frame, y *frame.Series) error {
	start := time.Now()
	p.State.Reset()

	err := errors.SafeExecute("Pipeline.Fit", func() error {
		Xt := X
		for i, step := range p.Steps {
			last := i == len(p.Steps)-1
			if step.Kind == model.EstimatorStep {
				if err := step.Estimator.Fit(Xt, y); err != nil {
					return errors.Wrap(err, fmt.Sprintf("failed to fit final step '%s'", step.Name))
				}
				continue
			}
			if last {
				if err := step.Transformer.Fit(Xt, y); err != nil {
					return errors.Wrap(err, fmt.Sprintf("failed to fit step '%s'", step.Name))
				}
				continue
			}
			next, err := model.FitTransform(step.Transformer, Xt, y)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("failed to fit step '%s'", step.Name))
			}
			Xt = next
		}
		return nil
	})
	if err != nil {
		p.log().Debug("Pipeline fit failed", log.ErrAttrKey, err.Error(), log.OperationKey, log.OperationFit)
		return err
	}

	p.State.SetFitted()
	p.State.SetDimensions(X.NCols(), X.NRows())
	p.log().Debug("Pipeline fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, X.NRows(),
		log.FeaturesKey, X.NCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Transform applies every step. Only valid if the final step is a transformer.
func (p *Pipeline) Transform(X *frame.Frame) (*frame.Frame, error) {
	if err := p.State.RequireFitted("Pipeline", "Transform"); err != nil {
		return nil, err
	}
	if p.final().Kind != model.TransformerStep {
		return nil, errors.NewValidationError(
			"pipeline final step",
			"all steps must be transformers for Transform",
			p.final().Name,
		)
	}
	return p.transform(X, len(p.Steps))
}

// FitTransform fits the pipeline and transforms X.
func (p *Pipeline) FitTransform(X *frame.Frame, y *frame.Series) (*frame.Frame, error) {
	if err := p.Fit(X, y); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// Predict applies the transformers and predicts with the final estimator.
func (p *Pipeline) Predict(X *frame.Frame) (*frame.Series, error) {
	if err := p.State.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	final := p.final()
	if final.Kind != model.EstimatorStep {
		return nil, errors.NewValidationError(
			"pipeline final step",
			"final step must be an estimator for prediction",
			final.Name,
		)
	}
	Xt, err := p.transform(X, len(p.Steps)-1)
	if err != nil {
		return nil, err
	}
	pred, err := final.Estimator.Predict(Xt)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to predict with '%s'", final.Name))
	}
	return pred, nil
}

// PredictProba applies the transformers and returns class probabilities
// from the final estimator, one column per class.
func (p *Pipeline) PredictProba(X *frame.Frame) (*frame.Frame, error) {
	if err := p.State.RequireFitted("Pipeline", "PredictProba"); err != nil {
		return nil, err
	}
	final := p.final()
	proba, ok := final.Component().(interface {
		PredictProba(*frame.Frame) (*frame.Frame, error)
	})
	if !ok {
		return nil, errors.NewValidationError(
			"pipeline final step",
			"final step must have PredictProba method",
			final.Name,
		)
	}
	Xt, err := p.transform(X, len(p.Steps)-1)
	if err != nil {
		return nil, err
	}
	return proba.PredictProba(Xt)
}

// Named returns the step with the given name.
func (p *Pipeline) Named(name string) (model.Step, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return model.Step{}, false
}

// Estimator returns the final estimator, or nil if the pipeline ends in a
// transformer.
func (p *Pipeline) Estimator() model.Estimator {
	if f := p.final(); f.Kind == model.EstimatorStep {
		return f.Estimator
	}
	return nil
}

// StepNames returns the step names in order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name
	}
	return names
}

// SetProgress forwards fn to every step that reports progress.
func (p *Pipeline) SetProgress(fn func(done, total int)) {
	for _, s := range p.Steps {
		if pr, ok := s.Component().(model.ProgressReporter); ok {
			pr.SetProgress(fn)
		}
	}
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(steps=%v)", p.StepNames())
}

func (p *Pipeline) final() model.Step {
	return p.Steps[len(p.Steps)-1]
}

// transform applies the first n steps, all of which must be transformers.
func (p *Pipeline) transform(X *frame.Frame, n int) (*frame.Frame, error) {
	Xt := X
	for _, step := range p.Steps[:n] {
		next, err := step.Transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
		Xt = next
	}
	return Xt, nil
}

// Marshal serializes a fitted pipeline to an opaque gob blob. The blob
// carries no schema version; it decodes only with the same build of this
// module.
func Marshal(p *Pipeline) ([]byte, error) {
	if err := p.State.RequireFitted("Pipeline", "Marshal"); err != nil {
		return nil, err
	}
	return model.Marshal(p)
}

// Unmarshal restores a pipeline written by Marshal.
func Unmarshal(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := model.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if len(p.Steps) == 0 || p.State == nil {
		return nil, errors.NewValueError("pipeline.Unmarshal", "blob does not hold a pipeline")
	}
	return &p, nil
}
