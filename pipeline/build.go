package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
)

// Step and route names used by the builders.
const (
	NumericRoute       = "numeric_transformer"
	CategoricalRoute   = "categorical_transformer"
	PreprocessStepName = "pre_processing"
	EstimatorStepName  = "estimator"
)

// PreprocessorOption configures BuildPreprocessor.
type PreprocessorOption func(*ColumnTransformer)

// WithRemainder sets the policy for columns no route claims.
func WithRemainder(policy string) PreprocessorOption {
	return func(ct *ColumnTransformer) {
		if policy != "" {
			ct.Remainder = policy
		}
	}
}

// BuildPreprocessor partitions X into numeric and categorical columns and
// routes each group through a fresh pipeline of its steps. A group without
// columns ignores its steps, and a group without steps is not routed. The
// second result is false when no route was built, in which case the model
// must consume the raw features.
func BuildPreprocessor(X *frame.Frame, numericSteps, categoricalSteps []model.StepSpec, opts ...PreprocessorOption) (*ColumnTransformer, bool) {
	var routes []Route
	add := func(name string, columns []string, specs []model.StepSpec) {
		if len(columns) == 0 || len(specs) == 0 {
			return
		}
		routes = append(routes, Route{
			Name:        name,
			Transformer: &Pipeline{Steps: model.BuildSteps(specs), State: model.NewStateManager()},
			Columns:     columns,
		})
	}
	add(NumericRoute, X.NumericColumns(), numericSteps)
	add(CategoricalRoute, X.CategoricalColumns(), categoricalSteps)
	if len(routes) == 0 {
		return nil, false
	}

	ct := &ColumnTransformer{
		State:     model.NewStateManager(),
		Routes:    routes,
		Remainder: RemainderPassthrough,
	}
	for _, opt := range opts {
		opt(ct)
	}
	return ct, true
}

// ModelOption configures BuildModel.
type ModelOption func(*modelConfig)

type modelConfig struct {
	progress func(done, total int)
	logger   log.Logger
}

// WithProgress reports estimator progress (trees or boosting rounds).
func WithProgress(fn func(done, total int)) ModelOption {
	return func(c *modelConfig) { c.progress = fn }
}

// WithLogger overrides the builder logger.
func WithLogger(l log.Logger) ModelOption {
	return func(c *modelConfig) { c.logger = l }
}

// BuildModel resolves estimatorID, chains it after pre (when non-nil) and
// fits the pipeline on (X, y). seed reaches estimators with internal
// randomness unless params sets random_state. The context is checked once
// before fitting; the fit itself runs to completion.
func BuildModel(ctx context.Context, X *frame.Frame, y *frame.Series, pre *ColumnTransformer,
	estimatorID string, params map[string]interface{}, seed int64, opts ...ModelOption) (*Pipeline, error) {
	cfg := modelConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("BuildModel")
	}

	est, err := estimator.New(estimatorID, params, seed)
	if err != nil {
		return nil, err
	}
	logger := cfg.logger.With(
		log.EstimatorIDKey, est.EstimatorID(),
		log.ProblemKey, string(est.Problem()),
		log.RandomSeedKey, seed,
	)

	var steps []model.Step
	if pre != nil {
		steps = append(steps, model.NewTransformerStep(PreprocessStepName, pre))
	}
	steps = append(steps, model.NewEstimatorStep(EstimatorStepName, est))
	p, err := New(steps...)
	if err != nil {
		return nil, err
	}
	if cfg.progress != nil {
		p.SetProgress(cfg.progress)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "build model")
	}

	start := time.Now()
	if err := p.Fit(X, y); err != nil {
		logger.Error("Model fit failed", err, log.OperationKey, log.OperationFit)
		return nil, errors.Wrapf(err, "fit %s", est.EstimatorID())
	}
	logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, X.NRows(),
		log.FeaturesKey, X.NCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return p, nil
}
