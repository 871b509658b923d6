// Package run orchestrates one training run: split, optional feature
// engineering, preprocessing and the estimator fit.
package run

import (
	"context"
	"time"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/dataset"
	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/features"
	"github.com/YuminosukeSato/mlplayground/model_selection"
	"github.com/YuminosukeSato/mlplayground/pipeline"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
)

// Result is the outcome of a successful run. XTrain and XTest are the
// partitions after feature engineering, so Pipeline predicts on them
// directly.
type Result struct {
	Pipeline *pipeline.Pipeline
	// FeaturePipeline is nil when no feature engineering was requested.
	FeaturePipeline *pipeline.Pipeline
	XTrain          *frame.Frame
	XTest           *frame.Frame
	YTrain          *frame.Series
	YTest           *frame.Series
	FitDuration     time.Duration
	Config          Config
	Problem         estimator.Problem
	// Preprocessed is false when no preprocessing route was built.
	Preprocessed bool
}

// Artifact returns a single fitted pipeline that accepts raw feature
// columns: the feature-engineering steps followed by the model.
func (r *Result) Artifact() (*pipeline.Pipeline, error) {
	if r.FeaturePipeline == nil {
		return r.Pipeline, nil
	}
	return pipeline.Concat(r.FeaturePipeline, r.Pipeline)
}

// Option configures RunModel.
type Option func(*options)

type options struct {
	progress func(done, total int)
	logger   log.Logger
}

// WithProgress reports estimator progress during the fit.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) { o.progress = fn }
}

// WithLogger overrides the run logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// RunModel trains cfg's estimator on ds. Options are validated against the
// dataset before anything is fit. When cfg names an identifier column it is
// dropped from ds in place.
func RunModel(ctx context.Context, ds *dataset.Dataset, cfg Config, opts ...Option) (*Result, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("run")
	}
	if ds == nil || ds.Frame == nil {
		return nil, errors.NewValueError("RunModel", "no dataset")
	}
	if cfg.Target == "" {
		cfg.Target = ds.Target
	} else if cfg.Target != ds.Target {
		return nil, errors.NewValidationError("target",
			"does not match the dataset target '"+ds.Target+"'", cfg.Target)
	}

	p, err := cfg.plan()
	if err != nil {
		return nil, err
	}
	if err := validateAgainst(ds, cfg, p); err != nil {
		return nil, err
	}
	logger := o.logger.With(
		log.TargetKey, cfg.Target,
		log.EstimatorIDKey, p.spec.ID,
		log.RandomSeedKey, cfg.RandomState,
	)
	start := time.Now()

	if err := ds.DropID(cfg.IDColumn); err != nil {
		return nil, err
	}
	X, y, err := ds.XY()
	if err != nil {
		return nil, err
	}
	if p.spec.Problem == estimator.Regression && !y.IsNumeric() {
		return nil, errors.NewValidationError("estimator",
			"target '"+y.Name+"' is categorical; choose a classification estimator", p.spec.ID)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "run")
	}
	split, err := model_selection.TrainTestSplit(X, y, cfg.TestSize(),
		model_selection.WithRandomState(cfg.RandomState),
		model_selection.WithStratify(cfg.Stratify),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("Split completed",
		log.OperationKey, log.OperationSplit,
		log.TrainSamplesKey, split.XTrain.NRows(),
		log.TestSamplesKey, split.XTest.NRows(),
	)

	res := &Result{
		XTrain:  split.XTrain,
		XTest:   split.XTest,
		YTrain:  split.YTrain,
		YTest:   split.YTest,
		Config:  cfg,
		Problem: p.spec.Problem,
	}

	var creator model.Transformer
	if p.creator != nil {
		creator = p.creator
	}
	if steps := features.Assemble(creator, cfg.DropColumns); steps != nil {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "run")
		}
		fe, err := pipeline.New(steps...)
		if err != nil {
			return nil, err
		}
		if res.XTrain, err = fe.FitTransform(split.XTrain, split.YTrain); err != nil {
			return nil, errors.Wrap(err, "feature engineering")
		}
		if res.XTest, err = fe.Transform(split.XTest); err != nil {
			return nil, errors.Wrap(err, "feature engineering")
		}
		res.FeaturePipeline = fe
		logger.Debug("Features engineered",
			log.PhaseKey, "feature_engineering",
			log.FeaturesKey, res.XTrain.NCols(),
		)
	}

	pre, ok := pipeline.BuildPreprocessor(res.XTrain, p.numeric, p.categorical,
		pipeline.WithRemainder(cfg.Remainder))
	res.Preprocessed = ok

	fitStart := time.Now()
	modelOpts := []pipeline.ModelOption{pipeline.WithLogger(logger)}
	if o.progress != nil {
		modelOpts = append(modelOpts, pipeline.WithProgress(o.progress))
	}
	res.Pipeline, err = pipeline.BuildModel(ctx, res.XTrain, res.YTrain, pre,
		p.spec.ID, cfg.EstimatorParams, cfg.RandomState, modelOpts...)
	if err != nil {
		return nil, err
	}
	res.FitDuration = time.Since(fitStart)

	logger.Info("Run completed",
		log.ProblemKey, string(res.Problem),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// validateAgainst checks the column references of cfg against ds. Drop
// columns may name columns the feature creator produces.
func validateAgainst(ds *dataset.Dataset, cfg Config, p *plan) error {
	if cfg.IDColumn != "" && !ds.Frame.Has(cfg.IDColumn) {
		return errors.NewMissingColumnError("id_column", cfg.IDColumn)
	}
	available := make(map[string]bool, ds.Frame.NCols())
	for _, name := range ds.Frame.Names() {
		if name != cfg.Target && name != cfg.IDColumn {
			available[name] = true
		}
	}
	if p.creator != nil {
		for _, op := range p.creator.Operations {
			if missing := missingFrom(available, op.Columns); len(missing) > 0 {
				return errors.NewMissingColumnError("feature_creator."+op.Output, missing...)
			}
			available[op.Output] = true
		}
	}
	if missing := missingFrom(available, cfg.DropColumns); len(missing) > 0 {
		return errors.NewMissingColumnError("drop_columns", missing...)
	}
	return nil
}

func missingFrom(available map[string]bool, names []string) []string {
	var missing []string
	for _, n := range names {
		if !available[n] {
			missing = append(missing, n)
		}
	}
	return missing
}
