// Package model defines the contracts shared by every pipeline component:
// frame-level transformers and estimators, the tagged pipeline step, the
// fitted-state manager and gob artifact encoding.
package model

import (
	"github.com/YuminosukeSato/mlplayground/core/frame"
)

// Transformer learns parameters from training data (Fit) and applies a
// deterministic transformation to any table (Transform). y may be nil.
type Transformer interface {
	Fit(X *frame.Frame, y *frame.Series) error
	Transform(X *frame.Frame) (*frame.Frame, error)
}

// Estimator learns from training data and produces one prediction per row.
type Estimator interface {
	Fit(X *frame.Frame, y *frame.Series) error
	Predict(X *frame.Frame) (*frame.Series, error)
}

// FitTransform fits t on X and returns the transformed X.
func FitTransform(t Transformer, X *frame.Frame, y *frame.Series) (*frame.Frame, error) {
	if ft, ok := t.(interface {
		FitTransform(*frame.Frame, *frame.Series) (*frame.Frame, error)
	}); ok {
		return ft.FitTransform(X, y)
	}
	if err := t.Fit(X, y); err != nil {
		return nil, err
	}
	return t.Transform(X)
}

// ParamSetter is implemented by components that accept named hyperparameters.
// Unknown keys must be rejected.
type ParamSetter interface {
	SetParams(params map[string]interface{}) error
}

// ParamGetter exposes the current hyperparameters.
type ParamGetter interface {
	GetParams() map[string]interface{}
}

// RandomStateSetter is implemented by estimators with internal randomness.
type RandomStateSetter interface {
	SetRandomState(seed int64)
}

// ProgressReporter is implemented by estimators that fit in countable units
// (trees, boosting rounds). fn is called after each unit.
type ProgressReporter interface {
	SetProgress(fn func(done, total int))
}
