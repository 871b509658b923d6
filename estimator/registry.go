// Package estimator is the closed registry of estimators a run may select,
// and the adapters that fit them on frames.
package estimator

import (
	"sort"
	"strings"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/sklearn/ensemble"
	"github.com/YuminosukeSato/mlplayground/sklearn/linear_model"
	"github.com/YuminosukeSato/mlplayground/sklearn/svm"
)

// Problem is the learning task an estimator solves.
type Problem string

const (
	Regression     Problem = "regression"
	Classification Problem = "classification"
)

// Registry identifiers.
const (
	LinearRegressionID           = "linear_regression"
	RandomForestRegressorID      = "random_forest_regressor"
	GradientBoostingRegressorID  = "gradient_boosting_regressor"
	LinearSVRID                  = "linear_svr"
	LogisticRegressionID         = "logistic_regression"
	RandomForestClassifierID     = "random_forest_classifier"
	GradientBoostingClassifierID = "gradient_boosting_classifier"
	LinearSVCID                  = "linear_svc"
)

// Spec is one registry entry.
type Spec struct {
	ID      string
	Name    string
	Aliases []string
	Problem Problem
	// Randomized estimators receive the run seed.
	Randomized bool
	New        func() model.MatrixModel
}

var specs = []Spec{
	{
		ID: LinearRegressionID, Name: "LinearRegression", Problem: Regression,
		Aliases: []string{"LinearRegression"},
		New:     func() model.MatrixModel { return linear_model.NewLinearRegression() },
	},
	{
		ID: RandomForestRegressorID, Name: "RandomForestRegressor", Problem: Regression, Randomized: true,
		Aliases: []string{"RandomForestRegressor"},
		New:     func() model.MatrixModel { return ensemble.NewRandomForestRegressor() },
	},
	{
		ID: GradientBoostingRegressorID, Name: "GradientBoostingRegressor", Problem: Regression, Randomized: true,
		Aliases: []string{"GradientBoostingRegressor", "XGBRegressor"},
		New:     func() model.MatrixModel { return ensemble.NewGradientBoostingRegressor() },
	},
	{
		ID: LinearSVRID, Name: "LinearSVR", Problem: Regression,
		Aliases: []string{"LinearSVR", "SVR"},
		New:     func() model.MatrixModel { return svm.NewLinearSVR() },
	},
	{
		ID: LogisticRegressionID, Name: "LogisticRegression", Problem: Classification,
		Aliases: []string{"LogisticRegression"},
		New:     func() model.MatrixModel { return linear_model.NewLogisticRegression() },
	},
	{
		ID: RandomForestClassifierID, Name: "RandomForestClassifier", Problem: Classification, Randomized: true,
		Aliases: []string{"RandomForestClassifier"},
		New:     func() model.MatrixModel { return ensemble.NewRandomForestClassifier() },
	},
	{
		ID: GradientBoostingClassifierID, Name: "GradientBoostingClassifier", Problem: Classification, Randomized: true,
		Aliases: []string{"GradientBoostingClassifier", "XGBClassifier"},
		New:     func() model.MatrixModel { return ensemble.NewGradientBoostingClassifier() },
	},
	{
		ID: LinearSVCID, Name: "LinearSVC", Problem: Classification,
		Aliases: []string{"LinearSVC", "SVC"},
		New:     func() model.MatrixModel { return svm.NewLinearSVC() },
	},
}

// List returns every registry entry in registration order (regressors first).
func List() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// IDs returns the sorted registry identifiers.
func IDs() []string {
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	sort.Strings(ids)
	return ids
}

// ForProblem returns the entries solving p.
func ForProblem(p Problem) []Spec {
	var out []Spec
	for _, s := range specs {
		if s.Problem == p {
			out = append(out, s)
		}
	}
	return out
}

// Lookup resolves an identifier or alias. Identifiers match case-insensitively,
// aliases exactly. Anything else is an UnknownEstimatorError.
func Lookup(name string) (Spec, error) {
	key := strings.TrimSpace(name)
	for _, s := range specs {
		if strings.EqualFold(s.ID, key) {
			return s, nil
		}
		for _, a := range s.Aliases {
			if a == key {
				return s, nil
			}
		}
	}
	return Spec{}, errors.NewUnknownEstimatorError(name, IDs())
}

// New resolves name and builds a frame-level estimator. seed is applied to
// randomized estimators before params, so an explicit random_state wins.
// Unknown parameter keys are rejected.
func New(name string, params map[string]interface{}, seed int64) (Estimator, error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	m := spec.New()
	if rs, ok := m.(model.RandomStateSetter); ok && spec.Randomized {
		rs.SetRandomState(seed)
	}
	if len(params) > 0 {
		ps, ok := m.(model.ParamSetter)
		if !ok {
			return nil, errors.NewValidationError("estimator_params", spec.Name+" takes no parameters", params)
		}
		if err := ps.SetParams(params); err != nil {
			return nil, err
		}
	}

	if spec.Problem == Classification {
		clf, ok := m.(model.MatrixClassifier)
		if !ok {
			return nil, errors.NewModelError("estimator.New", "registry", errors.Newf("%s is not a classifier", spec.ID))
		}
		return &Classifier{ID: spec.ID, Model: clf}, nil
	}
	return &Regressor{ID: spec.ID, Model: m}, nil
}
