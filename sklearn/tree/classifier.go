package tree

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// DecisionTreeClassifier is a CART classifier over labels encoded 0..k-1.
type DecisionTreeClassifier struct {
	State *model.StateManager

	// Hyperparameters
	Criterion       string // "gini" or "entropy"
	MaxDepth        int    // 0 => no limit
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => all features
	RandomState     int64

	// Learned
	Tree     *Tree
	NClasses int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxDepth(d int) Option     { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithMaxFeatures(k int) Option { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		State:           model.NewStateManager(),
		Criterion:       CriterionGini,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *DecisionTreeClassifier) config() Config {
	return Config{
		Criterion:       d.Criterion,
		MaxDepth:        d.MaxDepth,
		MinSamplesSplit: d.MinSamplesSplit,
		MinSamplesLeaf:  d.MinSamplesLeaf,
		MaxFeatures:     d.MaxFeatures,
	}
}

// Fit grows the tree on X (n×p) and encoded labels y (n×1).
func (d *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", rows, yRows, 0)
	}
	if d.Criterion != CriterionGini && d.Criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be gini or entropy", d.Criterion)
	}
	labels, k, err := model.ClassLabels("DecisionTreeClassifier.Fit", y)
	if err != nil {
		return err
	}

	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(d.RandomState))
	d.Tree = GrowClassifier(mat.DenseCopyOf(X), labels, k, idx, d.config(), rng)
	d.NClasses = k
	d.State.SetFitted()
	d.State.SetDimensions(cols, rows)
	return nil
}

// PredictProba returns the class fractions of the leaf each row lands in.
func (d *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := d.State.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := d.State.RequireFeatures("DecisionTreeClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, d.NClasses, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, d.Tree.Value(row))
	}
	return out, nil
}

// Predict returns the majority class of each row's leaf.
func (d *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := d.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.PredictFromProba(proba), nil
}

// Score returns the mean accuracy on (X, y); 0 on error.
func (d *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := d.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

func (d *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if d.Tree == nil {
		return nil
	}
	return d.Tree.Importances()
}

func (d *DecisionTreeClassifier) GetDepth() int {
	if d.Tree == nil {
		return 0
	}
	return d.Tree.Depth()
}

func (d *DecisionTreeClassifier) GetNLeaves() int {
	if d.Tree == nil {
		return 0
	}
	return d.Tree.NLeaves()
}

// SetRandomState seeds feature subsampling.
func (d *DecisionTreeClassifier) SetRandomState(seed int64) { d.RandomState = seed }

func (d *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         d.Criterion,
		"max_depth":         d.MaxDepth,
		"min_samples_split": d.MinSamplesSplit,
		"min_samples_leaf":  d.MinSamplesLeaf,
		"max_features":      d.MaxFeatures,
		"random_state":      d.RandomState,
	}
}

func (d *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("DecisionTreeClassifier", params, map[string]model.ParamFunc{
		"criterion":         model.StringParam(&d.Criterion, CriterionGini, CriterionEntropy),
		"max_depth":         model.IntParam(&d.MaxDepth),
		"min_samples_split": model.IntParam(&d.MinSamplesSplit),
		"min_samples_leaf":  model.IntParam(&d.MinSamplesLeaf),
		"max_features":      model.IntParam(&d.MaxFeatures),
		"random_state":      model.Int64Param(&d.RandomState),
	})
}

func (d *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", d.Criterion, d.MaxDepth)
}
