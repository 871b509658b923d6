// Package ensemble implements random forests and gradient boosting on top
// of the CART trees in sklearn/tree.
package ensemble

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/core/parallel"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestClassifier{})
	gob.Register(&RandomForestRegressor{})
	gob.Register(&GradientBoostingClassifier{})
	gob.Register(&GradientBoostingRegressor{})
}

// MaxFeatures settings accepted by forests.
const (
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
	MaxFeaturesAll  = "all"
)

// Forest holds the hyperparameters and fitted trees shared by both random
// forest estimators. Tree i is grown from seed RandomState+i, so results do
// not depend on how trees are scheduled across workers.
type Forest struct {
	State *model.StateManager

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	NJobs           int // 0 => one worker per CPU

	Trees []*tree.Tree

	progress func(done, total int)
}

func newForest(maxFeatures string) Forest {
	return Forest{
		State:           model.NewStateManager(),
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     maxFeatures,
		Bootstrap:       true,
	}
}

// SetRandomState seeds tree i with seed+i.
func (f *Forest) SetRandomState(seed int64) { f.RandomState = seed }

// SetProgress registers a callback invoked after each tree is grown.
// Calls are serialized.
func (f *Forest) SetProgress(fn func(done, total int)) { f.progress = fn }

func (f *Forest) featureCount(p int) int {
	switch f.MaxFeatures {
	case MaxFeaturesSqrt:
		return int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	case MaxFeaturesLog2:
		return int(math.Max(1, math.Floor(math.Log2(float64(p)))))
	default:
		return 0
	}
}

func (f *Forest) validate() error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	if f.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", f.MinSamplesSplit)
	}
	if f.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", f.MinSamplesLeaf)
	}
	return nil
}

// grow builds every tree; growTree receives the bootstrap indices and the
// tree's private random source.
func (f *Forest) grow(n, p int, growTree func(idx []int, cfg tree.Config, rng *rand.Rand) *tree.Tree) {
	cfg := tree.Config{
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MinSamplesLeaf:  f.MinSamplesLeaf,
		MaxFeatures:     f.featureCount(p),
	}
	f.Trees = make([]*tree.Tree, f.NEstimators)

	var mu sync.Mutex
	done := 0
	_ = parallel.ForEach(f.NEstimators, f.NJobs, func(i int) error {
		rng := rand.New(rand.NewSource(f.RandomState + int64(i)))
		idx := make([]int, n)
		for j := range idx {
			if f.Bootstrap {
				idx[j] = rng.Intn(n)
			} else {
				idx[j] = j
			}
		}
		f.Trees[i] = growTree(idx, cfg, rng)

		if f.progress != nil {
			mu.Lock()
			done++
			f.progress(done, f.NEstimators)
			mu.Unlock()
		}
		return nil
	})
}

func (f *Forest) params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"max_depth":         f.MaxDepth,
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"random_state":      f.RandomState,
		"n_jobs":            f.NJobs,
	}
}

func (f *Forest) setters() map[string]model.ParamFunc {
	return map[string]model.ParamFunc{
		"n_estimators":      model.IntParam(&f.NEstimators),
		"max_depth":         model.IntParam(&f.MaxDepth),
		"min_samples_split": model.IntParam(&f.MinSamplesSplit),
		"min_samples_leaf":  model.IntParam(&f.MinSamplesLeaf),
		"max_features":      model.StringParam(&f.MaxFeatures, MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesAll),
		"bootstrap":         model.BoolParam(&f.Bootstrap),
		"random_state":      model.Int64Param(&f.RandomState),
		"n_jobs":            model.IntParam(&f.NJobs),
	}
}

// Importances averages the per-tree impurity importances.
func (f *Forest) Importances() []float64 {
	if len(f.Trees) == 0 {
		return nil
	}
	out := make([]float64, f.Trees[0].NFeatures)
	for _, t := range f.Trees {
		for j, v := range t.Importances() {
			out[j] += v / float64(len(f.Trees))
		}
	}
	return out
}

func checkFit(op string, X, y mat.Matrix) (int, int, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.WithStack(errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return rows, cols, nil
}

// RandomForestClassifier averages the class fractions of bootstrap trees.
type RandomForestClassifier struct {
	Forest
	Criterion string
	NClasses  int
}

// NewRandomForestClassifier uses scikit-learn defaults: 100 trees, gini,
// sqrt(p) features per split.
func NewRandomForestClassifier() *RandomForestClassifier {
	return &RandomForestClassifier{Forest: newForest(MaxFeaturesSqrt), Criterion: tree.CriterionGini}
}

func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkFit("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}
	labels, k, err := model.ClassLabels("RandomForestClassifier.Fit", y)
	if err != nil {
		return err
	}

	data := mat.DenseCopyOf(X)
	rf.grow(rows, cols, func(idx []int, cfg tree.Config, rng *rand.Rand) *tree.Tree {
		cfg.Criterion = rf.Criterion
		return tree.GrowClassifier(data, labels, k, idx, cfg, rng)
	})
	rf.NClasses = k
	rf.State.SetFitted()
	rf.State.SetDimensions(cols, rows)
	return nil
}

func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.State.RequireFeatures("RandomForestClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, rf.NClasses, nil)
	row := make([]float64, cols)
	acc := make([]float64, rf.NClasses)
	scale := 1 / float64(len(rf.Trees))
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		for c := range acc {
			acc[c] = 0
		}
		for _, t := range rf.Trees {
			for c, v := range t.Value(row) {
				acc[c] += v * scale
			}
		}
		out.SetRow(i, acc)
	}
	return out, nil
}

func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.PredictFromProba(proba), nil
}

func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	p := rf.params()
	p["criterion"] = rf.Criterion
	return p
}

func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	s := rf.setters()
	s["criterion"] = model.StringParam(&rf.Criterion, tree.CriterionGini, tree.CriterionEntropy)
	return model.ApplyParams("RandomForestClassifier", params, s)
}

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_depth=%d)", rf.NEstimators, rf.MaxDepth)
}

// RandomForestRegressor averages the leaf means of bootstrap trees.
type RandomForestRegressor struct {
	Forest
}

// NewRandomForestRegressor uses scikit-learn defaults: 100 trees, all
// features per split.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{Forest: newForest(MaxFeaturesAll)}
}

func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkFit("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}

	data := mat.DenseCopyOf(X)
	target := make([]float64, rows)
	mat.Col(target, 0, y)
	rf.grow(rows, cols, func(idx []int, cfg tree.Config, rng *rand.Rand) *tree.Tree {
		cfg.Criterion = tree.CriterionSquaredError
		return tree.GrowRegressor(data, target, idx, cfg, rng)
	})
	rf.State.SetFitted()
	rf.State.SetDimensions(cols, rows)
	return nil
}

func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := rf.State.RequireFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		var sum float64
		for _, t := range rf.Trees {
			sum += t.Value(row)[0]
		}
		out.Set(i, 0, sum/float64(len(rf.Trees)))
	}
	return out, nil
}

func (rf *RandomForestRegressor) GetParams() map[string]interface{} { return rf.params() }

func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("RandomForestRegressor", params, rf.setters())
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d)", rf.NEstimators, rf.MaxDepth)
}
