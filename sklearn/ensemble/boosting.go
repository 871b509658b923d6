package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/sklearn/tree"
)

// objective supplies first and second derivatives of the loss with respect
// to the raw scores. Raw scores are n×K (K = 1 for regression and binary).
type objective interface {
	outputs() int
	initScore(y []float64) []float64
	// gradHess fills g and h (n×K, row-major) for the current raw scores.
	gradHess(raw, y, g, h []float64)
	// leafScale multiplies every Newton leaf step.
	leafScale() float64
}

// l2Objective is squared error; the Newton step is the mean residual.
type l2Objective struct{}

func (l2Objective) outputs() int { return 1 }

func (l2Objective) initScore(y []float64) []float64 {
	return []float64{floats.Sum(y) / float64(len(y))}
}

func (l2Objective) gradHess(raw, y, g, h []float64) {
	for i := range y {
		g[i] = raw[i] - y[i]
		h[i] = 1
	}
}

func (l2Objective) leafScale() float64 { return 1 }

// binaryObjective is log loss on a single logit.
type binaryObjective struct{}

func (binaryObjective) outputs() int { return 1 }

func (binaryObjective) initScore(y []float64) []float64 {
	p := floats.Sum(y) / float64(len(y))
	p = math.Min(math.Max(p, 1e-15), 1-1e-15)
	return []float64{math.Log(p / (1 - p))}
}

func (binaryObjective) gradHess(raw, y, g, h []float64) {
	for i := range y {
		p := sigmoid(raw[i])
		g[i] = p - y[i]
		h[i] = p * (1 - p)
	}
}

func (binaryObjective) leafScale() float64 { return 1 }

// softmaxObjective is multinomial deviance with one tree per class.
type softmaxObjective struct{ k int }

func (o softmaxObjective) outputs() int { return o.k }

func (o softmaxObjective) initScore(y []float64) []float64 {
	prior := make([]float64, o.k)
	for _, v := range y {
		prior[int(v)]++
	}
	for c := range prior {
		prior[c] = math.Log(math.Max(prior[c]/float64(len(y)), 1e-15))
	}
	return prior
}

func (o softmaxObjective) gradHess(raw, y, g, h []float64) {
	p := make([]float64, o.k)
	for i := range y {
		copy(p, raw[i*o.k:(i+1)*o.k])
		softmax(p)
		for c := 0; c < o.k; c++ {
			target := 0.0
			if int(y[i]) == c {
				target = 1
			}
			g[i*o.k+c] = p[c] - target
			h[i*o.k+c] = p[c] * (1 - p[c])
		}
	}
}

// (K-1)/K as in Friedman's multiclass gradient boosting.
func (o softmaxObjective) leafScale() float64 { return float64(o.k-1) / float64(o.k) }

// Booster holds the hyperparameters and fitted trees shared by both
// gradient boosting estimators. Each round grows one regression tree per
// output on the negative gradients, then replaces every leaf value with the
// Newton step -Σg / (Σh + RegLambda) over the training rows in that leaf.
type Booster struct {
	State *model.StateManager

	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Subsample       float64
	RegLambda       float64
	RandomState     int64

	InitScore []float64
	Trees     [][]*tree.Tree // [round][output]
	NOutputs  int

	progress func(done, total int)
}

func newBooster() Booster {
	return Booster{
		State:           model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Subsample:       1.0,
	}
}

// SetRandomState seeds row subsampling.
func (b *Booster) SetRandomState(seed int64) { b.RandomState = seed }

// SetProgress registers a callback invoked after each boosting round.
func (b *Booster) SetProgress(fn func(done, total int)) { b.progress = fn }

func (b *Booster) validate() error {
	if b.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", b.NEstimators)
	}
	if b.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be > 0", b.LearningRate)
	}
	if b.Subsample <= 0 || b.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", b.Subsample)
	}
	if b.RegLambda < 0 {
		return errors.NewValidationError("reg_lambda", "must be >= 0", b.RegLambda)
	}
	return nil
}

func (b *Booster) boost(X *mat.Dense, y []float64, obj objective) {
	n, _ := X.Dims()
	k := obj.outputs()
	b.NOutputs = k
	b.InitScore = obj.initScore(y)
	b.Trees = make([][]*tree.Tree, 0, b.NEstimators)

	raw := make([]float64, n*k)
	for i := 0; i < n; i++ {
		copy(raw[i*k:(i+1)*k], b.InitScore)
	}
	g := make([]float64, n*k)
	h := make([]float64, n*k)
	residual := make([]float64, n)
	leafOf := make([]int, n)

	cfg := tree.Config{
		Criterion:       tree.CriterionSquaredError,
		MaxDepth:        b.MaxDepth,
		MinSamplesSplit: b.MinSamplesSplit,
		MinSamplesLeaf:  b.MinSamplesLeaf,
	}
	rng := rand.New(rand.NewSource(b.RandomState))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for m := 0; m < b.NEstimators; m++ {
		rows := all
		if b.Subsample < 1 {
			size := int(math.Max(1, math.Round(b.Subsample*float64(n))))
			rows = rng.Perm(n)[:size]
			sort.Ints(rows)
		}
		obj.gradHess(raw, y, g, h)

		round := make([]*tree.Tree, k)
		for c := 0; c < k; c++ {
			for i := 0; i < n; i++ {
				residual[i] = -g[i*k+c]
			}
			t := tree.GrowRegressor(X, residual, rows, cfg, rng)

			sumG := make([]float64, len(t.Nodes))
			sumH := make([]float64, len(t.Nodes))
			for _, i := range rows {
				leaf := t.Apply(X.RawRowView(i))
				sumG[leaf] += g[i*k+c]
				sumH[leaf] += h[i*k+c]
			}
			for j := range t.Nodes {
				if !t.Nodes[j].IsLeaf() {
					continue
				}
				step := 0.0
				if denom := sumH[j] + b.RegLambda; denom > 1e-12 {
					step = -sumG[j] / denom * obj.leafScale()
				}
				t.Nodes[j].Value = []float64{step}
			}
			round[c] = t
		}

		// すべての出力の木が揃ってからスコアを更新する
		for c, t := range round {
			for i := 0; i < n; i++ {
				leafOf[i] = t.Apply(X.RawRowView(i))
				raw[i*k+c] += b.LearningRate * t.Nodes[leafOf[i]].Value[0]
			}
		}
		b.Trees = append(b.Trees, round)
		if b.progress != nil {
			b.progress(m+1, b.NEstimators)
		}
	}
}

// rawScores returns n×K raw scores for X.
func (b *Booster) rawScores(X mat.Matrix) []float64 {
	rows, cols := X.Dims()
	k := b.NOutputs
	raw := make([]float64, rows*k)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		copy(raw[i*k:(i+1)*k], b.InitScore)
		for _, round := range b.Trees {
			for c, t := range round {
				raw[i*k+c] += b.LearningRate * t.Value(row)[0]
			}
		}
	}
	return raw
}

func (b *Booster) params() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      b.NEstimators,
		"learning_rate":     b.LearningRate,
		"max_depth":         b.MaxDepth,
		"min_samples_split": b.MinSamplesSplit,
		"min_samples_leaf":  b.MinSamplesLeaf,
		"subsample":         b.Subsample,
		"reg_lambda":        b.RegLambda,
		"random_state":      b.RandomState,
	}
}

func (b *Booster) setters() map[string]model.ParamFunc {
	return map[string]model.ParamFunc{
		"n_estimators":      model.IntParam(&b.NEstimators),
		"learning_rate":     model.Positive(&b.LearningRate),
		"max_depth":         model.IntParam(&b.MaxDepth),
		"min_samples_split": model.IntParam(&b.MinSamplesSplit),
		"min_samples_leaf":  model.IntParam(&b.MinSamplesLeaf),
		"subsample":         model.Positive(&b.Subsample),
		"reg_lambda":        model.FloatParam(&b.RegLambda),
		"random_state":      model.Int64Param(&b.RandomState),
	}
}

// GradientBoostingRegressor boosts squared-error regression trees.
type GradientBoostingRegressor struct {
	Booster
}

func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{Booster: newBooster()}
}

func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkFit("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.validate(); err != nil {
		return err
	}
	target := make([]float64, rows)
	mat.Col(target, 0, y)
	gb.boost(mat.DenseCopyOf(X), target, l2Objective{})
	gb.State.SetFitted()
	gb.State.SetDimensions(cols, rows)
	return nil
}

func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.State.RequireFitted("GradientBoostingRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := gb.State.RequireFeatures("GradientBoostingRegressor.Predict", cols); err != nil {
		return nil, err
	}
	return mat.NewDense(rows, 1, gb.rawScores(X)), nil
}

func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} { return gb.params() }

func (gb *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("GradientBoostingRegressor", params, gb.setters())
}

func (gb *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d)",
		gb.NEstimators, gb.LearningRate, gb.MaxDepth)
}

// GradientBoostingClassifier uses log loss for two classes and multinomial
// deviance (one tree per class and round) otherwise.
type GradientBoostingClassifier struct {
	Booster
	NClasses int
}

func NewGradientBoostingClassifier() *GradientBoostingClassifier {
	return &GradientBoostingClassifier{Booster: newBooster()}
}

func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkFit("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.validate(); err != nil {
		return err
	}
	labels, k, err := model.ClassLabels("GradientBoostingClassifier.Fit", y)
	if err != nil {
		return err
	}
	target := make([]float64, rows)
	for i, l := range labels {
		target[i] = float64(l)
	}

	var obj objective = binaryObjective{}
	if k > 2 {
		obj = softmaxObjective{k: k}
	}
	gb.boost(mat.DenseCopyOf(X), target, obj)
	gb.NClasses = k
	gb.State.SetFitted()
	gb.State.SetDimensions(cols, rows)
	return nil
}

func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.State.RequireFitted("GradientBoostingClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := gb.State.RequireFeatures("GradientBoostingClassifier.PredictProba", cols); err != nil {
		return nil, err
	}
	raw := gb.rawScores(X)
	out := mat.NewDense(rows, gb.NClasses, nil)
	for i := 0; i < rows; i++ {
		if gb.NClasses == 2 {
			p := sigmoid(raw[i])
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		z := raw[i*gb.NOutputs : (i+1)*gb.NOutputs]
		softmax(z)
		out.SetRow(i, z)
	}
	return out, nil
}

func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.PredictFromProba(proba), nil
}

func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} { return gb.params() }

func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("GradientBoostingClassifier", params, gb.setters())
}

func (gb *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, learning_rate=%g, max_depth=%d)",
		gb.NEstimators, gb.LearningRate, gb.MaxDepth)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(z []float64) {
	m := floats.Max(z)
	var s float64
	for i, v := range z {
		z[i] = math.Exp(v - m)
		s += z[i]
	}
	floats.Scale(1/s, z)
}
