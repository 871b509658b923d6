package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// LogisticRegression はL2正則化付きロジスティック回帰分類器
//
// 2クラスではシグモイド、3クラス以上では多項（softmax）損失を L-BFGS で最小化する。
// 目的関数は scikit-learn と同じ C·Σloss + ½‖w‖² （切片は正則化しない）。
// ラベルは 0..k-1 にエンコード済みであること。
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // Inverse of regularization strength
	FitIntercept bool
	MaxIter      int
	Tol          float64

	// Learned parameters: Coef は k×p（2クラスでは 1×p）
	Coef       [][]float64
	Intercept  []float64
	NClasses   int
	Iterations int
}

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// WithLRPenalty sets the penalty ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Penalty = penalty }
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("LogisticRegression.Fit", rows, yRows, 0)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be > 0", lr.C)
	}
	labels, k, err := model.ClassLabels("LogisticRegression.Fit", y)
	if err != nil {
		return err
	}

	data := mat.DenseCopyOf(X)
	obj := &logisticObjective{
		X:         data,
		labels:    labels,
		k:         k,
		p:         cols,
		intercept: lr.FitIntercept,
	}
	if lr.Penalty != "none" {
		obj.alpha = 1 / (lr.C * float64(rows))
	}

	nOut := 1
	if k > 2 {
		nOut = k
	}
	x0 := make([]float64, nOut*(cols+1))

	settings := &optimize.Settings{
		GradientThreshold: lr.Tol,
		MajorIterations:   lr.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 20,
		},
	}
	result, err := optimize.Minimize(optimize.Problem{Func: obj.Func, Grad: obj.Grad}, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization", err)
	}
	if err != nil || result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations,
			fmt.Sprintf("status %v; increase max_iter or scale the data", result.Status)))
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewNumericalInstabilityError("LogisticRegression.Fit", result.X, result.Stats.MajorIterations)
		}
	}

	lr.Coef = make([][]float64, nOut)
	lr.Intercept = make([]float64, nOut)
	for c := 0; c < nOut; c++ {
		off := c * (cols + 1)
		lr.Coef[c] = append([]float64(nil), result.X[off:off+cols]...)
		lr.Intercept[c] = result.X[off+cols]
	}
	lr.NClasses = k
	lr.Iterations = result.Stats.MajorIterations
	lr.State.SetFitted()
	lr.State.SetDimensions(cols, rows)
	return nil
}

// PredictProba returns class probabilities (n×k)
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := lr.State.RequireFeatures("LogisticRegression.PredictProba", cols); err != nil {
		return nil, err
	}

	proba := mat.NewDense(rows, lr.NClasses, nil)
	row := make([]float64, cols)
	z := make([]float64, len(lr.Coef))
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		for c := range lr.Coef {
			z[c] = floats.Dot(row, lr.Coef[c]) + lr.Intercept[c]
		}
		if lr.NClasses == 2 {
			p := sigmoid(z[0])
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
			continue
		}
		softmax(z)
		proba.SetRow(i, z)
	}
	return proba, nil
}

// Predict returns the class index with the highest probability (n×1)
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.PredictFromProba(proba), nil
}

// GetParams returns the hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams sets the hyperparameters; unknown keys are rejected
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("LogisticRegression", params, map[string]model.ParamFunc{
		"penalty":       model.StringParam(&lr.Penalty, "l2", "none"),
		"C":             model.Positive(&lr.C),
		"fit_intercept": model.BoolParam(&lr.FitIntercept),
		"max_iter":      model.IntParam(&lr.MaxIter),
		"tol":           model.Positive(&lr.Tol),
	})
}

// ExportWeights はクラスごとの係数を連結して書き出す
func (lr *LogisticRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.State.RequireFitted("LogisticRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	var coef []float64
	for _, c := range lr.Coef {
		coef = append(coef, c...)
	}
	nFeatures, nSamples := lr.State.GetDimensions()
	return &model.ModelWeights{
		ModelType:       "LogisticRegression",
		Version:         weightsVersion,
		Coefficients:    coef,
		Intercept:       lr.Intercept[0],
		Intercepts:      append([]float64(nil), lr.Intercept...),
		IsFitted:        true,
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"n_classes":  lr.NClasses,
			"n_iter":     lr.Iterations,
			"checksum":   checksum(coef),
		},
	}, nil
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, max_iter=%d)", lr.Penalty, lr.C, lr.MaxIter)
}

// logisticObjective は平均対数損失 + alpha/2·‖w‖²
// パラメータはクラスごとに [w_1..w_p, b] を並べたもの
type logisticObjective struct {
	X         *mat.Dense
	labels    []int
	k, p      int
	alpha     float64
	intercept bool
}

func (o *logisticObjective) nOut() int {
	if o.k == 2 {
		return 1
	}
	return o.k
}

func (o *logisticObjective) scores(x []float64, row []float64, z []float64) {
	for c := range z {
		off := c * (o.p + 1)
		z[c] = floats.Dot(row, x[off:off+o.p])
		if o.intercept {
			z[c] += x[off+o.p]
		}
	}
}

func (o *logisticObjective) Func(x []float64) float64 {
	n, _ := o.X.Dims()
	z := make([]float64, o.nOut())
	var loss float64
	for i := 0; i < n; i++ {
		o.scores(x, o.X.RawRowView(i), z)
		if o.k == 2 {
			yi := float64(o.labels[i])
			loss += softplus(z[0]) - yi*z[0]
			continue
		}
		loss += logSumExp(z) - z[o.labels[i]]
	}
	loss /= float64(n)
	return loss + o.penalty(x)
}

func (o *logisticObjective) Grad(grad, x []float64) {
	n, _ := o.X.Dims()
	for i := range grad {
		grad[i] = 0
	}
	z := make([]float64, o.nOut())
	for i := 0; i < n; i++ {
		row := o.X.RawRowView(i)
		o.scores(x, row, z)
		if o.k == 2 {
			z[0] = sigmoid(z[0]) - float64(o.labels[i])
		} else {
			softmax(z)
			z[o.labels[i]]--
		}
		for c, r := range z {
			off := c * (o.p + 1)
			floats.AddScaled(grad[off:off+o.p], r, row)
			if o.intercept {
				grad[off+o.p] += r
			}
		}
	}
	floats.Scale(1/float64(n), grad)
	if o.alpha > 0 {
		for c := 0; c < o.nOut(); c++ {
			off := c * (o.p + 1)
			floats.AddScaled(grad[off:off+o.p], o.alpha, x[off:off+o.p])
		}
	}
}

func (o *logisticObjective) penalty(x []float64) float64 {
	if o.alpha == 0 {
		return 0
	}
	var sq float64
	for c := 0; c < o.nOut(); c++ {
		off := c * (o.p + 1)
		w := x[off : off+o.p]
		sq += floats.Dot(w, w)
	}
	return 0.5 * o.alpha * sq
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus = log(1+exp(z)) without overflow
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

func logSumExp(z []float64) float64 {
	m := floats.Max(z)
	var s float64
	for _, v := range z {
		s += math.Exp(v - m)
	}
	return m + math.Log(s)
}

// softmax は z をその場で確率に置き換える
func softmax(z []float64) {
	m := floats.Max(z)
	var s float64
	for i, v := range z {
		z[i] = math.Exp(v - m)
		s += z[i]
	}
	floats.Scale(1/s, z)
}
