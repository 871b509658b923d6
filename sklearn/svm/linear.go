// Package svm provides linear support vector machines trained with L-BFGS
// on the squared hinge (classification) and squared epsilon-insensitive
// (regression) losses. Kernel machines are not implemented.
package svm

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func init() {
	gob.Register(&LinearSVC{})
	gob.Register(&LinearSVR{})
}

// primal is 1/n·Σ loss(r_i) + alpha/2·‖w‖² over parameters [w_1..w_p, b].
// loss returns the per-sample loss and its derivative with respect to the
// decision value z_i.
type primal struct {
	X         *mat.Dense
	alpha     float64
	intercept bool
	loss      func(i int, z float64) (float64, float64)
}

func (o *primal) decision(x, row []float64) float64 {
	p := len(row)
	z := floats.Dot(row, x[:p])
	if o.intercept {
		z += x[p]
	}
	return z
}

func (o *primal) Func(x []float64) float64 {
	n, p := o.X.Dims()
	var total float64
	for i := 0; i < n; i++ {
		l, _ := o.loss(i, o.decision(x, o.X.RawRowView(i)))
		total += l
	}
	w := x[:p]
	return total/float64(n) + 0.5*o.alpha*floats.Dot(w, w)
}

func (o *primal) Grad(grad, x []float64) {
	n, p := o.X.Dims()
	for i := range grad {
		grad[i] = 0
	}
	for i := 0; i < n; i++ {
		row := o.X.RawRowView(i)
		_, d := o.loss(i, o.decision(x, row))
		if d == 0 {
			continue
		}
		floats.AddScaled(grad[:p], d, row)
		if o.intercept {
			grad[p] += d
		}
	}
	floats.Scale(1/float64(n), grad)
	floats.AddScaled(grad[:p], o.alpha, x[:p])
}

// solve minimizes o from zero and returns [w, b].
func solve(op string, o *primal, p, maxIter int, tol float64) ([]float64, error) {
	settings := &optimize.Settings{
		GradientThreshold: tol,
		MajorIterations:   maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 20,
		},
	}
	result, err := optimize.Minimize(optimize.Problem{Func: o.Func, Grad: o.Grad},
		make([]float64, p+1), settings, &optimize.LBFGS{})
	if result == nil {
		return nil, errors.NewModelError(op, "optimization", err)
	}
	if err != nil || result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations,
			fmt.Sprintf("status %v; increase max_iter or scale the data", result.Status)))
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewNumericalInstabilityError(op, result.X, result.Stats.MajorIterations)
		}
	}
	return result.X, nil
}

// LinearSVC is a one-vs-rest linear classifier with squared hinge loss,
// matching scikit-learn's LinearSVC defaults (C=1, l2 penalty).
type LinearSVC struct {
	State *model.StateManager

	C            float64
	MaxIter      int
	Tol          float64
	FitIntercept bool

	Coef      [][]float64 // 1×p for two classes, k×p otherwise
	Intercept []float64
	NClasses  int
}

func NewLinearSVC() *LinearSVC {
	return &LinearSVC{
		State:        model.NewStateManager(),
		C:            1.0,
		MaxIter:      1000,
		Tol:          1e-4,
		FitIntercept: true,
	}
}

func (s *LinearSVC) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if yRows, _ := y.Dims(); yRows != rows {
		return errors.NewDimensionError("LinearSVC.Fit", rows, yRows, 0)
	}
	labels, k, err := model.ClassLabels("LinearSVC.Fit", y)
	if err != nil {
		return err
	}

	data := mat.DenseCopyOf(X)
	nOut := k
	if k == 2 {
		nOut = 1
	}
	s.Coef = make([][]float64, nOut)
	s.Intercept = make([]float64, nOut)
	sign := make([]float64, rows)
	for c := 0; c < nOut; c++ {
		positive := c
		if k == 2 {
			positive = 1
		}
		for i, l := range labels {
			sign[i] = -1
			if l == positive {
				sign[i] = 1
			}
		}
		o := &primal{
			X:         data,
			alpha:     1 / (s.C * float64(rows)),
			intercept: s.FitIntercept,
			loss: func(i int, z float64) (float64, float64) {
				m := 1 - sign[i]*z
				if m <= 0 {
					return 0, 0
				}
				return m * m, -2 * m * sign[i]
			},
		}
		x, err := solve("LinearSVC.Fit", o, cols, s.MaxIter, s.Tol)
		if err != nil {
			return err
		}
		s.Coef[c] = x[:cols]
		s.Intercept[c] = x[cols]
	}
	s.NClasses = k
	s.State.SetFitted()
	s.State.SetDimensions(cols, rows)
	return nil
}

// DecisionFunction returns signed distances (n×1 for two classes, n×k otherwise).
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("LinearSVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := s.State.RequireFeatures("LinearSVC.DecisionFunction", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, len(s.Coef), nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		for c, w := range s.Coef {
			out.Set(i, c, floats.Dot(row, w)+s.Intercept[c])
		}
	}
	return out, nil
}

// PredictProba maps decision values through a sigmoid (two classes) or a
// softmax (one-vs-rest). The scores are not calibrated probabilities.
func (s *LinearSVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	rows, _ := dec.Dims()
	out := mat.NewDense(rows, s.NClasses, nil)
	for i := 0; i < rows; i++ {
		if s.NClasses == 2 {
			p := 1 / (1 + math.Exp(-dec.At(i, 0)))
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		z := mat.Row(nil, i, dec)
		m := floats.Max(z)
		for c := range z {
			z[c] = math.Exp(z[c] - m)
		}
		floats.Scale(1/floats.Sum(z), z)
		out.SetRow(i, z)
	}
	return out, nil
}

func (s *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := s.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.PredictFromProba(proba), nil
}

func (s *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             s.C,
		"max_iter":      s.MaxIter,
		"tol":           s.Tol,
		"fit_intercept": s.FitIntercept,
	}
}

func (s *LinearSVC) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("LinearSVC", params, map[string]model.ParamFunc{
		"C":             model.Positive(&s.C),
		"max_iter":      model.IntParam(&s.MaxIter),
		"tol":           model.Positive(&s.Tol),
		"fit_intercept": model.BoolParam(&s.FitIntercept),
	})
}

func (s *LinearSVC) String() string {
	return fmt.Sprintf("LinearSVC(C=%g, max_iter=%d)", s.C, s.MaxIter)
}

// LinearSVR minimizes the squared epsilon-insensitive loss
// max(0, |y - z| - epsilon)² with an l2 penalty.
type LinearSVR struct {
	State *model.StateManager

	C            float64
	Epsilon      float64
	MaxIter      int
	Tol          float64
	FitIntercept bool

	Coef      []float64
	Intercept float64
}

func NewLinearSVR() *LinearSVR {
	return &LinearSVR{
		State:        model.NewStateManager(),
		C:            1.0,
		MaxIter:      1000,
		Tol:          1e-4,
		FitIntercept: true,
	}
}

func (s *LinearSVR) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return errors.NewDimensionError("LinearSVR.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearSVR.Fit", 1, yCols, 1)
	}
	if s.Epsilon < 0 {
		return errors.NewValidationError("epsilon", "must be >= 0", s.Epsilon)
	}

	target := make([]float64, rows)
	mat.Col(target, 0, y)
	o := &primal{
		X:         mat.DenseCopyOf(X),
		alpha:     1 / (s.C * float64(rows)),
		intercept: s.FitIntercept,
		loss: func(i int, z float64) (float64, float64) {
			r := target[i] - z
			m := math.Abs(r) - s.Epsilon
			if m <= 0 {
				return 0, 0
			}
			if r > 0 {
				return m * m, -2 * m
			}
			return m * m, 2 * m
		},
	}
	x, err := solve("LinearSVR.Fit", o, cols, s.MaxIter, s.Tol)
	if err != nil {
		return err
	}
	s.Coef = x[:cols]
	s.Intercept = x[cols]
	s.State.SetFitted()
	s.State.SetDimensions(cols, rows)
	return nil
}

func (s *LinearSVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("LinearSVR", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := s.State.RequireFeatures("LinearSVR.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, floats.Dot(row, s.Coef)+s.Intercept)
	}
	return out, nil
}

func (s *LinearSVR) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             s.C,
		"epsilon":       s.Epsilon,
		"max_iter":      s.MaxIter,
		"tol":           s.Tol,
		"fit_intercept": s.FitIntercept,
	}
}

func (s *LinearSVR) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("LinearSVR", params, map[string]model.ParamFunc{
		"C":             model.Positive(&s.C),
		"epsilon":       model.FloatParam(&s.Epsilon),
		"max_iter":      model.IntParam(&s.MaxIter),
		"tol":           model.Positive(&s.Tol),
		"fit_intercept": model.BoolParam(&s.FitIntercept),
	})
}

func (s *LinearSVR) String() string {
	return fmt.Sprintf("LinearSVR(C=%g, epsilon=%g)", s.C, s.Epsilon)
}
