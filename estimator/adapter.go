package estimator

import (
	"encoding/gob"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func init() {
	gob.Register(&Regressor{})
	gob.Register(&Classifier{})
}

// Estimator is a frame-level estimator resolved from the registry.
type Estimator interface {
	model.Estimator
	// EstimatorID is the registry identifier.
	EstimatorID() string
	Problem() Problem
}

// Regressor fits a matrix model on an all-numeric frame.
type Regressor struct {
	ID       string
	Model    model.MatrixModel
	Features []string
	Target   string
}

func (r *Regressor) EstimatorID() string { return r.ID }
func (r *Regressor) Problem() Problem    { return Regression }

// SetProgress forwards to ensembles that report progress.
func (r *Regressor) SetProgress(fn func(done, total int)) {
	if pr, ok := r.Model.(model.ProgressReporter); ok {
		pr.SetProgress(fn)
	}
}

func (r *Regressor) Fit(X *frame.Frame, y *frame.Series) error {
	if y == nil {
		return errors.NewValueError(r.ID+".Fit", "a target is required")
	}
	if !y.IsNumeric() {
		return errors.NewValueError(r.ID+".Fit",
			"target '"+y.Name+"' is categorical; choose a classification estimator")
	}
	if y.MissingCount() > 0 {
		return errors.NewValueError(r.ID+".Fit", "target '"+y.Name+"' has missing values")
	}
	if y.Len() != X.NRows() {
		return errors.NewDimensionError(r.ID+".Fit", X.NRows(), y.Len(), 0)
	}
	data, err := denseInput(r.ID+".Fit", X)
	if err != nil {
		return err
	}
	if err := r.Model.Fit(data, mat.NewDense(y.Len(), 1, append([]float64(nil), y.Floats...))); err != nil {
		return errors.Wrapf(err, "%s fit", r.ID)
	}
	r.Features = X.Names()
	r.Target = y.Name
	return nil
}

func (r *Regressor) Predict(X *frame.Frame) (*frame.Series, error) {
	if r.Features == nil {
		return nil, errors.NewNotFittedError(r.ID, "Predict")
	}
	data, err := alignedInput(r.ID+".Predict", X, r.Features)
	if err != nil {
		return nil, err
	}
	pred, err := r.Model.Predict(data)
	if err != nil {
		return nil, err
	}
	out := make([]float64, X.NRows())
	mat.Col(out, 0, pred)
	return frame.NewNumeric(r.Target, out), nil
}

// Weights exports linear model weights annotated with feature names.
func (r *Regressor) Weights() (*model.ModelWeights, error) {
	return exportWeights(r.ID, r.Model, r.Features, nil)
}

// Importances returns impurity importances keyed by feature when the model
// is tree based.
func (r *Regressor) Importances() (map[string]float64, bool) {
	return importances(r.Model, r.Features)
}

// Classifier label-encodes the target (sorted distinct values) before
// fitting and decodes predictions back to the original labels.
type Classifier struct {
	ID       string
	Model    model.MatrixClassifier
	Features []string
	Target   string
	Classes  []string
	// NumericTarget restores numeric predictions for numeric targets.
	NumericTarget bool
}

func (c *Classifier) EstimatorID() string { return c.ID }
func (c *Classifier) Problem() Problem    { return Classification }

func (c *Classifier) SetProgress(fn func(done, total int)) {
	if pr, ok := c.Model.(model.ProgressReporter); ok {
		pr.SetProgress(fn)
	}
}

func (c *Classifier) Fit(X *frame.Frame, y *frame.Series) error {
	if y == nil {
		return errors.NewValueError(c.ID+".Fit", "a target is required")
	}
	if y.MissingCount() > 0 {
		return errors.NewValueError(c.ID+".Fit", "target '"+y.Name+"' has missing values")
	}
	if y.Len() != X.NRows() {
		return errors.NewDimensionError(c.ID+".Fit", X.NRows(), y.Len(), 0)
	}
	classes := y.Unique()
	if len(classes) < 2 {
		return errors.NewValueError(c.ID+".Fit", "target '"+y.Name+"' needs at least 2 classes")
	}
	index := make(map[string]int, len(classes))
	for i, cl := range classes {
		index[cl] = i
	}
	encoded := make([]float64, y.Len())
	for i := range encoded {
		encoded[i] = float64(index[y.Value(i)])
	}

	data, err := denseInput(c.ID+".Fit", X)
	if err != nil {
		return err
	}
	if err := c.Model.Fit(data, mat.NewDense(len(encoded), 1, encoded)); err != nil {
		return errors.Wrapf(err, "%s fit", c.ID)
	}
	c.Features = X.Names()
	c.Target = y.Name
	c.Classes = classes
	c.NumericTarget = y.IsNumeric()
	return nil
}

func (c *Classifier) Predict(X *frame.Frame) (*frame.Series, error) {
	if c.Features == nil {
		return nil, errors.NewNotFittedError(c.ID, "Predict")
	}
	data, err := alignedInput(c.ID+".Predict", X, c.Features)
	if err != nil {
		return nil, err
	}
	pred, err := c.Model.Predict(data)
	if err != nil {
		return nil, err
	}
	n := X.NRows()
	if c.NumericTarget {
		out := make([]float64, n)
		for i := range out {
			v, perr := strconv.ParseFloat(c.Classes[int(pred.At(i, 0))], 64)
			if perr != nil {
				return nil, errors.Wrap(perr, "decode class label")
			}
			out[i] = v
		}
		return frame.NewNumeric(c.Target, out), nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = c.Classes[int(pred.At(i, 0))]
	}
	return frame.NewCategorical(c.Target, out), nil
}

// PredictProba returns one numeric column per class, named by the class label.
func (c *Classifier) PredictProba(X *frame.Frame) (*frame.Frame, error) {
	if c.Features == nil {
		return nil, errors.NewNotFittedError(c.ID, "PredictProba")
	}
	data, err := alignedInput(c.ID+".PredictProba", X, c.Features)
	if err != nil {
		return nil, err
	}
	proba, err := c.Model.PredictProba(data)
	if err != nil {
		return nil, err
	}
	return frame.FromDense(c.Classes, proba)
}

func (c *Classifier) Weights() (*model.ModelWeights, error) {
	return exportWeights(c.ID, c.Model, c.Features, c.Classes)
}

func (c *Classifier) Importances() (map[string]float64, bool) {
	return importances(c.Model, c.Features)
}

func denseInput(op string, X *frame.Frame) (*mat.Dense, error) {
	data, err := X.Dense()
	if err != nil {
		return nil, err
	}
	if err := errors.CheckFinite(op, data); err != nil {
		return nil, err
	}
	return data, nil
}

// alignedInput reorders X to the fitted feature order.
func alignedInput(op string, X *frame.Frame, features []string) (*mat.Dense, error) {
	if missing := X.Missing(features...); len(missing) > 0 {
		return nil, errors.NewMissingColumnError(op, missing...)
	}
	sel, err := X.Select(features...)
	if err != nil {
		return nil, err
	}
	return denseInput(op, sel)
}

func exportWeights(id string, m interface{}, features, classes []string) (*model.ModelWeights, error) {
	we, ok := m.(model.WeightExporter)
	if !ok {
		return nil, errors.NewValueError(id+".Weights", "estimator has no linear weights")
	}
	w, err := we.ExportWeights()
	if err != nil {
		return nil, err
	}
	w.Features = append([]string(nil), features...)
	w.Classes = append([]string(nil), classes...)
	return w, nil
}

func importances(m interface{}, features []string) (map[string]float64, bool) {
	var values []float64
	switch im := m.(type) {
	case interface{ Importances() []float64 }:
		values = im.Importances()
	case interface{ GetFeatureImportances() []float64 }:
		values = im.GetFeatureImportances()
	default:
		return nil, false
	}
	if len(values) != len(features) {
		return nil, false
	}
	out := make(map[string]float64, len(features))
	for i, f := range features {
		out[f] = values[i]
	}
	return out, true
}
