package linear_model

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func init() {
	gob.Register(&LinearRegression{})
	gob.Register(&LogisticRegression{})
}

// rcond は SVD の打ち切り閾値（最大特異値に対する比）
const rcond = 1e-12

// LinearRegression is ordinary least squares solved through a thin SVD.
// Rank-deficient designs (for example one-hot columns next to an intercept)
// get the minimum-norm solution, as scikit-learn's lstsq does.
type LinearRegression struct {
	State *model.StateManager

	// Hyperparameters
	FitIntercept bool

	// Learned parameters
	Coef      []float64
	Intercept float64
	Rank      int
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return errors.WithStack(errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}

	XWork := mat.DenseCopyOf(X)
	yWork := make([]float64, rows)
	mat.Col(yWork, 0, y)

	// 切片は中心化で処理する: coef を中心化データで解き、intercept = ȳ - x̄·coef
	xMean := make([]float64, cols)
	var yMean float64
	if lr.FitIntercept {
		col := make([]float64, rows)
		for j := 0; j < cols; j++ {
			mat.Col(col, j, XWork)
			xMean[j] = floats.Sum(col) / float64(rows)
			for i := 0; i < rows; i++ {
				XWork.Set(i, j, col[i]-xMean[j])
			}
		}
		yMean = floats.Sum(yWork) / float64(rows)
		floats.AddConst(-yMean, yWork)
	}

	var svd mat.SVD
	if ok := svd.Factorize(XWork, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "svd", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		// 全列が定数: 係数 0、切片は平均値
		lr.Coef = make([]float64, cols)
		lr.Intercept = yMean
		lr.Rank = 0
		lr.markFitted(cols, rows)
		return nil
	}

	var coef mat.Dense
	svd.SolveTo(&coef, mat.NewDense(rows, 1, yWork), rank)

	lr.Coef = make([]float64, cols)
	mat.Col(lr.Coef, 0, &coef)
	lr.Intercept = 0
	if lr.FitIntercept {
		lr.Intercept = yMean - floats.Dot(xMean, lr.Coef)
	}
	lr.Rank = rank

	if err := errors.CheckScalar("LinearRegression.Fit", lr.Intercept, 0); err != nil {
		return err
	}
	lr.markFitted(cols, rows)
	return nil
}

func (lr *LinearRegression) markFitted(nFeatures, nSamples int) {
	lr.State.SetFitted()
	lr.State.SetDimensions(nFeatures, nSamples)
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	if err := lr.State.RequireFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		predictions.Set(i, 0, lr.Intercept+floats.Dot(row, lr.Coef))
	}
	return predictions, nil
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("LinearRegression", params, map[string]model.ParamFunc{
		"fit_intercept": model.BoolParam(&lr.FitIntercept),
	})
}

// ExportWeights はモデルの重みをエクスポート
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.State.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := lr.State.GetDimensions()

	coef := make([]float64, len(lr.Coef))
	copy(coef, lr.Coef)
	weights := &model.ModelWeights{
		ModelType:       "LinearRegression",
		Version:         weightsVersion,
		Coefficients:    coef,
		Intercept:       lr.Intercept,
		IsFitted:        true,
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"rank":       lr.Rank,
		},
	}
	weights.Metadata["checksum"] = checksum(coef)
	return weights, nil
}

// ImportWeights restores a model exported by ExportWeights and verifies its
// checksum.
func (lr *LinearRegression) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights cannot be nil")
	}
	if weights.ModelType != "LinearRegression" {
		return errors.NewValueError("LinearRegression.ImportWeights",
			fmt.Sprintf("model type mismatch: expected LinearRegression, got %s", weights.ModelType))
	}
	if err := weights.Validate(); err != nil {
		return err
	}
	if sum, ok := weights.Metadata["checksum"].(string); ok && sum != checksum(weights.Coefficients) {
		return errors.NewValueError("LinearRegression.ImportWeights", "checksum mismatch: weights may be corrupted")
	}
	if err := lr.SetParams(weights.Hyperparameters); err != nil {
		return err
	}

	lr.Coef = make([]float64, len(weights.Coefficients))
	copy(lr.Coef, weights.Coefficients)
	lr.Intercept = weights.Intercept
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.markFitted(len(lr.Coef), 0)
	return nil
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
}

const weightsVersion = "1.0.0"

func checksum(values []float64) string {
	data, _ := json.Marshal(values)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
