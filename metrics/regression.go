// Package metrics は学習済みパイプラインの評価指標を計算する。
//
// 回帰は R², MSE, RMSE, MAE、分類は正解率とマクロ F1 を提供する。
// 入力は予測と同じ長さのスライス、または frame.Series。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// 指標名（レポートと JSON のキー）
const (
	R2Name       = "r2"
	MSEName      = "mse"
	RMSEName     = "rmse"
	MAEName      = "mae"
	AccuracyName = "accuracy"
	MacroF1Name  = "f1_macro"
)

func checkPair(op string, yTrue, yPred []float64) error {
	n := len(yTrue)
	if n == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != n {
		return errors.NewDimensionError(op, n, len(yPred), 0)
	}
	for i := range yTrue {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			return errors.NewValueError(op, "input contains NaN")
		}
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}
	// MSE = (1/n) * ‖yTrue - yPred‖²
	d := floats.Distance(yTrue, yPred, 2)
	return d * d / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue が定数の場合 R² は定義されない。scikit-learn と同様に、完全一致なら
// 1、それ以外は 0 を返し UndefinedMetricWarning を発行する。
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	mean := stat.Mean(yTrue, nil)
	var tss, rss float64
	for i, v := range yTrue {
		tss += (v - mean) * (v - mean)
		rss += (v - yPred[i]) * (v - yPred[i])
	}
	if tss == 0 {
		score := 0.0
		if rss == 0 {
			score = 1
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2_score", "yTrue is constant", score))
		return score, nil
	}
	return 1 - rss/tss, nil
}

// RegressionScores は回帰の評価指標一式
type RegressionScores struct {
	R2   float64 `json:"r2" yaml:"r2"`
	MSE  float64 `json:"mse" yaml:"mse"`
	RMSE float64 `json:"rmse" yaml:"rmse"`
	MAE  float64 `json:"mae" yaml:"mae"`
}

// Map は指標名をキーとするマップを返す
func (s RegressionScores) Map() map[string]float64 {
	return map[string]float64{R2Name: s.R2, MSEName: s.MSE, RMSEName: s.RMSE, MAEName: s.MAE}
}

// EvaluateRegression は数値ターゲットの予測を評価する
func EvaluateRegression(yTrue, yPred *frame.Series) (RegressionScores, error) {
	if !yTrue.IsNumeric() || !yPred.IsNumeric() {
		return RegressionScores{}, errors.NewValueError("EvaluateRegression", "regression metrics need numeric series")
	}
	var s RegressionScores
	var err error
	if s.R2, err = R2Score(yTrue.Floats, yPred.Floats); err != nil {
		return RegressionScores{}, err
	}
	if s.MSE, err = MSE(yTrue.Floats, yPred.Floats); err != nil {
		return RegressionScores{}, err
	}
	s.RMSE = math.Sqrt(s.MSE)
	if s.MAE, err = MAE(yTrue.Floats, yPred.Floats); err != nil {
		return RegressionScores{}, err
	}
	return s, nil
}
