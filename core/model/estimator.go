package model

import "gonum.org/v1/gonum/mat"

// Fitter は行列入力で学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は行列入力で予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n×1 行列）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// MatrixModel は sklearn 配下の推定器が実装する基本インターフェース。
// フレーム上の Estimator とはアダプタを介して接続される。
type MatrixModel interface {
	Fitter
	Predictor
}

// MatrixClassifier は整数エンコードされたクラスラベル (0..k-1) で学習する分類器
type MatrixClassifier interface {
	MatrixModel
	// PredictProba は各クラスの確率を返す（n×k 行列）
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// WeightExporter は学習済みの重みを ModelWeights として書き出せるモデル
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
}
