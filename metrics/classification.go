package metrics

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

func checkLabels(op string, yTrue, yPred []string) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred []string) (float64, error) {
	if err := checkLabels("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// Labels は yTrue と yPred に現れるラベルの和集合をソートして返す。
// 数値として解釈できるラベルだけの場合は数値順に並べる。
func Labels(yTrue, yPred []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range [][]string{yTrue, yPred} {
		for _, v := range s {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	numeric := true
	vals := make(map[string]float64, len(out))
	for _, v := range out {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			break
		}
		vals[v] = f
	}
	if numeric {
		sort.Slice(out, func(i, j int) bool { return vals[out[i]] < vals[out[j]] })
	} else {
		sort.Strings(out)
	}
	return out
}

// ConfusionMatrix は混同行列を返す。行が正解、列が予測で、順序は labels に従う。
// labels にないラベルは無視される。
func ConfusionMatrix(yTrue, yPred, labels []string) (*mat.Dense, error) {
	if err := checkLabels("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "no labels")
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := range yTrue {
		r, ok1 := index[yTrue[i]]
		c, ok2 := index[yPred[i]]
		if ok1 && ok2 {
			cm.Set(r, c, cm.At(r, c)+1)
		}
	}
	return cm, nil
}

// F1PerClass はクラスごとの F1 スコア 2TP/(2TP+FP+FN) を返す。
// 分母が 0 のクラスは 0 とし UndefinedMetricWarning を発行する。
func F1PerClass(yTrue, yPred, labels []string) ([]float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	k := len(labels)
	f1 := make([]float64, k)
	for c := 0; c < k; c++ {
		tp := cm.At(c, c)
		var fp, fn float64
		for j := 0; j < k; j++ {
			if j == c {
				continue
			}
			fp += cm.At(j, c)
			fn += cm.At(c, j)
		}
		denom := 2*tp + fp + fn
		if denom == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("f1_score",
				"no true or predicted samples of label "+strconv.Quote(labels[c]), 0))
			continue
		}
		f1[c] = 2 * tp / denom
	}
	return f1, nil
}

// MacroF1 はクラスごとの F1 の単純平均を計算する
func MacroF1(yTrue, yPred []string) (float64, error) {
	if err := checkLabels("MacroF1", yTrue, yPred); err != nil {
		return 0, err
	}
	f1, err := F1PerClass(yTrue, yPred, Labels(yTrue, yPred))
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range f1 {
		sum += v
	}
	return sum / float64(len(f1)), nil
}

// ClassificationScores は分類の評価指標一式
type ClassificationScores struct {
	Accuracy  float64     `json:"accuracy" yaml:"accuracy"`
	MacroF1   float64     `json:"f1_macro" yaml:"f1_macro"`
	Labels    []string    `json:"labels" yaml:"labels"`
	Confusion [][]float64 `json:"confusion" yaml:"confusion"`
}

// Map は指標名をキーとするマップを返す
func (s ClassificationScores) Map() map[string]float64 {
	return map[string]float64{AccuracyName: s.Accuracy, MacroF1Name: s.MacroF1}
}

// EvaluateClassification はラベルの予測を評価する。数値ラベルは Value の表記で比較する。
func EvaluateClassification(yTrue, yPred *frame.Series) (ClassificationScores, error) {
	t, p := yTrue.Values(), yPred.Values()
	var s ClassificationScores
	var err error
	if s.Accuracy, err = Accuracy(t, p); err != nil {
		return ClassificationScores{}, err
	}
	if s.MacroF1, err = MacroF1(t, p); err != nil {
		return ClassificationScores{}, err
	}
	s.Labels = Labels(t, p)
	cm, err := ConfusionMatrix(t, p, s.Labels)
	if err != nil {
		return ClassificationScores{}, err
	}
	r, _ := cm.Dims()
	s.Confusion = make([][]float64, r)
	for i := range s.Confusion {
		s.Confusion[i] = mat.Row(nil, i, cm)
	}
	return s, nil
}
