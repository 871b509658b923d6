// Package report evaluates a finished run and renders its summary and plots.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/metrics"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
	"github.com/YuminosukeSato/mlplayground/run"
)

// Scores holds the metrics of one partition. Exactly one field is set,
// according to the problem type.
type Scores struct {
	Regression     *metrics.RegressionScores     `json:"regression,omitempty" yaml:"regression,omitempty"`
	Classification *metrics.ClassificationScores `json:"classification,omitempty" yaml:"classification,omitempty"`
}

// Map flattens the scalar metrics.
func (s Scores) Map() map[string]float64 {
	switch {
	case s.Regression != nil:
		return s.Regression.Map()
	case s.Classification != nil:
		return s.Classification.Map()
	}
	return map[string]float64{}
}

// Evaluation is the train and test performance of a run.
type Evaluation struct {
	Problem estimator.Problem `json:"problem" yaml:"problem"`
	Train   Scores            `json:"train" yaml:"train"`
	Test    Scores            `json:"test" yaml:"test"`

	YTest     *frame.Series `json:"-" yaml:"-"`
	TestPred  *frame.Series `json:"-" yaml:"-"`
	TrainPred *frame.Series `json:"-" yaml:"-"`
}

// Evaluate predicts both partitions with the fitted pipeline and scores
// them. Regressors get R², MSE, RMSE and MAE; classifiers get accuracy and
// macro F1.
func Evaluate(res *run.Result) (*Evaluation, error) {
	if res == nil || res.Pipeline == nil {
		return nil, errors.NewValueError("Evaluate", "no run result")
	}
	trainPred, err := res.Pipeline.Predict(res.XTrain)
	if err != nil {
		return nil, errors.Wrap(err, "predict train partition")
	}
	testPred, err := res.Pipeline.Predict(res.XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict test partition")
	}

	ev := &Evaluation{Problem: res.Problem, YTest: res.YTest, TestPred: testPred, TrainPred: trainPred}
	if ev.Train, err = score(res.Problem, res.YTrain, trainPred); err != nil {
		return nil, err
	}
	if ev.Test, err = score(res.Problem, res.YTest, testPred); err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("report").With(log.ProblemKey, string(res.Problem))
	if ev.Problem == estimator.Regression {
		logger.Info("Run evaluated", log.OperationKey, log.OperationScore, log.R2ScoreKey, ev.Test.Regression.R2)
	} else {
		logger.Info("Run evaluated", log.OperationKey, log.OperationScore, log.AccuracyKey, ev.Test.Classification.Accuracy)
	}
	return ev, nil
}

func score(p estimator.Problem, yTrue, yPred *frame.Series) (Scores, error) {
	if p == estimator.Regression {
		s, err := metrics.EvaluateRegression(yTrue, yPred)
		if err != nil {
			return Scores{}, err
		}
		return Scores{Regression: &s}, nil
	}
	s, err := metrics.EvaluateClassification(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	return Scores{Classification: &s}, nil
}

// WriteSummary renders the parameter summary, split sizes, fit time and
// the metric table.
func WriteSummary(w io.Writer, res *run.Result, ev *Evaluation) error {
	params, err := res.Config.Summary()
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("Parameters\n")
	b.WriteString(indent(params))
	fmt.Fprintf(&b, "\nTrain rows: %d  Test rows: %d  Features: %d\n",
		res.XTrain.NRows(), res.XTest.NRows(), res.XTrain.NCols())
	fmt.Fprintf(&b, "Pipeline: %s\n", strings.Join(res.Pipeline.StepNames(), " -> "))
	fmt.Fprintf(&b, "Fit time: %s\n\n", res.FitDuration.Round(time.Millisecond))
	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(err, "write summary")
	}
	if ev == nil {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "metric\ttrain\ttest")
	train, test := ev.Train.Map(), ev.Test.Map()
	names := make([]string, 0, len(test))
	for k := range test {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", k, train[k], test[k])
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "write metrics")
	}

	if c := ev.Test.Classification; c != nil {
		fmt.Fprintf(w, "\nConfusion matrix (test, rows = actual)\n")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "\t%s\n", strings.Join(c.Labels, "\t"))
		for i, row := range c.Confusion {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = fmt.Sprintf("%g", v)
			}
			fmt.Fprintf(tw, "%s\t%s\n", c.Labels[i], strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return errors.Wrap(err, "write confusion matrix")
		}
	}
	return nil
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n") + "\n"
}
