package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/estimator"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// Plot file names written by SavePlots.
const (
	PredictedVsActualFile = "predicted_vs_actual.png"
	ClassCountsFile       = "class_counts.png"
)

// PredictedVsActual scatters predictions against the true values with the
// identity line for reference.
func PredictedVsActual(yTrue, yPred *frame.Series) (*plot.Plot, error) {
	if !yTrue.IsNumeric() || !yPred.IsNumeric() {
		return nil, errors.NewValueError("PredictedVsActual", "needs numeric series")
	}
	if yTrue.Len() != yPred.Len() {
		return nil, errors.NewDimensionError("PredictedVsActual", yTrue.Len(), yPred.Len(), 0)
	}
	if yTrue.Len() == 0 {
		return nil, errors.NewValueError("PredictedVsActual", "empty vector")
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual"
	p.X.Label.Text = "actual " + yTrue.Name
	p.Y.Label.Text = "predicted"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, yTrue.Len())
	for i := range pts {
		pts[i].X = yTrue.Floats[i]
		pts[i].Y = yPred.Floats[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter")
	}
	s.GlyphStyle.Radius = vg.Points(2.5)
	s.GlyphStyle.Color = color.RGBA{B: 200, A: 255}
	p.Add(s)

	lo := math.Min(floats.Min(yTrue.Floats), floats.Min(yPred.Floats))
	hi := math.Max(floats.Max(yTrue.Floats), floats.Max(yPred.Floats))
	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, errors.Wrap(err, "identity line")
	}
	l.LineStyle.Color = color.RGBA{R: 200, A: 255}
	l.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(l)
	return p, nil
}

// ClassCounts compares how often each label occurs in the true and the
// predicted labels as side-by-side bars.
func ClassCounts(yTrue, yPred *frame.Series, labels []string) (*plot.Plot, error) {
	if yTrue.Len() != yPred.Len() {
		return nil, errors.NewDimensionError("ClassCounts", yTrue.Len(), yPred.Len(), 0)
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ClassCounts", "no labels")
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	actual := make(plotter.Values, len(labels))
	predicted := make(plotter.Values, len(labels))
	for i := 0; i < yTrue.Len(); i++ {
		if j, ok := index[yTrue.Value(i)]; ok {
			actual[j]++
		}
		if j, ok := index[yPred.Value(i)]; ok {
			predicted[j]++
		}
	}

	p := plot.New()
	p.Title.Text = "Class counts"
	p.Y.Label.Text = "rows"
	w := vg.Points(14)

	a, err := plotter.NewBarChart(actual, w)
	if err != nil {
		return nil, errors.Wrap(err, "actual bars")
	}
	a.Color = color.RGBA{B: 180, A: 255}
	a.Offset = -w / 2
	pr, err := plotter.NewBarChart(predicted, w)
	if err != nil {
		return nil, errors.Wrap(err, "predicted bars")
	}
	pr.Color = color.RGBA{R: 220, G: 120, A: 255}
	pr.Offset = w / 2

	p.Add(a, pr)
	p.Legend.Add("actual", a)
	p.Legend.Add("predicted", pr)
	p.Legend.Top = true
	p.NominalX(labels...)
	return p, nil
}

// SavePlots writes the plots that fit the problem type of ev into dir,
// creating it if needed, and returns their paths.
func SavePlots(dir string, ev *Evaluation) ([]string, error) {
	var (
		p    *plot.Plot
		name string
		err  error
	)
	if ev.Problem == estimator.Regression {
		p, err = PredictedVsActual(ev.YTest, ev.TestPred)
		name = PredictedVsActualFile
	} else {
		p, err = ClassCounts(ev.YTest, ev.TestPred, ev.Test.Classification.Labels)
		name = ClassCountsFile
	}
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create plot directory %s", dir)
	}
	path := filepath.Join(dir, name)
	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return nil, errors.Wrapf(err, "save plot %s", path)
	}
	return []string{path}, nil
}
