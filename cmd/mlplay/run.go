package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlplayground/dataset"
	"github.com/YuminosukeSato/mlplayground/preprocessing"
	"github.com/YuminosukeSato/mlplayground/report"
	"github.com/YuminosukeSato/mlplayground/run"
)

type runFlags struct {
	file        string
	runConfig   string
	target      string
	idColumn    string
	estimator   string
	trainSize   float64
	stratify    bool
	seed        int64
	numeric     []string
	categorical []string
	drop        []string
	plots       string
	save        bool
	name        string
	noProgress  bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train a pipeline on a CSV file and report its scores",
		Long: `Train a preprocessing + estimator pipeline on a train/test split of a CSV
file. Settings come from --run-config (YAML or JSON); individual flags
override the file.

Preprocessing steps are written as type[:option[:value]], for example
"impute:median", "impute:constant:0", "standard_scaler" or "one_hot".`,
		Example: `  mlplay run -f houses.csv -t price -e random_forest_regressor --numeric impute:median
  mlplay run -f churn.csv --run-config churn.yaml --save --plots ./plots`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.config(cmd, a)
			if err != nil {
				return err
			}
			return runAndReport(cmd, a, f, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "", "CSV file to train on")
	flags.StringVar(&f.runConfig, "run-config", "", "run configuration file (YAML or JSON)")
	flags.StringVarP(&f.target, "target", "t", "", "target column")
	flags.StringVar(&f.idColumn, "id", "", "identifier column to drop before training")
	flags.StringVarP(&f.estimator, "estimator", "e", "", "estimator id or name (see 'mlplay estimators')")
	flags.Float64Var(&f.trainSize, "train-size", run.DefaultTrainSize, "fraction of rows used for training")
	flags.BoolVar(&f.stratify, "stratify", false, "keep class proportions in both partitions")
	flags.Int64Var(&f.seed, "seed", run.DefaultRandomState, "random state for the split and the estimator")
	flags.StringSliceVar(&f.numeric, "numeric", nil, "numeric preprocessing steps, in order")
	flags.StringSliceVar(&f.categorical, "categorical", nil, "categorical preprocessing steps, in order")
	flags.StringSliceVar(&f.drop, "drop", nil, "columns dropped after feature creation")
	flags.StringVar(&f.plots, "plots", "", "directory for evaluation plots")
	flags.BoolVar(&f.save, "save", false, "store the fitted pipeline in the registry")
	flags.StringVar(&f.name, "name", "", "artifact name (default: the estimator id)")
	flags.BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// config merges the run config file, the application defaults and the
// flags that were set explicitly.
func (f *runFlags) config(cmd *cobra.Command, a *app) (run.Config, error) {
	cfg := run.DefaultConfig()
	cfg.RandomState = a.cfg.RandomState
	if f.runConfig != "" {
		c, err := run.LoadConfig(f.runConfig)
		if err != nil {
			return run.Config{}, err
		}
		cfg = c
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Target = f.target
	}
	if flags.Changed("id") {
		cfg.IDColumn = f.idColumn
	}
	if flags.Changed("estimator") {
		cfg.Estimator = f.estimator
	}
	if flags.Changed("train-size") {
		cfg.TrainSize = f.trainSize
		cfg.TestSizeValue = nil
	}
	if flags.Changed("stratify") {
		cfg.Stratify = f.stratify
	}
	if flags.Changed("seed") {
		cfg.RandomState = f.seed
	}
	if flags.Changed("numeric") {
		cfg.NumericSteps = parseStepFlags(f.numeric)
	}
	if flags.Changed("categorical") {
		cfg.CategoricalSteps = parseStepFlags(f.categorical)
	}
	if flags.Changed("drop") {
		cfg.DropColumns = f.drop
	}
	return cfg, cfg.Validate()
}

// parseStepFlags turns "impute:median" style values into step configs.
// Unknown types are left for run.Config validation to reject.
func parseStepFlags(values []string) []preprocessing.StepConfig {
	out := make([]preprocessing.StepConfig, 0, len(values))
	for _, v := range values {
		parts := strings.SplitN(strings.TrimSpace(v), ":", 3)
		c := preprocessing.StepConfig{Type: parts[0]}
		switch c.Type {
		case preprocessing.StepImpute:
			if len(parts) > 1 {
				c.Strategy = parts[1]
			}
			if len(parts) > 2 {
				c.FillValue = parts[2]
			}
		case preprocessing.StepOneHot:
			if len(parts) > 1 {
				c.HandleUnknown = parts[1]
			}
		}
		out = append(out, c)
	}
	return out
}

func runAndReport(cmd *cobra.Command, a *app, f *runFlags, cfg run.Config) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	l, err := dataset.LoadFile(f.file)
	if err != nil {
		return err
	}
	ds, err := dataset.New(l.Frame, cfg.Target)
	if err != nil {
		return err
	}

	var opts []run.Option
	if a.cfg.Progress && !f.noProgress {
		bar := newFitProgress(cmd.ErrOrStderr())
		opts = append(opts, run.WithProgress(bar.update))
	}
	res, err := run.RunModel(ctx, ds, cfg, opts...)
	if err != nil {
		return err
	}
	ev, err := report.Evaluate(res)
	if err != nil {
		return err
	}
	if err := report.WriteSummary(out, res, ev); err != nil {
		return err
	}

	if f.plots != "" {
		paths, err := report.SavePlots(f.plots, ev)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("✓ Plot written:"), p)
		}
	}

	if f.save {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		meta, err := store.SaveRun(ctx, f.name, res, ev.Test.Map())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s (%s)\n", okStyle.Render("✓ Saved artifact:"), meta.ID, meta.Name)
	}
	return nil
}

// fitProgress draws a bar for estimators that report progress. The bar is
// created on the first report since the total is only known then.
type fitProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newFitProgress(w io.Writer) *fitProgress {
	return &fitProgress{w: w}
}

func (p *fitProgress) update(done, total int) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Fitting...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(p.w)
			}),
		)
	}
	_ = p.bar.Set(done)
}
