package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/dataset"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// PredictionColumn is appended to the scored rows.
const PredictionColumn = "prediction"

func newPredictCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "predict <artifact-id> <file.csv>",
		Short: "Score a CSV file with a stored pipeline",
		Long: `Load a stored pipeline and append a prediction column to every row of the
file. The file needs the columns the pipeline was trained on; the target
column may be absent.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			l, err := dataset.LoadFile(args[1])
			if err != nil {
				return err
			}
			pred, err := p.Predict(l.Frame)
			if err != nil {
				return err
			}
			scored, err := l.Frame.WithColumn(pred.Rename(PredictionColumn))
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				fh, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "create %s", output)
				}
				defer fh.Close()
				w = fh
			}
			return frame.WriteCSV(w, scored)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the scored CSV here instead of stdout")
	return cmd
}
