package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/dataset"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		rows   int
		target string
	)
	cmd := &cobra.Command{
		Use:   "inspect <file.csv>",
		Short: "Show the columns and a preview of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := dataset.LoadFile(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("rows") {
				rows = a.cfg.PreviewRows
			}
			if target != "" && !l.Frame.Has(target) {
				return fmt.Errorf("target %q is not a column of %s", target, args[0])
			}
			return writeInspect(cmd.OutOrStdout(), l, target, rows)
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 5, "rows shown from each end of the file")
	cmd.Flags().StringVarP(&target, "target", "t", "", "show the identifier choices for this target")
	return cmd
}

func writeInspect(out io.Writer, l *dataset.Loaded, target string, rows int) error {
	f := l.Frame
	fmt.Fprintf(out, "%s %d rows, %d columns\n\n", headerStyle.Render("Dataset:"), f.NRows(), f.NCols())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", headerStyle.Render("Column"), headerStyle.Render("Kind"), headerStyle.Render("Missing"))
	for _, c := range f.Columns() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name, c.Kind, c.MissingCount())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s %s\n", headerStyle.Render("Target choices:"), strings.Join(l.ColumnSelector, ", "))
	if target != "" {
		ids := l.IDSelectorFor(target)
		if ids[0] == "" {
			ids[0] = mutedStyle.Render("(none)")
		}
		fmt.Fprintf(out, "%s %s\n", headerStyle.Render("ID choices:"), strings.Join(ids, ", "))
	}

	fmt.Fprintf(out, "\n%s\n", headerStyle.Render("Preview:"))
	return writeTable(out, dataset.Preview(f, rows))
}

func writeTable(out io.Writer, f *frame.Frame) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(f.Names(), "\t"))
	for _, rec := range f.Records() {
		fmt.Fprintln(w, strings.Join(rec, "\t"))
	}
	return w.Flush()
}
