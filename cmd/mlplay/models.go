package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlplayground/core/model"
	"github.com/YuminosukeSato/mlplayground/internal/registry"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"artifacts"},
		Short:   "Manage stored pipelines",
	}
	cmd.AddCommand(listModelsCmd(a), showModelCmd(a), deleteModelCmd(a))
	return cmd
}

func listModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored pipelines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No stored pipelines. Use 'mlplay run --save' to create one."))
				return nil
			}
			return writeArtifacts(out, list)
		},
	}
}

func writeArtifacts(out io.Writer, list []registry.Artifact) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("ID"),
		headerStyle.Render("Name"),
		headerStyle.Render("Estimator"),
		headerStyle.Render("Target"),
		headerStyle.Render("Created"),
		headerStyle.Render("Test scores"))
	for _, art := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			art.ID, art.Name, art.Estimator, art.Target,
			art.CreatedAt.Local().Format("2006-01-02 15:04"), formatMetrics(art.Metrics))
	}
	return w.Flush()
}

// formatMetrics renders metrics as "k=v" pairs sorted by name.
func formatMetrics(m map[string]float64) string {
	if len(m) == 0 {
		return "-"
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, " ")
}

func showModelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <artifact-id>",
		Short: "Show the configuration and scores of a stored pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			art, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			p, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("ID:"), art.ID)
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Name:"), art.Name)
			fmt.Fprintf(out, "%s %s (%s)\n", headerStyle.Render("Estimator:"), art.Estimator, art.Problem)
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Steps:"), strings.Join(p.StepNames(), " -> "))
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("Test scores:"), formatMetrics(art.Metrics))
			writeFeatureWeights(out, p.Estimator())
			fmt.Fprintf(out, "%s\n%s", headerStyle.Render("Run config:"), art.Config)
			return nil
		},
	}
}

// writeFeatureWeights prints tree importances, or linear coefficients for
// single-output linear models, largest magnitude first.
func writeFeatureWeights(out io.Writer, est model.Estimator) {
	var (
		title  string
		values map[string]float64
	)
	if im, ok := est.(interface {
		Importances() (map[string]float64, bool)
	}); ok {
		if v, ok := im.Importances(); ok {
			title, values = "Feature importances:", v
		}
	}
	if values == nil {
		if we, ok := est.(interface {
			Weights() (*model.ModelWeights, error)
		}); ok {
			if w, err := we.Weights(); err == nil && len(w.Coefficients) == len(w.Features) {
				values = make(map[string]float64, len(w.Features))
				for i, f := range w.Features {
					values[f] = w.Coefficients[i]
				}
				title = "Coefficients:"
			}
		}
	}
	if len(values) == 0 {
		return
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := math.Abs(values[names[i]]), math.Abs(values[names[j]])
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	if len(names) > 10 {
		names = names[:10]
	}
	fmt.Fprintln(out, headerStyle.Render(title))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, n := range names {
		fmt.Fprintf(w, "  %s\t%.4f\n", n, values[n])
	}
	_ = w.Flush()
}

func deleteModelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <artifact-id>...",
		Short: "Delete stored pipelines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := store.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("✓ Deleted"), id)
			}
			return nil
		},
	}
}
