package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlplayground/estimator"
)

func newEstimatorsCmd() *cobra.Command {
	var problem string
	cmd := &cobra.Command{
		Use:   "estimators",
		Short: "List the available estimators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			specs := estimator.List()
			if problem != "" {
				specs = estimator.ForProblem(estimator.Problem(problem))
				if len(specs) == 0 {
					return fmt.Errorf("unknown problem %q: expected %s or %s", problem, estimator.Regression, estimator.Classification)
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Name"),
				headerStyle.Render("Problem"),
				headerStyle.Render("Aliases"))
			for _, s := range specs {
				aliases := strings.Join(s.Aliases, ", ")
				if aliases == "" {
					aliases = mutedStyle.Render("-")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Problem, aliases)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&problem, "problem", "p", "", "only list estimators for regression or classification")
	return cmd
}
