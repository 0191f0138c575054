package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPlansCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plans",
		Aliases: []string{"plan"},
		Short:   "Inspect migration plans",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the migration plans loaded from the plans directory",
			Args:  cobra.NoArgs,
			RunE: runE(v, func(cmd *cobra.Command, e *env, _ []string) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SOURCE\tTARGET\tNODES\tNAME")

				for _, p := range e.Runtime.Migrations().Plans() {
					fmt.Fprintf(
						w,
						"%s\t%s\t%d\t%s\n",
						p.Source.Key(),
						p.Target.Key(),
						len(p.Nodes),
						p.Name,
					)
				}

				return w.Flush()
			}),
		},
	)

	return cmd
}
