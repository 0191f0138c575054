package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCompactCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "compact <process-id>...",
		Short: "Discard superseded log entries (log backend only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: runE(v, func(cmd *cobra.Command, e *env, args []string) error {
			if e.Log == nil {
				return fmt.Errorf("the %s backend does not support compaction", e.Config.Backend)
			}

			for _, id := range args {
				if err := e.Log.Compact(cmd.Context(), id); err != nil {
					return fmt.Errorf("unable to compact '%s': %w", id, err)
				}
			}

			return nil
		}),
	}
}
