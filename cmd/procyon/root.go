package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCommand returns the "procyon" command and its sub-commands.
func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "procyon",
		Short:         "Inspect and maintain persisted process instances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bindFlags(root, v)

	root.AddCommand(
		newInstancesCommand(v),
		newSignalCommand(v),
		newCorrelationCommand(v),
		newPlansCommand(v),
		newCompactCommand(v),
	)

	return root
}

// runE returns a cobra RunE function that calls fn with an environment that
// is closed when fn returns.
func runE(
	v *viper.Viper,
	fn func(cmd *cobra.Command, e *env, args []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		e, err := newEnv(cmd, v)
		if err != nil {
			return err
		}

		defer func() {
			if cerr := e.Close(); err == nil {
				err = cerr
			}
		}()

		return fn(cmd, e, args)
	}
}
