package main

import (
	"errors"
	"fmt"

	"github.com/dogmatiq/procyon/correlation"
	"github.com/dogmatiq/procyon/persistence/sqlpersistence"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCorrelationCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "correlation",
		Aliases: []string{"correlations", "c"},
		Short:   "Manage correlations between business data and process instances",
	}

	cmd.AddCommand(
		newCorrelationCreateCommand(v),
		newCorrelationFindCommand(v),
		newCorrelationDeleteCommand(v),
		newCorrelationSchemaCommand(v),
	)

	return cmd
}

func newCorrelationCreateCommand(v *viper.Viper) *cobra.Command {
	var props map[string]string

	cmd := &cobra.Command{
		Use:   "create <instance-id>",
		Short: "Associate a correlation with a process instance",
		Args:  cobra.ExactArgs(1),
		RunE: runE(v, func(cmd *cobra.Command, e *env, args []string) error {
			svc, err := e.Correlations()
			if err != nil {
				return err
			}

			c, err := correlationFromFlags(props)
			if err != nil {
				return err
			}

			inst, err := svc.Create(cmd.Context(), c, args[0])
			if err != nil {
				return err
			}

			return printCorrelation(cmd, inst)
		}),
	}

	cmd.Flags().StringToStringVar(&props, "property", nil, "correlation properties, as key=value")

	return cmd
}

func newCorrelationFindCommand(v *viper.Viper) *cobra.Command {
	var (
		props      map[string]string
		instanceID string
	)

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find a correlation by its properties or by the instance it identifies",
		Args:  cobra.NoArgs,
		RunE: runE(v, func(cmd *cobra.Command, e *env, _ []string) error {
			svc, err := e.Correlations()
			if err != nil {
				return err
			}

			var (
				inst correlation.Instance
				ok   bool
			)

			if instanceID != "" {
				inst, ok, err = svc.FindByCorrelatedID(cmd.Context(), instanceID)
			} else {
				c, cerr := correlationFromFlags(props)
				if cerr != nil {
					return cerr
				}

				inst, ok, err = svc.Find(cmd.Context(), c)
			}

			if err != nil {
				return err
			}

			if !ok {
				return errors.New("no matching correlation")
			}

			return printCorrelation(cmd, inst)
		}),
	}

	f := cmd.Flags()
	f.StringToStringVar(&props, "property", nil, "correlation properties, as key=value")
	f.StringVar(&instanceID, "instance", "", "ID of the correlated process instance")
	cmd.MarkFlagsMutuallyExclusive("property", "instance")

	return cmd
}

func newCorrelationDeleteCommand(v *viper.Viper) *cobra.Command {
	var props map[string]string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the association of a correlation with its process instance",
		Args:  cobra.NoArgs,
		RunE: runE(v, func(cmd *cobra.Command, e *env, _ []string) error {
			svc, err := e.Correlations()
			if err != nil {
				return err
			}

			c, err := correlationFromFlags(props)
			if err != nil {
				return err
			}

			return svc.Delete(cmd.Context(), c)
		}),
	}

	cmd.Flags().StringToStringVar(&props, "property", nil, "correlation properties, as key=value")

	return cmd
}

func newCorrelationSchemaCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the SQL schema used by the sqlite and postgres backends",
		Args:  cobra.NoArgs,
		RunE: runE(v, func(cmd *cobra.Command, e *env, _ []string) error {
			if e.DB == nil {
				return fmt.Errorf("the %s backend does not use a SQL schema", e.Config.Backend)
			}

			return sqlpersistence.CreateSchema(cmd.Context(), e.DB)
		}),
	}
}

// correlationFromFlags builds a correlation from the values of a --property
// flag.
func correlationFromFlags(props map[string]string) (correlation.Correlation, error) {
	if len(props) == 0 {
		return correlation.Correlation{}, errors.New("at least one --property is required")
	}

	m := make(map[string]any, len(props))
	for k, v := range props {
		m[k] = v
	}

	return correlation.FromMap(m), nil
}

func printCorrelation(cmd *cobra.Command, inst correlation.Instance) error {
	_, err := fmt.Fprintf(
		cmd.OutOrStdout(),
		"%s\t%s\t%s\n",
		inst.CorrelatedID,
		inst.EncodedID,
		inst.Correlation,
	)
	return err
}
