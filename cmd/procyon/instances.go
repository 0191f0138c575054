package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dogmatiq/procyon/process"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newInstancesCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance", "i"},
		Short:   "Manage persisted process instances",
	}

	cmd.AddCommand(
		newInstancesListCommand(v),
		newInstancesShowCommand(v),
		newInstancesCreateCommand(v),
		newInstancesRemoveCommand(v),
	)

	return cmd
}

func newInstancesListCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list <process-id>",
		Short: "List the instances of a process",
		Args:  cobra.ExactArgs(1),
		RunE: runE(v, func(cmd *cobra.Command, e *env, args []string) error {
			ctx := cmd.Context()

			s, err := e.Runtime.Store(ctx, args[0])
			if err != nil {
				return err
			}

			instances, err := s.Values(ctx, process.ReadOnly)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tSTATE\tPROCESS\tEVENTS")

			for _, inst := range instances {
				fmt.Fprintf(
					w,
					"%s\t%d\t%s\t%s@%s\t%s\n",
					inst.ID(),
					inst.Version(),
					inst.State(),
					inst.ProcessID(),
					inst.ProcessVersion(),
					strings.Join(inst.EventTypes(), ","),
				)

				e.Runtime.Arena().Release(inst)
			}

			return w.Flush()
		}),
	}
}

func newInstancesShowCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <process-id> <instance-id>",
		Short: "Show the persisted state of an instance as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: runE(v, func(cmd *cobra.Command, e *env, args []string) error {
			ctx := cmd.Context()

			s, err := e.Runtime.Store(ctx, args[0])
			if err != nil {
				return err
			}

			inst, ok, err := s.FindByID(ctx, args[1], process.ReadOnly)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("process '%s' has no instance with ID '%s'", args[0], args[1])
			}
			defer e.Runtime.Arena().Release(inst)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)

			return enc.Encode(struct {
				Version int64 `json:"version"`
				process.Snapshot
			}{inst.Version(), inst.Snapshot()})
		}),
	}
}

func newInstancesCreateCommand(v *viper.Viper) *cobra.Command {
	var (
		id          string
		version     string
		businessKey string
		events      []string
		vars        map[string]string
	)

	cmd := &cobra.Command{
		Use:   "create <process-id>",
		Short: "Create a new active instance of a process",
		Args:  cobra.ExactArgs(1),
		RunE: runE(v, func(cmd *cobra.Command, e *env, args []string) error {
			ctx := cmd.Context()

			s, err := e.Runtime.Store(ctx, args[0])
			if err != nil {
				return err
			}

			if id == "" {
				id = process.NewID()
			}

			inst := e.Runtime.Arena().NewInstance(id, args[0], version)
			defer e.Runtime.Arena().Release(inst)

			if err := initInstance(inst, businessKey, events, vars); err != nil {
				return err
			}

			if err := s.Create(ctx, inst); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), inst.ID())
			return err
		}),
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "instance ID (default is a random UUID)")
	f.StringVar(&version, "version", "1", "version of the process definition")
	f.StringVar(&businessKey, "business-key", "", "business key of the instance")
	f.StringSliceVar(&events, "subscribe", nil, "event types that the instance waits for")
	f.StringToStringVar(&vars, "var", nil, "initial variable values, as name=value")

	return cmd
}

// initInstance populates a newly created instance.
func initInstance(
	inst *process.Instance,
	businessKey string,
	events []string,
	vars map[string]string,
) error {
	if err := inst.SetState(process.StateActive); err != nil {
		return err
	}

	if businessKey != "" {
		if err := inst.SetBusinessKey(businessKey); err != nil {
			return err
		}
	}

	for _, t := range events {
		if err := inst.Subscribe(t); err != nil {
			return err
		}
	}

	for n, val := range vars {
		if err := inst.SetVariable(n, val); err != nil {
			return err
		}
	}

	return nil
}

func newInstancesRemoveCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <process-id> <instance-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an instance",
		Args:    cobra.ExactArgs(2),
		RunE: runE(v, func(cmd *cobra.Command, e *env, args []string) error {
			ctx := cmd.Context()

			s, err := e.Runtime.Store(ctx, args[0])
			if err != nil {
				return err
			}

			return s.Remove(ctx, args[1])
		}),
	}
}
