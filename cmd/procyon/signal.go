package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dogmatiq/procyon"
	"github.com/dogmatiq/procyon/persistence"
	"github.com/dogmatiq/procyon/process"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSignalCommand(v *viper.Viper) *cobra.Command {
	var (
		processIDs []string
		instanceID string
		payload    string
	)

	cmd := &cobra.Command{
		Use:   "signal <event-type>",
		Short: "Deliver an event to the instances waiting for it",
		Long: `Deliver an event to the instances waiting for it.

Each instance that receives the event is unsubscribed from its type and saved.
When --instance is given, the event is delivered to that instance only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			eventType := args[0]

			var p any
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &p); err != nil {
					return fmt.Errorf("unable to parse payload: %w", err)
				}
			}

			var e *env
			handler := process.SignalHandlerFunc(
				func(ctx context.Context, inst *process.Instance, eventType string, _ any) error {
					return acknowledge(ctx, cmd, e, processIDs, inst, eventType)
				},
			)

			e, err = newEnv(cmd, v, procyon.WithSignalHandler(handler))
			if err != nil {
				return err
			}

			defer func() {
				if cerr := e.Close(); err == nil {
					err = cerr
				}
			}()

			for _, id := range processIDs {
				if _, err := e.Runtime.Store(ctx, id); err != nil {
					return err
				}
			}

			if instanceID != "" {
				return e.Runtime.Hub().SignalInstance(ctx, instanceID, eventType, p)
			}

			return e.Runtime.Hub().SignalEvent(ctx, eventType, p)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&processIDs, "process", nil, "IDs of the processes whose instances may receive the event")
	f.StringVar(&instanceID, "instance", "", "deliver the event only to the instance with this ID")
	f.StringVar(&payload, "payload", "", "event payload, as JSON")

	if err := cmd.MarkFlagRequired("process"); err != nil {
		panic(err)
	}

	return cmd
}

// acknowledge records the delivery of an event to inst by unsubscribing it
// from the event type and saving it.
//
// The instance is saved to whichever of the given processes' stores holds it,
// which is not necessarily the store for inst.ProcessID() if the instance was
// migrated when it was loaded.
func acknowledge(
	ctx context.Context,
	cmd *cobra.Command,
	e *env,
	processIDs []string,
	inst *process.Instance,
	eventType string,
) error {
	s, err := storeContaining(ctx, e, processIDs, inst.ID())
	if err != nil {
		return err
	}

	if err := inst.Unsubscribe(eventType); err != nil {
		return err
	}

	if err := s.Update(ctx, inst); err != nil {
		return err
	}

	_, err = fmt.Fprintf(
		cmd.OutOrStdout(),
		"%s\t%s@%s\n",
		inst.ID(),
		inst.ProcessID(),
		inst.ProcessVersion(),
	)
	return err
}

// storeContaining returns the store of the first process in processIDs that
// has an instance with the given ID.
func storeContaining(
	ctx context.Context,
	e *env,
	processIDs []string,
	instanceID string,
) (*persistence.Store, error) {
	for _, id := range processIDs {
		s, err := e.Runtime.Store(ctx, id)
		if err != nil {
			return nil, err
		}

		ok, err := s.Exists(ctx, instanceID)
		if err != nil {
			return nil, err
		}

		if ok {
			return s, nil
		}
	}

	return nil, fmt.Errorf("none of the processes has an instance with ID '%s'", instanceID)
}
