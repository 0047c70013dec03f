package cli

import (
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/spf13/cobra"

	"github.com/baldanca/awsbulk/target"
	"github.com/baldanca/awsbulk/transformer"
)

func (a *app) eventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "EventBridge bulk operations",
	}
	cmd.AddCommand(a.putEventsCommand())
	return cmd
}

func (a *app) putEventsCommand() *cobra.Command {
	var (
		f   batchFlags
		bus string
	)
	cmd := &cobra.Command{
		Use:   "put-events",
		Short: "Publish events with PutEvents",
		Long: `Each input is an event: {"Source", "DetailType", "Detail", "EventBusName",
"Resources", "Time", "TraceHeader"}. Detail may be an object or a string holding
one. Events without EventBusName go to --event-bus, or the default bus.`,
		Example: `  awsbulk events put-events --event-bus orders --input events.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd.Context(), a, cmd, &f, batchJob[ebtypes.PutEventsRequestEntry]{
				command:   "events put-events",
				limit:     target.EventBridgeMaxBatchSize,
				transform: transformer.EventBridge{EventBus: bus},
				target: func(c Clients) target.Operation[ebtypes.PutEventsRequestEntry] {
					return target.NewEventBridgePutter(c.EventBridge())
				},
			})
		},
	}
	cmd.Flags().StringVar(&bus, "event-bus", "", "bus for events that do not name one")
	addBatchFlags(cmd, &f)
	return cmd
}
