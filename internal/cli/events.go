package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retrofeed/retrofeed/internal/changefeed"
	"github.com/retrofeed/retrofeed/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After       int64
	Limit       int
	CloudEvents bool
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events <database>",
		Short: "Read the changefeed",
		Long: `Print committed change events from the changefeed, one JSON document
per line, ordered by id. With --cloudevents, print the fully rendered
CloudEvents envelope from the view instead of the raw log row.

Consumers resume by remembering the last id they saw and passing it
back with --after.

Example:
  retrofeed events ./app.db
  retrofeed events ./app.db --after 42 --limit 100
  retrofeed events ./app.db --cloudevents`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with id greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")
	cmd.Flags().BoolVar(&opts.CloudEvents, "cloudevents", false, "render full CloudEvents envelopes")

	return cmd
}

func runEvents(opts *EventsOptions, dbPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if opts.CloudEvents {
		docs, err := changefeed.ReadCloudEvents(ctx, st.DB(), opts.After, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read changefeed", err)
		}
		for _, doc := range docs {
			fmt.Fprintln(out, doc)
		}
		return nil
	}

	events, err := changefeed.ReadEvents(ctx, st.DB(), opts.After, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read changefeed", err)
	}
	enc := json.NewEncoder(out)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return WrapExitError(ExitFailure, "failed to encode event", err)
		}
	}
	return nil
}
