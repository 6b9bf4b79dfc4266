package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow transfer events as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			address := ctx.apiAddress()
			if address == "" {
				return errors.New("no daemon API address configured")
			}
			// Long-polling needs a client without a request timeout.
			opts := []api.ClientOption{api.WithHTTPClient(&http.Client{})}
			if cfg, err := ctx.ensureConfig(); err == nil && cfg != nil && cfg.Paths.APIToken != "" {
				opts = append(opts, api.WithToken(cfg.Paths.APIToken))
			}
			client := api.NewClient(address, opts...)

			snapshot, err := client.Events(cmd.Context(), 0, 0, false)
			if err != nil {
				return wrapConnectError(err, address)
			}
			for _, evt := range snapshot.Events {
				for i := range evt.Snapshot {
					printEventLine(cmd, evt.Type, &evt.Snapshot[i])
				}
			}

			cursor := snapshot.Next
			for {
				resp, err := client.Events(cmd.Context(), cursor, 0, true)
				if err != nil {
					if errors.Is(cmd.Context().Err(), context.Canceled) {
						return nil
					}
					return err
				}
				for _, evt := range resp.Events {
					printEventLine(cmd, evt.Type, evt.Transfer)
				}
				cursor = resp.Next
			}
		},
	}
	return cmd
}

func printEventLine(cmd *cobra.Command, eventType string, t *api.Transfer) {
	if t == nil {
		return
	}
	out := cmd.OutOrStdout()
	switch eventType {
	case "transfer:progress":
		fmt.Fprintf(out, "%-10s %s %s %s\n", t.Status, shortID(t.ID), t.FileName, formatProgress(*t))
	case "transfer:error":
		fmt.Fprintf(out, "%-10s %s %s: %s\n", t.Status, shortID(t.ID), t.FileName, t.ErrorMessage)
	default:
		fmt.Fprintf(out, "%-10s %s %s -> %s\n", t.Status, shortID(t.ID), t.SourcePath, t.DestPath)
	}
}
