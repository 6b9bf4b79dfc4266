package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <transfer-id>...",
		Short: "Cancel queued or active transfers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				for _, arg := range args {
					transfer, err := resolveTransfer(cmd.Context(), client, arg)
					if err != nil {
						return err
					}
					changed, err := client.Cancel(cmd.Context(), transfer.ID)
					if err != nil {
						return err
					}
					if changed {
						fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s (%s)\n", shortID(transfer.ID), transfer.FileName)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Transfer %s already settled (%s)\n", shortID(transfer.ID), transfer.Status)
					}
				}
				return nil
			})
		},
	}
	return cmd
}
