package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var status string
	var source string
	var dest string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				transfers, err := client.ListTransfers(cmd.Context(), status, source, dest)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.TransferListResponse{Transfers: transfers})
				}
				if len(transfers) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transfers")
					return nil
				}
				printTransferTable(cmd, transfers)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&source, "source", "", "Filter by source host")
	cmd.Flags().StringVar(&dest, "dest", "", "Filter by destination host")
	return cmd
}

func printTransferTable(cmd *cobra.Command, transfers []api.Transfer) {
	headers := []string{"ID", "File", "Route", "Size", "Status", "Progress", "Created"}
	rows := make([][]string, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, []string{
			shortID(t.ID),
			t.FileName,
			t.SourceHostID + " -> " + t.DestHostID,
			formatSize(t.Size),
			t.Status,
			formatProgress(t),
			formatWireTime(t.CreatedAt),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
}
