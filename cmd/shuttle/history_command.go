package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show settled transfers from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				transfers, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.HistoryResponse{Transfers: transfers})
				}
				if len(transfers) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No history")
					return nil
				}
				headers := []string{"ID", "File", "Route", "Size", "Status", "Completed"}
				rows := make([][]string, 0, len(transfers))
				for _, t := range transfers {
					rows = append(rows, []string{
						shortID(t.ID),
						t.FileName,
						t.SourceHostID + " -> " + t.DestHostID,
						formatSize(t.Size),
						t.Status,
						formatWireTime(t.CompletedAt),
					})
				}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to fetch")
	return cmd
}
