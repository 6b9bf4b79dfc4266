package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <transfer-id>",
		Short: "Show one transfer in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				transfer, err := resolveTransfer(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.TransferResponse{Transfer: transfer})
				}
				printTransferDetail(cmd, transfer)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// resolveTransfer accepts a full id or a unique id prefix.
func resolveTransfer(ctx context.Context, client *api.Client, arg string) (api.Transfer, error) {
	transfer, err := client.GetTransfer(ctx, arg)
	if err == nil {
		return transfer, nil
	}

	transfers, listErr := client.ListTransfers(ctx, "", "", "")
	if listErr != nil {
		return api.Transfer{}, err
	}
	var matches []api.Transfer
	for _, t := range transfers {
		if strings.HasPrefix(t.ID, arg) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return api.Transfer{}, err
	default:
		return api.Transfer{}, fmt.Errorf("transfer id prefix %q is ambiguous (%d matches)", arg, len(matches))
	}
}

func printTransferDetail(cmd *cobra.Command, t api.Transfer) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", t.ID)
	fmt.Fprintf(out, "Batch:     %s\n", t.BatchID)
	fmt.Fprintf(out, "File:      %s (%s)\n", t.FileName, formatSize(t.Size))
	fmt.Fprintf(out, "Route:     %s -> %s\n", t.SourceHostID, t.DestHostID)
	fmt.Fprintf(out, "Source:    %s\n", t.SourcePath)
	fmt.Fprintf(out, "Dest:      %s\n", t.DestPath)
	fmt.Fprintf(out, "Status:    %s\n", t.Status)
	if t.Status == "active" {
		detail := fmt.Sprintf("%d%% (%s)", t.Progress.Percent, formatSize(t.Progress.Bytes))
		if t.Progress.Rate != "" {
			detail += " at " + t.Progress.Rate
		}
		if t.Progress.ETA != "" {
			detail += ", eta " + t.Progress.ETA
		}
		fmt.Fprintf(out, "Progress:  %s\n", detail)
	}
	if t.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", t.ErrorMessage)
	}
	fmt.Fprintf(out, "Created:   %s\n", formatWireTime(t.CreatedAt))
	if t.StartedAt != "" {
		fmt.Fprintf(out, "Started:   %s\n", formatWireTime(t.StartedAt))
	}
	if t.CompletedAt != "" {
		fmt.Fprintf(out, "Completed: %s\n", formatWireTime(t.CompletedAt))
	}
}
