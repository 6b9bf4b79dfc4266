package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, status)
				}
				printStatus(cmd, status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	running := yesNo(status.Running)
	if isTerminalWriter(out) {
		color := ansiRed
		if status.Running {
			color = ansiGreen
		}
		running = color + running + ansiReset
	}
	fmt.Fprintf(out, "Daemon:    running=%s pid=%d\n", running, status.PID)
	fmt.Fprintf(out, "Lock:      %s\n", status.LockFilePath)
	if status.HistoryDBPath != "" {
		fmt.Fprintf(out, "History:   %s\n", status.HistoryDBPath)
	}
	fmt.Fprintf(out, "Hosts:     %s\n", strings.Join(status.Hosts, ", "))
	if len(status.Sessions) > 0 {
		fmt.Fprintf(out, "Sessions:  %s\n", strings.Join(status.Sessions, ", "))
	}
	fmt.Fprintf(out, "Transfers: %d total, bound %d\n", status.Stats.Total, status.Stats.ActiveBound)

	if len(status.Stats.Counts) > 0 {
		names := make([]string, 0, len(status.Stats.Counts))
		for name := range status.Stats.Counts {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%d", name, status.Stats.Counts[name]))
		}
		fmt.Fprintf(out, "Counts:    %s\n", strings.Join(parts, " "))
	}
	if status.Stats.BytesMoved > 0 {
		fmt.Fprintf(out, "Moved:     %s\n", formatSize(status.Stats.BytesMoved))
	}
}
