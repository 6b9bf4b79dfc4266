package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var skipExisting bool

	cmd := &cobra.Command{
		Use:   "submit <source-host> <dest-host> <path>...",
		Short: "Queue files for transfer between two hosts",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, dest := args[0], args[1]
			paths := args[2:]

			return ctx.withClient(func(client *api.Client) error {
				files := make([]api.FileEntry, 0, len(paths))
				for _, path := range paths {
					files = append(files, api.FileEntry{Path: path})
				}
				resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
					SourceServerID: source,
					DestServerID:   dest,
					Files:          files,
				})
				if err != nil {
					return err
				}

				if skipExisting {
					for _, t := range resp.Transfers {
						exists, err := client.Exists(cmd.Context(), dest, t.DestPath)
						if err != nil {
							fmt.Fprintf(cmd.ErrOrStderr(), "existence check for %s failed: %v\n", t.DestPath, err)
							continue
						}
						if !exists {
							continue
						}
						if _, err := client.Skip(cmd.Context(), t.ID); err != nil {
							fmt.Fprintf(cmd.ErrOrStderr(), "skip of %s failed: %v\n", t.FileName, err)
							continue
						}
						fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s (already at destination)\n", t.FileName)
					}
				}

				if jsonOut {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted batch %s with %d transfer(s)\n", resp.BatchID, len(resp.Transfers))
				for _, t := range resp.Transfers {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s -> %s\n", shortID(t.ID), t.SourcePath, t.DestPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Cancel transfers whose destination file already exists")
	return cmd
}
