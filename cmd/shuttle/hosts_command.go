package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
)

func newHostsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Inspect configured hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHostsList(cmd, ctx)
		},
	}

	cmd.AddCommand(newHostsLsCommand(ctx))
	cmd.AddCommand(newHostsExistsCommand(ctx))
	return cmd
}

func runHostsList(cmd *cobra.Command, ctx *commandContext) error {
	return ctx.withClient(func(client *api.Client) error {
		hosts, err := client.Hosts(cmd.Context())
		if err != nil {
			return err
		}
		headers := []string{"ID", "Endpoint", "User", "Categories", "Fallback"}
		rows := make([][]string, 0, len(hosts))
		for _, host := range hosts {
			names := make([]string, 0, len(host.Categories))
			for name := range host.Categories {
				names = append(names, name)
			}
			sort.Strings(names)
			rows = append(rows, []string{
				host.ID,
				fmt.Sprintf("%s:%d", host.Address, host.Port),
				host.User,
				strings.Join(names, ", "),
				host.Fallback,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, nil))
		return nil
	})
}

func newHostsLsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <host-id> <path>",
		Short: "List a directory on a host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				listing, err := client.ListDir(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if len(listing.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Empty directory")
					return nil
				}
				headers := []string{"Name", "Size", "Modified"}
				rows := make([][]string, 0, len(listing.Entries))
				for _, entry := range listing.Entries {
					name := entry.Name
					size := formatSize(entry.Size)
					if entry.IsDir {
						name += "/"
						size = "-"
					}
					rows = append(rows, []string{name, size, formatWireTime(entry.ModTime)})
				}
				aligns := []columnAlignment{alignLeft, alignRight, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	return cmd
}

func newHostsExistsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exists <host-id> <path>",
		Short: "Check whether a path exists on a host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				exists, err := client.Exists(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), yesNo(exists))
				return nil
			})
		},
	}
	return cmd
}
