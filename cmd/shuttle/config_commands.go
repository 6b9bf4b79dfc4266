package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shuttle/internal/config"
	"shuttle/internal/hosts"
	"shuttle/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigCheckCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to describe your hosts before running shuttled.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "check",
		Short:       "Validate configuration and probe hosts",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration at %s is valid\n", resolved)
			} else {
				fmt.Fprintf(out, "No config file at %s; using defaults\n", resolved)
			}
			fmt.Fprintf(out, "Hosts configured: %d\n", len(cfg.Hosts))

			registry, err := hosts.NewRegistry(cfg)
			if err != nil {
				return err
			}
			failures := 0
			for _, result := range preflight.RunAll(cmd.Context(), cfg, registry) {
				state := "ok"
				if !result.Passed {
					state = "FAIL"
					failures++
				}
				fmt.Fprintf(out, "  %-4s %s: %s\n", state, result.Name, result.Detail)
			}
			if failures > 0 {
				return fmt.Errorf("%d preflight check(s) failed", failures)
			}
			return nil
		},
	}
	return cmd
}
