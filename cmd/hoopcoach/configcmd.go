package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fpang/hoopcoach/internal/cli"
	"github.com/fpang/hoopcoach/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFlag
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			} else {
				var err error
				if path, err = config.ExpandPath(path); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				if !cli.IsTerminal(os.Stdin) || !cli.Confirm(os.Stdin, cmd.ErrOrStderr(), path+" exists. Overwrite?") {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			source := a.configPath
			if !a.configFound {
				source += " (not found, using defaults)"
			}
			a.printf("Config: %s\n", source)

			settings := a.cfg.Redacted()
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, settings[k]})
			}
			a.printf("%s\n", cli.RenderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
