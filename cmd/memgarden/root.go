package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dae9999nam/Memory-Garden/internal/config"
	"github.com/dae9999nam/Memory-Garden/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		yamlOutput bool
		logLevel   string
	)
	structured := false

	cmd := &cobra.Command{
		Use:           "memgarden",
		Short:         "Memory Garden keeps photo stories and their narratives consistent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := setupLogging(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}

			switch {
			case jsonOutput && yamlOutput:
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			case yamlOutput:
				outputFormatter = format.YAMLFormatter{}
				structured = true
			case jsonOutput:
				outputFormatter = format.JSONFormatter{Indent: true}
				structured = true
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newCreateCmd(cfg, &structured),
		newListCmd(cfg, &structured),
		newShowCmd(cfg, &structured),
		newReplaceCmd(cfg, &structured),
		newDeleteCmd(cfg, &structured),
		newPhotoCmd(cfg),
		newGCCmd(cfg, &structured),
		newMigrateCmd(cfg, &structured),
		newConfigCmd(cfg),
	)

	return cmd
}
