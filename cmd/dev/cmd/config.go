package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensord/config"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a sensord.yaml with default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("could not get output flag: %w", err)
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return fmt.Errorf("could not get force flag: %w", err)
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", output)
			}
			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("could not encode config: %w", err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("could not write config: %w", err)
			}
			slog.Info("default config written", "output", output)
			return nil
		},
	}
	cmd.Flags().String("output", "sensord.yaml", "output file path")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}
