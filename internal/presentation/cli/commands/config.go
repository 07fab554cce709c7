package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jbctechsolutions/connectsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage the configuration file",
		Annotations: map[string]string{skipInit: "true"},
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func configPath(loader *config.Loader) string {
	if globalFlags.ConfigFile != "" {
		return globalFlags.ConfigFile
	}
	return loader.DefaultConfigPath()
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader("")
			if err != nil {
				return err
			}
			path := configPath(loader)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}
			if err := loader.Save(config.NewDefaultConfig(), path); err != nil {
				return err
			}
			return formatterFor(cmd).Success("Wrote %s", path)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(globalFlags.ConfigFile)
			if err != nil {
				return err
			}
			formatter := formatterFor(cmd)
			if formatter.Format() == output.FormatJSON {
				return formatter.JSON(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader("")
			if err != nil {
				return err
			}
			return formatterFor(cmd).Println("%s", configPath(loader))
		},
	}
}
