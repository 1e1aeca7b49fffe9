package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/schemaocr/internal/config"
	"github.com/jackzampolin/schemaocr/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration (API key redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		return output.To(cmd.OutOrStdout(), output.CurrentFormat(), s.Config.Get().Redacted())
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List config keys with their defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.To(cmd.OutOrStdout(), output.CurrentFormat(), config.DefaultEntries())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save the file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		if err := s.Config.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], s.Config.Path())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Config.Path())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file if none exists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		if err := s.Home.EnsureExists(); err != nil {
			return err
		}
		path := s.Config.Path()
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			return nil
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Check the API key by listing the available models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		cfg := s.Config.Get()
		if cfg.ResolveAPIKey() == "" {
			return fmt.Errorf("no API key configured (set openai_api_key or OPENAI_API_KEY)")
		}
		models, err := s.Client(cfg).ListModels(cmd.Context())
		if err != nil {
			return describeOCRError(err)
		}
		return output.To(cmd.OutOrStdout(), output.CurrentFormat(), models)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configKeysCmd, configSetCmd, configPathCmd, configInitCmd, configModelsCmd)
}
