package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/schemaocr/internal/config"
	"github.com/jackzampolin/schemaocr/internal/home"
	"github.com/jackzampolin/schemaocr/internal/output"
	"github.com/jackzampolin/schemaocr/internal/svcctx"
	"github.com/jackzampolin/schemaocr/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
	envFile      string

	// newClient overrides the OCR client; nil uses the OpenAI client.
	newClient svcctx.ClientFactory
)

var rootCmd = &cobra.Command{
	Use:   "schemaocr",
	Short: "Author JSON Schemas and extract structured data from images",
	Long: `schemaocr edits draft-07 JSON Schema documents and uses them to pull
structured data out of scanned images through a hosted chat-completion model.

  - schema   create, inspect and validate schema files
  - edit     interactive schema editor
  - ocr      run one image or a whole folder through the model
  - config   manage the API key, model and retry settings`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupServices(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ~/.schemaocr/config.json)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "schemaocr home directory (default: ~/.schemaocr)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&envFile, "env-file", ".env", "dotenv file loaded before reading the config",
	)

	rootCmd.AddCommand(versionCmd, schemaCmd, editCmd, ocrCmd, configCmd)
}

// setupServices runs before every command and attaches the shared services
// to the command context.
func setupServices(cmd *cobra.Command) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	output.SetFormat(format)

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to load env file", "path", envFile, "error", err)
		}
	}

	h, err := home.New(homeDir)
	if err != nil {
		return err
	}
	path := cfgFile
	if path == "" {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path, logger)
	if err != nil {
		return err
	}

	cmd.SetContext(svcctx.WithServices(cmd.Context(), &svcctx.Services{
		Config:    mgr,
		Home:      h,
		Logger:    logger,
		NewClient: newClient,
	}))
	return nil
}

// newLogger builds the terminal slog logger.
func newLogger(level string) (*slog.Logger, error) {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	return slog.New(handler), nil
}

// services returns the services attached by setupServices.
func services(cmd *cobra.Command) (*svcctx.Services, error) {
	s := svcctx.ServicesFrom(cmd.Context())
	if s == nil {
		return nil, errors.New("services not initialized")
	}
	return s, nil
}
