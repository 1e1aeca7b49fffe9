package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/schemaocr/internal/config"
	"github.com/jackzampolin/schemaocr/internal/editor"
	"github.com/jackzampolin/schemaocr/internal/ocr"
	"github.com/jackzampolin/schemaocr/internal/output"
	"github.com/jackzampolin/schemaocr/internal/shell"
)

var editWatch bool

var editCmd = &cobra.Command{
	Use:   "edit [path]",
	Short: "Edit a schema interactively",
	Long: `Open a schema in the interactive editor. Without a path, or when the
file does not exist yet, editing starts from an empty object schema.

A file that cannot be parsed, or that is not a valid draft-07 schema, opens
with editing disabled. Type "help" in the editor for the command list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		ed, err := editor.Open(path, s.Logger)
		if err != nil {
			s.Logger.Warn("schema opened read-only", "path", path, "error", err)
		}
		if editWatch {
			s.Config.WatchConfig()
		}

		prompt := ""
		if output.IsTerminal(os.Stdout) {
			prompt = "schemaocr> "
		}
		sh := shell.New(shell.Options{
			Editor: ed,
			In:     cmd.InOrStdin(),
			Out:    cmd.OutOrStdout(),
			Config: s.Config,
			NewClient: func(cfg *config.Config) ocr.Client {
				return s.Client(cfg)
			},
			Prompt: prompt,
			Logger: s.Logger,
		})
		return sh.Run(cmd.Context())
	},
}

func init() {
	editCmd.Flags().BoolVar(&editWatch, "watch-config", true, "reload the config file when it changes")
}
