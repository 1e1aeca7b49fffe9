package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/schemaocr/internal/editor"
	"github.com/jackzampolin/schemaocr/internal/ocr"
	"github.com/jackzampolin/schemaocr/internal/output"
	"github.com/jackzampolin/schemaocr/internal/schemadoc"
	"github.com/jackzampolin/schemaocr/internal/tree"
	"github.com/jackzampolin/schemaocr/internal/validate"
)

var errReportInvalid = errors.New("validation failed")

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create, inspect and validate schema files",
}

var schemaNewCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Write an empty draft-07 object schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := schemadoc.New()
		if err := doc.SaveAs(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", args[0])
		return nil
	},
}

var schemaTreeCmd = &cobra.Command{
	Use:   "tree <path>",
	Short: "Show a schema as a tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := schemadoc.Load(args[0])
		if err != nil {
			return err
		}
		return tree.Render(cmd.OutOrStdout(), tree.Build(doc.Root), tree.NoSelection)
	},
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Check a schema against the draft-07 meta-schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := schemadoc.Load(args[0])
		if err != nil {
			return err
		}
		v, err := doc.Value()
		if err != nil {
			return err
		}
		report, err := validate.Schema(v)
		if err != nil {
			return err
		}
		return printReport(cmd, report)
	},
}

var schemaCheckCmd = &cobra.Command{
	Use:   "check <schema> <instance.json>",
	Short: "Check a data file against a schema",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		doc, err := loadValidSchema(args[0])
		if err != nil {
			return err
		}
		report, err := editor.New(doc, s.Logger).ValidateInstance(args[1])
		if err != nil {
			return err
		}
		return printReport(cmd, report)
	},
}

var schemaStrictCmd = &cobra.Command{
	Use:   "strict <path>",
	Short: "Print the schema as it is sent to the model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		doc, err := loadValidSchema(args[0])
		if err != nil {
			return err
		}
		strict := ocr.StrictSchema(doc.Root, s.Config.Get().StrictOptions())
		data, err := schemadoc.Marshal(strict)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(output.MaybeColor(cmd.OutOrStdout(), data))
		return err
	},
}

func init() {
	schemaCmd.AddCommand(schemaNewCmd, schemaTreeCmd, schemaValidateCmd, schemaCheckCmd, schemaStrictCmd)
}

// printReport writes the report text, or the structured report with
// --output json. An invalid report is returned as an error for the exit code.
func printReport(cmd *cobra.Command, report *validate.Report) error {
	if output.CurrentFormat() == output.FormatJSON {
		if err := output.To(cmd.OutOrStdout(), output.FormatJSON, report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), report.String())
	}
	if !report.Valid {
		return errReportInvalid
	}
	return nil
}

// loadValidSchema loads a schema file and refuses one that fails draft-07
// validation.
func loadValidSchema(path string) (*schemadoc.Document, error) {
	doc, err := schemadoc.Load(path)
	if err != nil {
		return nil, err
	}
	v, err := doc.Value()
	if err != nil {
		return nil, err
	}
	report, err := validate.Schema(v)
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
