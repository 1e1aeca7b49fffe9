package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/schemaocr/internal/config"
	"github.com/jackzampolin/schemaocr/internal/ocr"
	"github.com/jackzampolin/schemaocr/internal/output"
	"github.com/jackzampolin/schemaocr/internal/pages"
)

var (
	ocrOut      string
	ocrPDF      bool
	ocrPdftoppm string
	ocrDPI      int
)

var ocrCmd = &cobra.Command{
	Use:   "ocr",
	Short: "Extract schema-shaped data from images",
}

var ocrImageCmd = &cobra.Command{
	Use:   "image <schema> <image>",
	Short: "Run one image through the model",
	Long: `Send one image together with the schema to the model and print the
extracted JSON, or write it to --out.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		cfg := s.Config.Get()
		schema, err := requestSchema(args[0], cfg)
		if err != nil {
			return err
		}
		url, err := ocr.DataURLFromFile(args[1])
		if err != nil {
			return err
		}

		task := ocr.Start(cmd.Context(), s.Client(cfg), &ocr.Request{
			Name:    args[1],
			DataURL: url,
			Schema:  schema,
			Prompt:  cfg.EffectivePrompt(),
		})
		res, err := task.Wait()
		if err != nil {
			return describeOCRError(err)
		}
		s.Logger.Debug("ocr finished",
			"request_id", res.RequestID,
			"attempts", res.Attempts,
			"tokens", res.Usage.TotalTokens,
			"duration", res.Duration)

		if ocrOut != "" {
			if err := ocr.WriteResult(ocrOut, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", ocrOut)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(output.MaybeColor(cmd.OutOrStdout(), ocr.FormatJSON(res.Data)))
		return err
	},
}

var ocrBatchCmd = &cobra.Command{
	Use:   "batch <schema> <folder>",
	Short: "Run every picture in a folder through the model",
	Long: `Process every .jpg, .jpeg and .png file under the folder, one at a time,
writing <name>.json per picture into --out (default: a folder named after
the input under ~/.schemaocr/results). Failures are reported and skipped.

With --pdf, PDF files are included too; each page becomes one output
(<name>_page_0001.json). Rendering pages needs pdftoppm (poppler-utils).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := services(cmd)
		if err != nil {
			return err
		}
		cfg := s.Config.Get()
		schema, err := requestSchema(args[0], cfg)
		if err != nil {
			return err
		}
		outDir := ocrOut
		if outDir == "" {
			outDir = s.Home.BatchResultsDir(args[1])
		}

		batch := &ocr.Batch{
			Client:     s.Client(cfg),
			Schema:     schema,
			Prompt:     cfg.EffectivePrompt(),
			InputDir:   args[1],
			OutputDir:  outDir,
			IncludePDF: ocrPDF,
			Logger:     s.Logger,
		}
		if ocrPDF {
			batch.Renderer = &pages.PDFRenderer{Command: ocrPdftoppm, DPI: ocrDPI}
		}

		var summary *ocr.Summary
		var runErr error
		for ev := range batch.Start(cmd.Context()).Events {
			switch ev.Kind {
			case ocr.EventProgress:
				fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", ev.Percent, ev.Input)
			case ocr.EventError:
				fmt.Fprintln(cmd.ErrOrStderr(), ev.Message)
			case ocr.EventNotice:
				fmt.Fprintln(cmd.ErrOrStderr(), ev.Message)
			case ocr.EventDone:
				summary, runErr = ev.Summary, ev.Err
			}
		}
		if errors.Is(runErr, ocr.ErrNoPictures) {
			return nil
		}
		if runErr != nil {
			return runErr
		}
		return output.To(cmd.OutOrStdout(), output.CurrentFormat(), summary)
	},
}

func init() {
	ocrImageCmd.Flags().StringVar(&ocrOut, "out", "", "write the result to this file instead of stdout")
	ocrBatchCmd.Flags().StringVar(&ocrOut, "out", "", "output folder")
	ocrBatchCmd.Flags().BoolVar(&ocrPDF, "pdf", false, "include PDF files, one output per page")
	ocrBatchCmd.Flags().StringVar(&ocrPdftoppm, "pdftoppm", "pdftoppm", "pdftoppm binary used to render PDF pages")
	ocrBatchCmd.Flags().IntVar(&ocrDPI, "dpi", 300, "PDF rendering resolution")
	ocrCmd.AddCommand(ocrImageCmd, ocrBatchCmd)
}

// requestSchema loads a valid schema and returns its strict form as a plain
// value for the request.
func requestSchema(path string, cfg *config.Config) (any, error) {
	doc, err := loadValidSchema(path)
	if err != nil {
		return nil, err
	}
	return ocr.StrictSchema(doc.Root, cfg.StrictOptions()).Value()
}

// describeOCRError adds a hint to errors the user can fix.
func describeOCRError(err error) error {
	var apiErr *ocr.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Kind {
	case ocr.ErrorAuth:
		return fmt.Errorf("%w (check openai_api_key with: schemaocr config set openai_api_key <key>)", err)
	case ocr.ErrorModel:
		return fmt.Errorf("%w (list available models with: schemaocr config models)", err)
	case ocr.ErrorRateLimit:
		if apiErr.RetryAfter > 0 {
			return fmt.Errorf("%w (retry after %s)", err, apiErr.RetryAfter)
		}
	}
	return err
}
