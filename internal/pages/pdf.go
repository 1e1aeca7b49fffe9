package pages

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Renderer turns PDF pages into images.
type Renderer interface {
	PageCount(path string) (int, error)
	RenderPage(ctx context.Context, path string, page int) ([]byte, error)
}

// PDFRenderer counts pages with pdfcpu and renders them with pdftoppm
// (poppler-utils).
type PDFRenderer struct {
	// Command is the pdftoppm binary; defaults to "pdftoppm" on PATH.
	Command string
	// DPI defaults to 300.
	DPI int
}

// PageCount returns the number of pages in the PDF at path.
func (r *PDFRenderer) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

// RenderPage renders one 1-based page as PNG.
func (r *PDFRenderer) RenderPage(ctx context.Context, path string, page int) ([]byte, error) {
	command := r.Command
	if command == "" {
		command = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}

	tmpDir, err := os.MkdirTemp("", "schemaocr-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(page)
	// -singlefile: no page number suffix on the output name
	cmd := exec.CommandContext(ctx, command,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		path,
		outputPrefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}

var _ Renderer = (*PDFRenderer)(nil)
