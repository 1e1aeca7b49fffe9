package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the schemaocr home directory.
	DefaultDirName = ".schemaocr"

	// ResultsDirName is the subdirectory for batch OCR output when no
	// output folder is given.
	ResultsDirName = "results"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.json"
)

// Dir represents the schemaocr home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.schemaocr).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ResultsPath returns the directory that collects batch output.
func (d *Dir) ResultsPath() string {
	return filepath.Join(d.path, ResultsDirName)
}

// BatchResultsDir returns the default output folder for a batch over
// inputDir.
func (d *Dir) BatchResultsDir(inputDir string) string {
	name := filepath.Base(filepath.Clean(inputDir))
	if name == "." || name == string(filepath.Separator) {
		name = "batch"
	}
	return filepath.Join(d.ResultsPath(), name)
}

// EnsureExists creates the home directory if it doesn't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	return nil
}
