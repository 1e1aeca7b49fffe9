package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/pretty"

	"github.com/jackzampolin/schemaocr/internal/pages"
)

var outputJSON = &pretty.Options{Indent: "    ", SortKeys: false}

// Batch processes every picture under InputDir, one at a time, writing one
// JSON file per picture into OutputDir.
type Batch struct {
	Client    Client
	Schema    any
	Prompt    string
	InputDir  string
	OutputDir string
	// IncludePDF adds PDF inputs, one output per page. Needs Renderer.
	IncludePDF bool
	Renderer   pages.Renderer
	Logger     *slog.Logger
}

// Failure is one input that produced no output.
type Failure struct {
	Input string `json:"input" yaml:"input"`
	Error string `json:"error" yaml:"error"`
}

// Summary is the outcome of a batch run.
type Summary struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Total     int           `json:"total" yaml:"total"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Outputs   []string      `json:"outputs" yaml:"outputs"`
	Failures  []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Start runs the batch on a dedicated goroutine. The EventDone event carries
// the summary.
func (b *Batch) Start(ctx context.Context) *Task {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer cancel()
		summary, err := b.Run(ctx, func(ev Event) { emit(ctx, events, ev) })
		emit(ctx, events, Event{Kind: EventDone, Summary: summary, Err: err})
	}()
	return &Task{Events: events, cancel: cancel}
}

// Run processes the batch on the calling goroutine. Per-input failures are
// reported through onEvent and the summary; they do not stop the run. A
// folder without pictures yields ErrNoPictures and writes nothing.
func (b *Batch) Run(ctx context.Context, onEvent func(Event)) (*Summary, error) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if b.Client == nil {
		return nil, fmt.Errorf("batch has no client")
	}

	start := time.Now()
	summary := &Summary{RunID: uuid.New().String()}
	logger = logger.With("run_id", summary.RunID)

	inputs, err := pages.Discover(b.InputDir, b.IncludePDF)
	if err != nil {
		return summary, err
	}
	items, skipped, err := pages.Expand(ctx, inputs, b.Renderer)
	if err != nil {
		return summary, err
	}
	summary.Total = len(items) + len(skipped)
	if summary.Total == 0 {
		onEvent(Event{Kind: EventNotice, Message: NoPicturesNotice})
		return summary, ErrNoPictures
	}
	for _, sk := range skipped {
		summary.Failed++
		summary.Failures = append(summary.Failures, Failure{Input: sk.Input.Path, Error: sk.Err.Error()})
		logger.Warn("batch input failed", "input", sk.Input.Path, "error", sk.Err)
		onEvent(Event{Kind: EventError, Input: sk.Input.Path, Err: sk.Err, Message: fmt.Sprintf("%s - %v", sk.Input.Path, sk.Err)})
	}
	if len(items) == 0 {
		summary.Duration = time.Since(start)
		return summary, nil
	}

	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return summary, fmt.Errorf("failed to create output folder: %w", err)
	}
	logger.Info("batch started", "inputs", len(items), "input_dir", b.InputDir, "output_dir", b.OutputDir)

	used := make(map[string]int)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		label := item.Input.Path
		if item.Number > 0 {
			label = fmt.Sprintf("%s (page %d)", item.Input.Path, item.Number)
		}
		out, err := b.processOne(ctx, item, outputName(used, item.Name))
		if err != nil {
			if ctx.Err() != nil {
				summary.Duration = time.Since(start)
				return summary, ctx.Err()
			}
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Input: label, Error: err.Error()})
			logger.Warn("batch input failed", "input", label, "error", err)
			onEvent(Event{Kind: EventError, Input: label, Err: err, Message: fmt.Sprintf("%s - %v", label, err)})
		} else {
			summary.Succeeded++
			summary.Outputs = append(summary.Outputs, out)
			onEvent(Event{Kind: EventResult, Input: label, Output: out})
		}
		onEvent(Event{Kind: EventProgress, Input: label, Percent: (i + 1) * 100 / len(items)})
	}

	summary.Duration = time.Since(start)
	logger.Info("batch finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", summary.Duration)
	return summary, nil
}

func (b *Batch) processOne(ctx context.Context, item pages.Page, name string) (string, error) {
	data, err := pages.Load(ctx, item, b.Renderer)
	if err != nil {
		return "", err
	}
	url, err := DataURL(data)
	if err != nil {
		return "", err
	}
	res, err := b.Client.Extract(ctx, &Request{
		Name:    item.Name,
		DataURL: url,
		Schema:  b.Schema,
		Prompt:  b.Prompt,
	})
	if err != nil {
		return "", err
	}
	out := filepath.Join(b.OutputDir, name+".json")
	if err := WriteResult(out, res); err != nil {
		return "", err
	}
	return out, nil
}

// WriteResult writes the extracted data with 4-space indentation, keeping
// the key order the model produced.
func WriteResult(path string, res *Result) error {
	if res == nil || len(res.Data) == 0 {
		return errors.New("no data to write")
	}
	if err := os.WriteFile(path, FormatJSON(res.Data), 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// FormatJSON indents JSON with four spaces without reordering keys.
func FormatJSON(data []byte) []byte {
	return pretty.PrettyOptions(data, outputJSON)
}

// outputName returns name, or name_2, name_3... when an earlier input in the
// run already used it.
func outputName(used map[string]int, name string) string {
	used[name]++
	if n := used[name]; n > 1 {
		return name + "_" + strconv.Itoa(n)
	}
	return name
}
