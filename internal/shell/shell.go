// Package shell is the interactive schema editing loop. One goroutine owns
// the editor; OCR requests run on worker goroutines and report back to the
// loop through their event channels.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/shlex"

	"github.com/jackzampolin/schemaocr/internal/config"
	"github.com/jackzampolin/schemaocr/internal/editor"
	"github.com/jackzampolin/schemaocr/internal/ocr"
	"github.com/jackzampolin/schemaocr/internal/validate"
)

// ErrQuit ends the loop.
var ErrQuit = errors.New("quit")

// ClientFunc builds an OCR client for the configuration in effect.
type ClientFunc func(cfg *config.Config) ocr.Client

// Options configures a Shell.
type Options struct {
	Editor *editor.Editor
	In     io.Reader
	Out    io.Writer
	// Config is optional; without it the defaults apply.
	Config    *config.Manager
	NewClient ClientFunc
	// Prompt is written before each command when non-empty.
	Prompt string
	Logger *slog.Logger
}

// Shell reads commands and applies them to an editor.
type Shell struct {
	ed        *editor.Editor
	in        io.Reader
	out       io.Writer
	prompt    string
	newClient ClientFunc
	logger    *slog.Logger

	// form is the pending property panel of the selection.
	form  editor.Form
	dirty bool

	task       *ocr.Task
	taskOutput string

	cfgMu sync.Mutex
	cfg   *config.Config
}

// New creates a shell over opts.Editor.
func New(opts Options) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shell{
		ed:        opts.Editor,
		in:        opts.In,
		out:       opts.Out,
		prompt:    opts.Prompt,
		newClient: opts.NewClient,
		logger:    logger,
		cfg:       config.DefaultConfig(),
	}
	if opts.Config != nil {
		s.cfg = opts.Config.Get()
		opts.Config.OnChange(s.reloadConfig)
	}
	if form, err := s.ed.Form(); err == nil {
		s.form = form
	}
	s.ed.Subscribe(s.onEditorEvent)
	return s
}

// reloadConfig runs on the config watcher goroutine.
func (s *Shell) reloadConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	s.logger.Info("configuration reloaded", "model", cfg.Model)
}

func (s *Shell) config() *config.Config {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg
}

func (s *Shell) onEditorEvent(ev editor.Event) {
	switch ev.Kind {
	case editor.EventNodeChanged, editor.EventStructureChanged:
		s.dirty = true
	case editor.EventSaved:
		s.dirty = false
		s.printf("Saved to %s\n", ev.Path)
	case editor.EventValidationFailed:
		if ev.Report != nil {
			s.printf("%s", ev.Report.String())
		}
	}
}

// Run processes commands until quit, end of input or ctx is done. A running
// OCR request is waited for at end of input.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go readLines(s.in, lines, done)

	if s.ed.State() == editor.StateDisabled {
		s.printf("%v\n", editor.ErrDisabled)
	}
	s.showPrompt()
	for {
		var events <-chan ocr.Event
		if s.task != nil {
			events = s.task.Events
		}
		select {
		case <-ctx.Done():
			if s.task != nil {
				s.task.Cancel()
			}
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.task = nil
				continue
			}
			s.handleOCREvent(ev)
		case line, ok := <-lines:
			if !ok {
				s.drainTask()
				return nil
			}
			err := s.Exec(ctx, line)
			if errors.Is(err, ErrQuit) {
				s.drainTask()
				return nil
			}
			// Reports were already printed by the editor event.
			if _, reported := validate.ReportFrom(err); err != nil && !reported {
				s.printf("Error: %v\n", err)
			}
			s.showPrompt()
		}
	}
}

func (s *Shell) drainTask() {
	if s.task == nil {
		return
	}
	for ev := range s.task.Events {
		s.handleOCREvent(ev)
	}
	s.task = nil
}

func readLines(r io.Reader, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
}

// Exec runs one command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("cannot parse command: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	if len(args)-1 < cmd.minArgs || (cmd.maxArgs >= 0 && len(args)-1 > cmd.maxArgs) {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(ctx, s, args[1:])
}

func (s *Shell) showPrompt() {
	if s.prompt != "" {
		s.printf("%s", s.prompt)
	}
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
