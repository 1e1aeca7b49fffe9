package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/jackzampolin/schemaocr/internal/editor"
	"github.com/jackzampolin/schemaocr/internal/ocr"
	"github.com/jackzampolin/schemaocr/internal/output"
	"github.com/jackzampolin/schemaocr/internal/tree"
)

var (
	ErrFieldLocked = errors.New("field is not editable for this node")
	ErrOCRRunning  = errors.New("an OCR request is already running")
	ErrUnsaved     = errors.New("unsaved changes: save first, or use quit! to discard them")
)

type command struct {
	usage   string
	help    string
	minArgs int
	maxArgs int // -1 for no limit
	run     func(ctx context.Context, s *Shell, args []string) error
}

var (
	commands     map[string]command
	commandOrder []string
)

func init() {
	register := func(name string, c command) {
		commands[name] = c
		commandOrder = append(commandOrder, name)
	}
	commands = make(map[string]command)
	register("tree", command{usage: "tree", help: "show the schema tree", run: cmdTree})
	register("select", command{usage: "select <pointer>", help: "select a node by JSON pointer (\"\" or / for the root)", minArgs: 1, maxArgs: 1, run: cmdSelect})
	register("show", command{usage: "show", help: "show the pending form of the selection", run: cmdShow})
	register("set", command{usage: "set <field> [value...]", help: "set a form field; no value clears it", minArgs: 1, maxArgs: -1, run: cmdSet})
	register("type", command{usage: "type <type...>", help: "set the type union", minArgs: 1, maxArgs: -1, run: cmdType})
	register("commit", command{usage: "commit", help: "apply the pending form", run: cmdCommit})
	register("add", command{usage: "add <name>", help: "add a property to the nearest object", minArgs: 1, maxArgs: 1, run: cmdAdd})
	register("append", command{usage: "append", help: "append an item to the nearest array", run: cmdAppend})
	register("delete", command{usage: "delete", help: "delete the selection", run: cmdDelete})
	register("up", command{usage: "up", help: "move the selection up", run: cmdUp})
	register("down", command{usage: "down", help: "move the selection down", run: cmdDown})
	register("validate", command{usage: "validate", help: "check the schema against draft-07", run: cmdValidate})
	register("check", command{usage: "check <instance.json>", help: "check a data file against the schema", minArgs: 1, maxArgs: 1, run: cmdCheck})
	register("save", command{usage: "save [path]", help: "save the schema", maxArgs: 1, run: cmdSave})
	register("ocr", command{usage: "ocr <image> [out.json]", help: "extract data from an image with the schema", minArgs: 1, maxArgs: 2, run: cmdOCR})
	register("help", command{usage: "help", help: "list commands", run: cmdHelp})
	register("quit", command{usage: "quit", help: "leave the editor", run: cmdQuit})
	commands["quit!"] = command{usage: "quit!", run: func(context.Context, *Shell, []string) error { return ErrQuit }}
	commands["exit"] = commands["quit"]
}

func cmdTree(_ context.Context, s *Shell, _ []string) error {
	return tree.Render(s.out, s.ed.Projection(), s.ed.Selected())
}

func cmdSelect(_ context.Context, s *Shell, args []string) error {
	form, err := s.ed.Select(args[0])
	if err != nil {
		return err
	}
	s.form = form
	return output.To(s.out, output.FormatYAML, form)
}

func cmdShow(_ context.Context, s *Shell, _ []string) error {
	return output.To(s.out, output.FormatYAML, s.form)
}

func cmdSet(_ context.Context, s *Shell, args []string) error {
	return setField(&s.form, args[0], strings.Join(args[1:], " "))
}

// setField writes raw into the named form field. An empty raw clears
// constraint fields.
func setField(f *editor.Form, field, raw string) error {
	locked := func(enabled bool) error {
		if !enabled {
			return fmt.Errorf("%w: %s", ErrFieldLocked, field)
		}
		return nil
	}
	switch field {
	case "name":
		if err := locked(f.Fields.Name); err != nil {
			return err
		}
		f.Name = raw
	case "required":
		if err := locked(f.Fields.Required); err != nil {
			return err
		}
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return fmt.Errorf("required: %w", err)
		}
		f.Required = v
	case "title":
		if err := locked(f.Fields.Title); err != nil {
			return err
		}
		f.Title = raw
	case "description":
		if err := locked(f.Fields.Description); err != nil {
			return err
		}
		f.Description = raw
	case "minLength", "maxLength":
		if err := locked(f.Fields.Length); err != nil {
			return err
		}
		return setInt(field, raw, map[string]**int{"minLength": &f.MinLength, "maxLength": &f.MaxLength}[field])
	case "minItems", "maxItems":
		if err := locked(f.Fields.ItemCount); err != nil {
			return err
		}
		return setInt(field, raw, map[string]**int{"minItems": &f.MinItems, "maxItems": &f.MaxItems}[field])
	case "minimum", "maximum":
		if err := locked(f.Fields.Bounds); err != nil {
			return err
		}
		dst := map[string]**float64{"minimum": &f.Minimum, "maximum": &f.Maximum}[field]
		if raw == "" {
			*dst = nil
			return nil
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		*dst = &v
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func setInt(field, raw string, dst **int) error {
	if raw == "" {
		*dst = nil
		return nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = &v
	return nil
}

func cmdType(_ context.Context, s *Shell, args []string) error {
	return s.form.SetTypes(args)
}

func cmdCommit(_ context.Context, s *Shell, _ []string) error {
	_, err := s.ed.Commit(s.form)
	if err != nil {
		return err
	}
	return s.refreshForm()
}

func (s *Shell) refreshForm() error {
	form, err := s.ed.Form()
	if err != nil {
		return err
	}
	s.form = form
	return nil
}

func cmdAdd(_ context.Context, s *Shell, args []string) error {
	pointer, err := s.ed.AddProperty(s.ed.Selected(), args[0])
	if err != nil {
		return err
	}
	s.printf("Added %s\n", pointer)
	return s.refreshForm()
}

func cmdAppend(_ context.Context, s *Shell, _ []string) error {
	pointer, err := s.ed.AddArrayItem(s.ed.Selected())
	if err != nil {
		return err
	}
	s.printf("Added %s\n", pointer)
	return s.refreshForm()
}

func cmdDelete(_ context.Context, s *Shell, _ []string) error {
	if err := s.ed.Delete(s.ed.Selected()); err != nil {
		return err
	}
	return s.refreshForm()
}

func cmdUp(_ context.Context, s *Shell, _ []string) error {
	if _, err := s.ed.MoveUp(s.ed.Selected()); err != nil {
		return err
	}
	return s.refreshForm()
}

func cmdDown(_ context.Context, s *Shell, _ []string) error {
	if _, err := s.ed.MoveDown(s.ed.Selected()); err != nil {
		return err
	}
	return s.refreshForm()
}

func cmdValidate(_ context.Context, s *Shell, _ []string) error {
	report, err := s.ed.ValidateSchema()
	if err != nil {
		return err
	}
	s.printf("%s", report.String())
	return nil
}

func cmdCheck(_ context.Context, s *Shell, args []string) error {
	report, err := s.ed.ValidateInstance(args[0])
	if err != nil {
		return err
	}
	s.printf("%s", report.String())
	return nil
}

func cmdSave(_ context.Context, s *Shell, args []string) error {
	if len(args) == 1 {
		return s.ed.SaveAs(args[0])
	}
	return s.ed.Save()
}

func cmdOCR(ctx context.Context, s *Shell, args []string) error {
	if s.task != nil {
		return ErrOCRRunning
	}
	if s.newClient == nil {
		return errors.New("OCR is not configured")
	}
	cfg := s.config()
	url, err := ocr.DataURLFromFile(args[0])
	if err != nil {
		return err
	}
	schema, err := ocr.StrictSchema(s.ed.Snapshot(), cfg.StrictOptions()).Value()
	if err != nil {
		return err
	}
	s.taskOutput = ""
	if len(args) == 2 {
		s.taskOutput = args[1]
	}
	s.task = ocr.Start(ctx, s.newClient(cfg), &ocr.Request{
		Name:    args[0],
		DataURL: url,
		Schema:  schema,
		Prompt:  cfg.EffectivePrompt(),
	})
	s.printf("Running OCR on %s...\n", args[0])
	return nil
}

func (s *Shell) handleOCREvent(ev ocr.Event) {
	switch ev.Kind {
	case ocr.EventResult:
		data := ocr.FormatJSON(ev.Result.Data)
		if s.taskOutput == "" {
			s.printf("%s", data)
			return
		}
		if err := os.WriteFile(s.taskOutput, data, 0o644); err != nil {
			s.printf("Error: failed to write result: %v\n", err)
			return
		}
		s.printf("Wrote %s\n", s.taskOutput)
	case ocr.EventError:
		s.printf("OCR failed: %s\n", ev.Message)
	}
}

func cmdHelp(_ context.Context, s *Shell, _ []string) error {
	for _, name := range commandOrder {
		c := commands[name]
		s.printf("  %-24s %s\n", c.usage, c.help)
	}
	return nil
}

func cmdQuit(_ context.Context, s *Shell, _ []string) error {
	if s.dirty {
		return ErrUnsaved
	}
	return ErrQuit
}
