package editor

import (
	"slices"

	"github.com/jackzampolin/schemaocr/internal/validate"
)

// EventKind identifies an editor notification.
type EventKind int

const (
	EventSelected EventKind = iota
	EventNodeChanged
	EventStructureChanged
	EventValidationFailed
	EventSaved
)

func (k EventKind) String() string {
	switch k {
	case EventSelected:
		return "selected"
	case EventNodeChanged:
		return "node_changed"
	case EventStructureChanged:
		return "structure_changed"
	case EventValidationFailed:
		return "validation_failed"
	case EventSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the editor state changed.
type Event struct {
	Kind    EventKind
	Pointer string
	// Report is set for EventValidationFailed.
	Report *validate.Report
	// Path is the file written for EventSaved.
	Path string
}

// Subscribe registers fn for every event. Callbacks run synchronously on the
// goroutine that called the editor. The returned func removes fn.
func (e *Editor) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := e.nextSubID
	e.nextSubID++
	e.subs[id] = fn
	return func() { delete(e.subs, id) }
}

func (e *Editor) emit(ev Event) {
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	// Registration order.
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := e.subs[id]; ok {
			fn(ev)
		}
	}
}
