package ocr

import "context"

// EventKind identifies a worker notification.
type EventKind int

const (
	EventProgress EventKind = iota
	EventResult
	EventError
	EventNotice
	EventDone
)

// Event is sent from a worker goroutine to the loop that started it.
type Event struct {
	Kind EventKind
	// Input is the file the event concerns, when there is one.
	Input   string
	Output  string
	Percent int
	Result  *Result
	Err     error
	Message string
	// Summary is set on the EventDone of a batch.
	Summary *Summary
}

// Task is a running OCR worker. Events are delivered on Events, which is
// closed after the EventDone event.
type Task struct {
	Events <-chan Event
	cancel context.CancelFunc
}

// Cancel asks the worker to stop. The request in flight is abandoned.
func (t *Task) Cancel() { t.cancel() }

// Wait drains the task and returns the last result and error it reported.
func (t *Task) Wait() (*Result, error) {
	var (
		res *Result
		err error
	)
	for ev := range t.Events {
		switch ev.Kind {
		case EventResult:
			res = ev.Result
		case EventError:
			err = ev.Err
		case EventDone:
			if ev.Err != nil {
				err = ev.Err
			}
		}
	}
	return res, err
}

// emit sends ev, giving up once ctx is done and the buffer is full so a
// cancelled worker never blocks on a reader that went away.
func emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
		return
	default:
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// Start runs one request on a dedicated goroutine.
func Start(ctx context.Context, client Client, req *Request) *Task {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event, 4)
	go func() {
		defer close(events)
		defer cancel()
		res, err := client.Extract(ctx, req)
		if err != nil {
			events <- Event{Kind: EventError, Input: req.Name, Err: err, Message: err.Error()}
		} else {
			events <- Event{Kind: EventResult, Input: req.Name, Result: res}
		}
		events <- Event{Kind: EventDone}
	}()
	return &Task{Events: events, cancel: cancel}
}

// Run is the blocking form of Start.
func Run(ctx context.Context, client Client, req *Request) (*Result, error) {
	return Start(ctx, client, req).Wait()
}
