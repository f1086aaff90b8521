package model

import "context"

// EventKind names an entry in the event journal.
type EventKind string

const (
	EventSelectionPublished  EventKind = "selection_published"
	EventSelectionConsumed   EventKind = "selection_consumed"
	EventSelectionCleared    EventKind = "selection_cleared"
	EventNavigationPublished EventKind = "navigation_published"
	EventNavigationAcked     EventKind = "navigation_acknowledged"
)

// Event is one journal record.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	FilePath  string    `json:"file_path"`
	StartLine int       `json:"start_line,omitempty"`
	EndLine   int       `json:"end_line,omitempty"`
	Target    string    `json:"target,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

// Recorder receives channel events. Implementations must not block the
// caller for long and must not fail it.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// EventLister reads back recorded events, newest first.
type EventLister interface {
	List(ctx context.Context, kind EventKind, limit int) ([]Event, error)
}

// Launcher ensures a presentation server is running and returns its URL.
type Launcher interface {
	Ensure(ctx context.Context) (string, error)
	Stop(ctx context.Context) error
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}
