package enforcement

import (
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/ledger"
)

// Event is the persisted enforcement-ledger record. The payload shape is
// stable; meta absorbs future metadata without breaking consumers.
type Event struct {
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"kind"`
	Payload   Result         `json:"payload"`
	Meta      map[string]any `json:"meta"`
}

// EventKind is the kind value of every enforcement-ledger record.
const EventKind = "enforcement_event"

// EventWriter appends dispatch results to the enforcement ledger. It
// performs no enforcement or decision logic of its own; the decision and
// enforcement trails stay distinguishable by living in separate files.
type EventWriter struct {
	ledger *ledger.Ledger
}

// NewEventWriter creates a writer appending to the given ledger path.
func NewEventWriter(path string) *EventWriter {
	return &EventWriter{ledger: ledger.New(path)}
}

// Append writes one enforcement result as a hash-chained ledger entry.
func (w *EventWriter) Append(result Result, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	event := Event{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Kind:      EventKind,
		Payload:   result,
		Meta:      meta,
	}
	if err := w.ledger.Append(event); err != nil {
		return fmt.Errorf("enforcement: append event: %w", err)
	}
	return nil
}
