// Package trace provides event-log recording for the hospital simulation.
// This package has no dependencies on sim/ or sim/coord/; it stores pure
// data types, so both the world engine and the coordinator can record into
// the same Recorder.
package trace

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one discrete entry in the audit log.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      string
	Payload   map[string]any
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s %v", e.Timestamp.Format("15:04"), e.Type, e.Payload)
}

// newEvent stamps a fresh Event with a uuid.
func newEvent(ts time.Time, eventType string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Type:      eventType,
		Payload:   payload,
	}
}

// MovementRecord captures one hop of an agent through the spatial graph.
type MovementRecord struct {
	AgentID   string
	From      string
	To        string
	Timestamp time.Time
}

// ResourceTimeSlot is a derived record of one resource occupation interval,
// used purely to detect double-booking after the fact. It is a checked
// view, not a source of truth: the engine never reads it back.
type ResourceTimeSlot struct {
	ResourceID string
	Start      time.Time
	End        time.Time
	HolderID   string
}

// Overlaps reports whether two slots intersect in time.
func (s ResourceTimeSlot) Overlaps(other ResourceTimeSlot) bool {
	return s.Start.Before(other.End) && s.End.After(other.Start)
}

func (s ResourceTimeSlot) String() string {
	return fmt.Sprintf("%s [%s-%s] holder=%s",
		s.ResourceID, s.Start.Format("15:04"), s.End.Format("15:04"), s.HolderID)
}

// Conflict pairs two overlapping slots on the same resource.
type Conflict struct {
	ResourceID string
	First      ResourceTimeSlot
	Second     ResourceTimeSlot
}

func (c Conflict) String() string {
	return fmt.Sprintf("double booking on %s: %v vs %v", c.ResourceID, c.First, c.Second)
}
