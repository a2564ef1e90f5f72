package trace

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Recorder collects events, movement history, and resource time slots
// during a run. Safe for concurrent use: the world and coordinator append
// from different goroutines.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	moves  []MovementRecord
	slots  map[string][]ResourceTimeSlot
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		slots: make(map[string][]ResourceTimeSlot),
	}
}

// Record appends an event with the given simulation timestamp.
func (r *Recorder) Record(ts time.Time, eventType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, newEvent(ts, eventType, payload))
}

// RecordMove appends one hop to the movement history.
func (r *Recorder) RecordMove(ts time.Time, agentID, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, MovementRecord{AgentID: agentID, From: from, To: to, Timestamp: ts})
}

// RecordSlot appends a resource occupation interval for later auditing.
func (r *Recorder) RecordSlot(resourceID, holderID string, start, end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[resourceID] = append(r.slots[resourceID], ResourceTimeSlot{
		ResourceID: resourceID,
		Start:      start,
		End:        end,
		HolderID:   holderID,
	})
}

// Events returns a copy of all recorded events in append order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Tail returns the most recent n events.
func (r *Recorder) Tail(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.events) {
		n = len(r.events)
	}
	out := make([]Event, n)
	copy(out, r.events[len(r.events)-n:])
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Moves returns a copy of the movement history.
func (r *Recorder) Moves() []MovementRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MovementRecord, len(r.moves))
	copy(out, r.moves)
	return out
}

// Slots returns a copy of the recorded time slots for one resource.
func (r *Recorder) Slots(resourceID string) []ResourceTimeSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ResourceTimeSlot, len(r.slots[resourceID]))
	copy(out, r.slots[resourceID])
	return out
}

// DetectDoubleBookings scans every resource's slots for overlapping
// intervals and returns the conflicts found. The scan never mutates engine
// state; a non-empty result indicates a scheduling bug upstream.
func (r *Recorder) DetectDoubleBookings() []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conflicts []Conflict
	resources := make([]string, 0, len(r.slots))
	for id := range r.slots {
		resources = append(resources, id)
	}
	sort.Strings(resources)
	for _, id := range resources {
		slots := r.slots[id]
		for i := 0; i < len(slots); i++ {
			for j := i + 1; j < len(slots); j++ {
				if slots[i].Overlaps(slots[j]) {
					conflicts = append(conflicts, Conflict{
						ResourceID: id,
						First:      slots[i],
						Second:     slots[j],
					})
				}
			}
		}
	}
	return conflicts
}

// Summary renders per-type event counts and per-resource busy minutes.
func (r *Recorder) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range r.events {
		counts[e.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	var sb strings.Builder
	sb.WriteString("=== Event Summary ===\n")
	for _, t := range types {
		fmt.Fprintf(&sb, "%-24s %d\n", t, counts[t])
	}

	resources := make([]string, 0, len(r.slots))
	for id := range r.slots {
		resources = append(resources, id)
	}
	sort.Strings(resources)
	if len(resources) > 0 {
		sb.WriteString("=== Resource Usage ===\n")
		for _, id := range resources {
			var busy time.Duration
			for _, s := range r.slots[id] {
				busy += s.End.Sub(s.Start)
			}
			fmt.Fprintf(&sb, "%-24s %d slots, %.0f busy minutes\n", id, len(r.slots[id]), busy.Minutes())
		}
	}
	return sb.String()
}
