package trace

import (
	"strings"
	"testing"
	"time"
)

func tt(minute int) time.Time {
	return time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
}

func TestRecorder_EventsAreCopiedAndStamped(t *testing.T) {
	r := NewRecorder()
	r.Record(tt(0), "exam_start", map[string]any{"agent": "p1"})
	r.Record(tt(5), "exam_complete", map[string]any{"agent": "p1"})

	events := r.Events()
	if len(events) != 2 {
		t.Fatalf("Events: got %d, want 2", len(events))
	}
	if events[0].ID == "" || events[0].ID == events[1].ID {
		t.Error("events missing unique ids")
	}
	if events[0].Type != "exam_start" {
		t.Errorf("Type: got %s", events[0].Type)
	}

	// Mutating the returned slice must not affect the recorder
	events[0].Type = "tampered"
	if r.Events()[0].Type != "exam_start" {
		t.Error("Events returned internal storage")
	}
}

func TestRecorder_TailReturnsMostRecent(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 5; i++ {
		r.Record(tt(i), "tick", nil)
	}
	r.Record(tt(10), "last", nil)

	tail := r.Tail(2)
	if len(tail) != 2 || tail[1].Type != "last" {
		t.Errorf("Tail(2): got %v", tail)
	}
	if got := r.Tail(100); len(got) != 6 {
		t.Errorf("Tail over length: got %d, want 6", len(got))
	}
}

func TestDetectDoubleBookings_FlagsOverlapOnSameResource(t *testing.T) {
	// GIVEN two overlapping slots on one unit and a clean slot on another
	r := NewRecorder()
	r.RecordSlot("xray_1", "p1", tt(0), tt(20))
	r.RecordSlot("xray_1", "p2", tt(10), tt(30))
	r.RecordSlot("ct_1", "p3", tt(0), tt(30))

	conflicts := r.DetectDoubleBookings()

	if len(conflicts) != 1 {
		t.Fatalf("conflicts: got %d, want 1", len(conflicts))
	}
	c := conflicts[0]
	if c.ResourceID != "xray_1" {
		t.Errorf("ResourceID: got %s", c.ResourceID)
	}
}

func TestDetectDoubleBookings_BackToBackIsClean(t *testing.T) {
	// Slots meeting exactly at a boundary do not overlap
	r := NewRecorder()
	r.RecordSlot("xray_1", "p1", tt(0), tt(20))
	r.RecordSlot("xray_1", "p2", tt(20), tt(40))

	if got := r.DetectDoubleBookings(); len(got) != 0 {
		t.Errorf("conflicts: got %v, want none", got)
	}
}

func TestSummary_CountsByTypeAndBusyMinutes(t *testing.T) {
	r := NewRecorder()
	r.Record(tt(0), "exam_start", nil)
	r.Record(tt(1), "exam_start", nil)
	r.Record(tt(2), "agent_move", nil)
	r.RecordSlot("xray_1", "p1", tt(0), tt(20))

	s := r.Summary()
	if !strings.Contains(s, "exam_start") || !strings.Contains(s, "20 busy minutes") {
		t.Errorf("summary missing expected lines:\n%s", s)
	}
	if !strings.Contains(s, "xray_1") {
		t.Errorf("summary missing resource usage:\n%s", s)
	}
}

func TestMovementRecords_PreserveOrder(t *testing.T) {
	r := NewRecorder()
	r.RecordMove(tt(0), "p1", "lobby", "triage")
	r.RecordMove(tt(3), "p1", "triage", "clinic")

	moves := r.Moves()
	if len(moves) != 2 {
		t.Fatalf("Moves: got %d, want 2", len(moves))
	}
	if moves[0].To != "triage" || moves[1].From != "triage" {
		t.Errorf("hop chain broken: %v", moves)
	}
}
