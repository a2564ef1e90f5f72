package sim

import (
	"math/rand"
	"testing"
	"time"
)

func qt(minute int) time.Time {
	return time.Date(2025, time.January, 6, 8, minute, 0, 0, time.UTC)
}

func TestWaitQueue_OrdersByPriorityThenArrival(t *testing.T) {
	// GIVEN waiters with mixed priorities and arrival times
	q := &waitQueue{}
	q.Enqueue("late_urgent", 1, qt(10))
	q.Enqueue("early_routine", 5, qt(0))
	q.Enqueue("early_urgent", 1, qt(5))

	// WHEN the queue is read in service order
	got := q.AgentIDs()

	// THEN lower priority number serves first, arrival breaking ties
	want := []string{"early_urgent", "late_urgent", "early_routine"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestWaitQueue_SameMinuteArrivals_KeepEnqueueOrder(t *testing.T) {
	// GIVEN two waiters with identical priority and arrival minute
	q := &waitQueue{}
	q.Enqueue("first", 3, qt(0))
	q.Enqueue("second", 3, qt(0))

	// THEN the earlier Enqueue call stays ahead
	if head, _ := q.Peek(); head != "first" {
		t.Errorf("Peek: got %s, want first", head)
	}
}

func TestWaitQueue_Enqueue_RejectsDuplicate(t *testing.T) {
	q := &waitQueue{}
	if !q.Enqueue("a", 5, qt(0)) {
		t.Fatal("first Enqueue returned false")
	}
	// WHEN the same agent enqueues again with better priority
	if q.Enqueue("a", 1, qt(1)) {
		t.Error("duplicate Enqueue returned true")
	}
	if q.Len() != 1 {
		t.Errorf("Len after duplicate: got %d, want 1", q.Len())
	}
}

func TestWaitQueue_ServiceOrder_IsTotalOverRandomInsertions(t *testing.T) {
	// GIVEN many waiters inserted in random order
	rng := rand.New(rand.NewSource(7))
	q := &waitQueue{}
	const n = 50
	perm := rng.Perm(n)
	for _, i := range perm {
		q.Enqueue(string(rune('A'+i%26))+string(rune('a'+i/26)), 1+i%9, qt(i))
	}

	// THEN each pair of adjacent entries satisfies the comparator
	for i := 1; i < q.Len(); i++ {
		a, b := q.entries[i-1], q.entries[i]
		if queueLess(b, a) {
			t.Fatalf("entries %d and %d out of order: %v before %v", i-1, i, a, b)
		}
	}
	if q.Len() != n {
		t.Errorf("Len: got %d, want %d", q.Len(), n)
	}
}

func TestWaitQueue_Remove_ShiftsPositions(t *testing.T) {
	q := &waitQueue{}
	q.Enqueue("a", 1, qt(0))
	q.Enqueue("b", 2, qt(0))
	q.Enqueue("c", 3, qt(0))

	if !q.Remove("b") {
		t.Fatal("Remove(b) returned false")
	}
	if q.Remove("b") {
		t.Error("second Remove(b) returned true")
	}
	if pos := q.Position("c"); pos != 1 {
		t.Errorf("Position(c) after removal: got %d, want 1", pos)
	}
}
