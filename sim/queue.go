// Implements the priority wait queue attached to each equipment unit.
// Agents are enqueued when the equipment cannot serve them immediately.

package sim

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// QueueEntry is one waiting agent in an equipment queue.
// Priority follows the engine-wide convention: 1 is the most urgent,
// larger numbers are less urgent.
type QueueEntry struct {
	AgentID   string
	Priority  int
	EnqueueAt time.Time
	seq       uint64 // assignment order, final tie-break
}

// queueLess is the total order for equipment queues: priority ascending,
// then enqueue time ascending, then assignment order. The sequence number
// makes the order total even when two agents enqueue in the same clock
// minute, so queue state is deterministic and testable.
func queueLess(a, b QueueEntry) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.EnqueueAt.Equal(b.EnqueueAt) {
		return a.EnqueueAt.Before(b.EnqueueAt)
	}
	return a.seq < b.seq
}

// waitQueue holds QueueEntries sorted by queueLess. An agent appears at
// most once.
type waitQueue struct {
	entries []QueueEntry
	nextSeq uint64
}

// Enqueue inserts the agent unless it is already queued, then re-sorts.
// Returns false if the agent was already present.
func (q *waitQueue) Enqueue(agentID string, priority int, now time.Time) bool {
	if q.Position(agentID) >= 0 {
		return false
	}
	q.entries = append(q.entries, QueueEntry{
		AgentID:   agentID,
		Priority:  priority,
		EnqueueAt: now,
		seq:       q.nextSeq,
	})
	q.nextSeq++
	sort.SliceStable(q.entries, func(i, j int) bool {
		return queueLess(q.entries[i], q.entries[j])
	})
	return true
}

// Peek returns the most urgent waiter without removing it.
func (q *waitQueue) Peek() (string, bool) {
	if len(q.entries) == 0 {
		return "", false
	}
	return q.entries[0].AgentID, true
}

// Remove deletes the agent's entry, if present.
func (q *waitQueue) Remove(agentID string) bool {
	for i, e := range q.entries {
		if e.AgentID == agentID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Position returns the agent's 0-based position, or -1 if not queued.
func (q *waitQueue) Position(agentID string) int {
	for i, e := range q.entries {
		if e.AgentID == agentID {
			return i
		}
	}
	return -1
}

func (q *waitQueue) Len() int { return len(q.entries) }

// AgentIDs returns the queued agent ids in service order.
func (q *waitQueue) AgentIDs() []string {
	ids := make([]string, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.AgentID
	}
	return ids
}

func (q *waitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, e := range q.entries {
		sb.WriteString(fmt.Sprintf("%s(p%d)", e.AgentID, e.Priority))
		if i < len(q.entries)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
