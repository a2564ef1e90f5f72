package coord

import (
	"sort"
	"time"
)

// SessionState is one step of the bounded patient-session state machine:
//
//	Registered -> Waiting -> Consulting -> {WaitingLab, WaitingImaging}
//	  -> Returning -> Waiting (requeue) -> Consulting -> ... -> Discharged
//
// A session is Registered from creation until it joins a queue, which
// happens inside the same RegisterPatient call. Discharged is terminal.
type SessionState string

const (
	SessionRegistered     SessionState = "registered"
	SessionWaiting        SessionState = "waiting"
	SessionConsulting     SessionState = "consulting"
	SessionWaitingLab     SessionState = "waiting_lab"
	SessionWaitingImaging SessionState = "waiting_imaging"
	SessionReturning      SessionState = "returning"
	SessionDischarged     SessionState = "discharged"
)

// Session tracks one patient's passage through a department.
// Priority follows the engine-wide convention: 1 is the most urgent.
type Session struct {
	PatientID  string
	Department string
	Priority   int
	Arrival    time.Time
	State      SessionState

	// AssignedDoctor is the current or most recent primary doctor. It is
	// kept across lab/imaging excursions as the continuity link: a
	// returning patient rejoins that doctor's personal queue.
	AssignedDoctor string

	// ConsultingDoctors is the set of secondary (referral) participants.
	ConsultingDoctors map[string]bool

	LabReady     bool
	ImagingReady bool

	ConsultStart time.Time
	ConsultEnd   time.Time
}

// sessionQueue is a priority queue over waiting patients with the same
// total order as the equipment queues: priority ascending, then enqueue
// time ascending, then assignment order (so the order is total even when
// two patients arrive in the same clock minute).
type sessionQueue struct {
	entries []sessionEntry
	nextSeq uint64
}

type sessionEntry struct {
	patientID string
	priority  int
	enqueueAt time.Time
	seq       uint64
}

func sessionLess(a, b sessionEntry) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if !a.enqueueAt.Equal(b.enqueueAt) {
		return a.enqueueAt.Before(b.enqueueAt)
	}
	return a.seq < b.seq
}

// push inserts unless the patient is already queued; returns false then.
func (q *sessionQueue) push(patientID string, priority int, now time.Time) bool {
	for _, e := range q.entries {
		if e.patientID == patientID {
			return false
		}
	}
	q.entries = append(q.entries, sessionEntry{
		patientID: patientID,
		priority:  priority,
		enqueueAt: now,
		seq:       q.nextSeq,
	})
	q.nextSeq++
	sort.SliceStable(q.entries, func(i, j int) bool {
		return sessionLess(q.entries[i], q.entries[j])
	})
	return true
}

// pop removes and returns the most urgent waiter.
func (q *sessionQueue) pop() (string, bool) {
	if len(q.entries) == 0 {
		return "", false
	}
	head := q.entries[0].patientID
	q.entries = q.entries[1:]
	return head, true
}

// remove deletes the patient's entry, if present.
func (q *sessionQueue) remove(patientID string) bool {
	for i, e := range q.entries {
		if e.patientID == patientID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *sessionQueue) len() int { return len(q.entries) }

// patientIDs returns queued patients in service order.
func (q *sessionQueue) patientIDs() []string {
	ids := make([]string, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.patientID
	}
	return ids
}
