package sim

import (
	"fmt"
	"time"
)

// EquipmentStatus is the schedulable state of a durable resource.
// Normal cycle: available -> occupied -> available. Maintenance is an
// orthogonal axis entered from either state; offline is terminal until an
// explicit reset.
type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentOccupied    EquipmentStatus = "occupied"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentOffline     EquipmentStatus = "offline"
)

// unavailableWaitMinutes is the sentinel wait reported for equipment that is
// offline or under maintenance, where no meaningful estimate exists.
const unavailableWaitMinutes = 999

// Equipment is a schedulable resource with fixed service duration and
// capacity-1 occupancy.
//
// Invariant: Status == EquipmentOccupied exactly when Holder != "".
// StartUse and FinishUse panic if they observe this violated, rather than
// repairing state; silent repair would hide scheduling bugs.
type Equipment struct {
	ID         string
	Name       string
	LocationID string
	ExamType   string
	// Duration is the fixed service time in minutes.
	Duration int

	Status        EquipmentStatus
	Holder        string
	OccupiedUntil time.Time

	MaintenanceUntil time.Time
	DailyUsage       int
	MaxDailyUsage    int

	queue        waitQueue
	reservations map[string]string // "HH:MM" slot -> agent id
}

// NewEquipment creates an available Equipment with an empty queue.
func NewEquipment(id, name, locationID, examType string, durationMinutes, maxDailyUsage int) *Equipment {
	return &Equipment{
		ID:            id,
		Name:          name,
		LocationID:    locationID,
		ExamType:      examType,
		Duration:      durationMinutes,
		Status:        EquipmentAvailable,
		MaxDailyUsage: maxDailyUsage,
		reservations:  make(map[string]string),
	}
}

// CanUse reports whether the equipment can start serving at the given time.
// Checking has one deliberate side effect: an expired maintenance window is
// lazily cleared back to available.
func (e *Equipment) CanUse(now time.Time) bool {
	if e.Status == EquipmentOffline {
		return false
	}
	if e.Status == EquipmentMaintenance {
		if !e.MaintenanceUntil.IsZero() && !now.Before(e.MaintenanceUntil) {
			e.Status = EquipmentAvailable
			e.MaintenanceUntil = time.Time{}
		} else {
			return false
		}
	}
	if e.DailyUsage >= e.MaxDailyUsage {
		return false
	}
	if e.Status != EquipmentOccupied {
		return true
	}
	return !now.Before(e.OccupiedUntil)
}

// StartUse begins serving the agent: occupied until now + Duration, daily
// usage incremented, and the agent removed from this equipment's queue if
// present. Callers must have checked CanUse(now) immediately before; StartUse
// panics otherwise.
//
// Non-invariant (caller's responsibility): nothing prevents an agent from
// holding two equipment units of the same exam type at once.
func (e *Equipment) StartUse(agentID string, now time.Time, priority int) {
	if !e.CanUse(now) {
		panic(fmt.Sprintf("StartUse on %s: CanUse is false (status=%s, usage=%d/%d)",
			e.ID, e.Status, e.DailyUsage, e.MaxDailyUsage))
	}
	_ = priority // recorded by the caller's event log; the holder itself has no priority
	e.Status = EquipmentOccupied
	e.Holder = agentID
	e.OccupiedUntil = now.Add(time.Duration(e.Duration) * time.Minute)
	e.DailyUsage++
	e.queue.Remove(agentID)
}

// FinishUse clears occupancy if the service interval has elapsed and returns
// the freed agent id. No-op otherwise.
func (e *Equipment) FinishUse(now time.Time) (string, bool) {
	if e.Status != EquipmentOccupied {
		return "", false
	}
	if e.Holder == "" {
		panic(fmt.Sprintf("equipment %s occupied with no holder", e.ID))
	}
	if now.Before(e.OccupiedUntil) {
		return "", false
	}
	freed := e.Holder
	e.Status = EquipmentAvailable
	e.Holder = ""
	e.OccupiedUntil = time.Time{}
	return freed, true
}

// Enqueue adds the agent to the wait queue. Returns false if already queued.
func (e *Equipment) Enqueue(agentID string, priority int, now time.Time) bool {
	return e.queue.Enqueue(agentID, priority, now)
}

// PeekNext returns the highest-priority waiter without removing it.
// Removal happens only via StartUse.
func (e *Equipment) PeekNext() (string, bool) {
	return e.queue.Peek()
}

// HeadEntry returns the full head queue entry without removing it.
func (e *Equipment) HeadEntry() (QueueEntry, bool) {
	if e.queue.Len() == 0 {
		return QueueEntry{}, false
	}
	return e.queue.entries[0], true
}

// RemoveFromQueue cancels the agent's wait and clears any reservation slots
// it held, so the next waiter is not blocked by a stale partial reservation.
func (e *Equipment) RemoveFromQueue(agentID string) bool {
	removed := e.queue.Remove(agentID)
	if e.CancelReservations(agentID) > 0 {
		removed = true
	}
	return removed
}

// QueuePosition returns the agent's 0-based queue position, or -1.
func (e *Equipment) QueuePosition(agentID string) int {
	return e.queue.Position(agentID)
}

// QueueLen returns the number of waiting agents.
func (e *Equipment) QueueLen() int { return e.queue.Len() }

// QueuedAgents returns waiting agent ids in service order.
func (e *Equipment) QueuedAgents() []string { return e.queue.AgentIDs() }

// EstimatedWait returns a lower-bound wait in minutes for the agent: 0 if
// immediately usable, otherwise the remaining time on the current holder
// plus Duration for each agent ahead in the queue (or the full queue length
// if the agent is not queued). Later arrivals can only jump ahead by already
// being queued with higher priority.
func (e *Equipment) EstimatedWait(now time.Time, agentID string) int {
	if e.Status == EquipmentOffline || e.Status == EquipmentMaintenance {
		return unavailableWaitMinutes
	}
	if e.CanUse(now) {
		return 0
	}
	wait := 0
	if e.Status == EquipmentOccupied && now.Before(e.OccupiedUntil) {
		wait = int(e.OccupiedUntil.Sub(now).Minutes())
	}
	pos := e.queue.Position(agentID)
	if pos < 0 {
		pos = e.queue.Len()
	}
	return wait + pos*e.Duration
}

// SetMaintenance places the equipment under maintenance for the given
// window. An occupied unit finishes its current holder first only in the
// sense that FinishUse still works; new usage is blocked until the window
// lapses.
func (e *Equipment) SetMaintenance(now time.Time, minutes int) {
	e.Status = EquipmentMaintenance
	e.MaintenanceUntil = now.Add(time.Duration(minutes) * time.Minute)
}

// SetOffline takes the equipment out of service until ResetOffline.
func (e *Equipment) SetOffline() {
	e.Status = EquipmentOffline
	e.Holder = ""
	e.OccupiedUntil = time.Time{}
}

// ResetOffline returns an offline unit to service.
func (e *Equipment) ResetOffline() {
	if e.Status == EquipmentOffline {
		e.Status = EquipmentAvailable
	}
}

// ResetDailyUsage zeroes the daily usage counter. Called by the time engine
// when the clock crosses a calendar-day boundary.
func (e *Equipment) ResetDailyUsage() { e.DailyUsage = 0 }

// ReserveSlot books a "HH:MM" slot for the agent. Returns false if taken.
func (e *Equipment) ReserveSlot(slot, agentID string) bool {
	if _, taken := e.reservations[slot]; taken {
		return false
	}
	e.reservations[slot] = agentID
	return true
}

// CancelReservations releases every slot held by the agent and returns how
// many were released.
func (e *Equipment) CancelReservations(agentID string) int {
	n := 0
	for slot, holder := range e.reservations {
		if holder == agentID {
			delete(e.reservations, slot)
			n++
		}
	}
	return n
}

// StatusLine renders a one-line human-readable status for observations.
func (e *Equipment) StatusLine(now time.Time) string {
	switch {
	case e.Status == EquipmentOffline:
		return fmt.Sprintf("%s: offline", e.Name)
	case e.Status == EquipmentMaintenance:
		return fmt.Sprintf("%s: under maintenance", e.Name)
	case e.CanUse(now):
		return fmt.Sprintf("%s: free", e.Name)
	default:
		line := fmt.Sprintf("%s: busy (%d min remaining)", e.Name, e.EstimatedWait(now, ""))
		if e.queue.Len() > 0 {
			line += fmt.Sprintf(", %d queued", e.queue.Len())
		}
		return line
	}
}
