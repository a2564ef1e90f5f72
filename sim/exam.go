// World operations on equipment: requesting exams, releasing holds,
// reservations, and maintenance control.

package sim

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ExamResult reports the outcome of RequestExam. Either the exam started
// immediately, or the agent was queued with a position and estimated wait.
type ExamResult struct {
	Started       bool
	EquipmentID   string
	Message       string
	QueuePosition int // 1-based; 0 when Started
	QueueLength   int
	EstimatedWait int // minutes, lower bound
	FinishesAt    time.Time
}

// RequestExam asks for an exam of the given type at the agent's current
// location. If a unit can serve immediately, the one with the fewest daily
// uses starts; this is a different balancing rule than the doctor pool's
// fewest-patients-today. Otherwise the agent joins the queue of the first
// registered unit of that type. Priority 1 is the most urgent.
func (w *World) RequestExam(agentID, examType string, priority int) (ExamResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.agents[agentID]; !ok {
		return ExamResult{}, fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	locID, placed := w.agentLoc[agentID]
	if !placed {
		return ExamResult{}, fmt.Errorf("agent %q is not placed: %w", agentID, ErrNotFound)
	}

	var here []*Equipment
	for _, id := range w.eqOrder {
		eq := w.equipment[id]
		if eq.ExamType == examType && eq.LocationID == locID {
			here = append(here, eq)
		}
	}
	if len(here) == 0 {
		return ExamResult{}, fmt.Errorf("no %s equipment at %s: %w", examType, locID, ErrNotFound)
	}

	// Prefer a free unit with the fewest daily uses; ties resolve by
	// registration order.
	var best *Equipment
	for _, eq := range here {
		if !eq.CanUse(w.clock) {
			continue
		}
		if best == nil || eq.DailyUsage < best.DailyUsage {
			best = eq
		}
	}
	if best != nil {
		best.StartUse(agentID, w.clock, priority)
		w.Metrics.ExamsStarted++
		w.rec.RecordSlot(best.ID, agentID, w.clock, best.OccupiedUntil)
		w.rec.Record(w.clock, "exam_start", map[string]any{
			"equipment": best.ID, "agent": agentID, "exam_type": examType, "priority": priority,
		})
		logrus.Infof("[%s] %s started %s on %s (finishes %s)",
			w.clock.Format("15:04"), agentID, examType, best.ID, best.OccupiedUntil.Format("15:04"))
		return ExamResult{
			Started:     true,
			EquipmentID: best.ID,
			Message:     fmt.Sprintf("started %s on %s, %d minutes", examType, best.Name, best.Duration),
			FinishesAt:  best.OccupiedUntil,
		}, nil
	}

	// All busy: queue on the first unit of this type.
	eq := here[0]
	if eq.QueuePosition(agentID) >= 0 {
		return ExamResult{}, fmt.Errorf("agent %q already queued for %s: %w", agentID, eq.ID, ErrAlreadyInState)
	}
	if eq.Status == EquipmentOffline {
		return ExamResult{}, fmt.Errorf("%s is offline: %w", eq.Name, ErrUnavailable)
	}
	if eq.DailyUsage >= eq.MaxDailyUsage {
		return ExamResult{}, fmt.Errorf("%s reached its daily cap (%d/%d): %w",
			eq.Name, eq.DailyUsage, eq.MaxDailyUsage, ErrCapacityExceeded)
	}
	eq.Enqueue(agentID, priority, w.clock)
	w.Metrics.ExamsQueued++
	pos := eq.QueuePosition(agentID) + 1
	wait := eq.EstimatedWait(w.clock, agentID)
	w.rec.Record(w.clock, "exam_queued", map[string]any{
		"equipment": eq.ID, "agent": agentID, "exam_type": examType,
		"position": pos, "queue_length": eq.QueueLen(),
	})
	logrus.Infof("[%s] %s queued for %s (position %d/%d, ~%d min)",
		w.clock.Format("15:04"), agentID, eq.ID, pos, eq.QueueLen(), wait)
	return ExamResult{
		Started:       false,
		EquipmentID:   eq.ID,
		Message:       fmt.Sprintf("%s busy, queued at position %d/%d (~%d min)", eq.Name, pos, eq.QueueLen(), wait),
		QueuePosition: pos,
		QueueLength:   eq.QueueLen(),
		EstimatedWait: wait,
	}, nil
}

// ReleaseEquipment frees everything the agent holds or waits for: a current
// hold is released immediately (with an auto-hand-off attempt), queue
// entries are removed, and reservation slots are cleared so no later waiter
// is blocked by a stale partial reservation.
func (w *World) ReleaseEquipment(agentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.agents[agentID]; !ok {
		return fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	w.releaseEquipmentLocked(agentID)
	return nil
}

func (w *World) releaseEquipmentLocked(agentID string) {
	for _, id := range w.eqOrder {
		eq := w.equipment[id]

		if eq.Holder == agentID {
			eq.Status = EquipmentAvailable
			eq.Holder = ""
			eq.OccupiedUntil = time.Time{}
			w.rec.Record(w.clock, "exam_released", map[string]any{"equipment": eq.ID, "agent": agentID})

			if entry, ok := eq.HeadEntry(); ok &&
				w.agentLoc[entry.AgentID] == eq.LocationID && eq.CanUse(w.clock) {
				eq.StartUse(entry.AgentID, w.clock, entry.Priority)
				w.Metrics.ExamsStarted++
				w.Metrics.AutoHandoffs++
				w.rec.RecordSlot(eq.ID, entry.AgentID, w.clock, eq.OccupiedUntil)
				w.rec.Record(w.clock, "exam_auto_start", map[string]any{
					"equipment": eq.ID, "agent": entry.AgentID, "priority": entry.Priority,
				})
			}
		}

		if eq.RemoveFromQueue(agentID) {
			w.rec.Record(w.clock, "queue_cancelled", map[string]any{"equipment": eq.ID, "agent": agentID})
		}
	}
}

// ReserveEquipment books an "HH:MM" slot on any unit of the exam type.
func (w *World) ReserveEquipment(agentID, examType, slot string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.agents[agentID]; !ok {
		return "", fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	found := false
	for _, id := range w.eqOrder {
		eq := w.equipment[id]
		if eq.ExamType != examType {
			continue
		}
		found = true
		if eq.ReserveSlot(slot, agentID) {
			w.rec.Record(w.clock, "equipment_reserved", map[string]any{
				"equipment": eq.ID, "agent": agentID, "slot": slot,
			})
			return eq.ID, nil
		}
	}
	if !found {
		return "", fmt.Errorf("no %s equipment: %w", examType, ErrNotFound)
	}
	return "", fmt.Errorf("slot %s already reserved on every %s unit: %w", slot, examType, ErrAlreadyInState)
}

// SetEquipmentMaintenance puts a unit under maintenance for the window.
func (w *World) SetEquipmentMaintenance(equipmentID string, minutes int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	eq, ok := w.equipment[equipmentID]
	if !ok {
		return fmt.Errorf("equipment %q: %w", equipmentID, ErrNotFound)
	}
	eq.SetMaintenance(w.clock, minutes)
	w.rec.Record(w.clock, "maintenance_start", map[string]any{"equipment": equipmentID, "minutes": minutes})
	return nil
}

// SetEquipmentOffline takes a unit out of service until reset.
func (w *World) SetEquipmentOffline(equipmentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	eq, ok := w.equipment[equipmentID]
	if !ok {
		return fmt.Errorf("equipment %q: %w", equipmentID, ErrNotFound)
	}
	eq.SetOffline()
	w.rec.Record(w.clock, "equipment_offline", map[string]any{"equipment": equipmentID})
	return nil
}

// ResetEquipmentOnline returns an offline unit to service. Units under
// maintenance are untouched; their window lapses on its own.
func (w *World) ResetEquipmentOnline(equipmentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	eq, ok := w.equipment[equipmentID]
	if !ok {
		return fmt.Errorf("equipment %q: %w", equipmentID, ErrNotFound)
	}
	eq.ResetOffline()
	w.rec.Record(w.clock, "equipment_online", map[string]any{"equipment": equipmentID})
	return nil
}

// ExamInProgress reports whether the agent currently holds or is queued on
// any equipment unit.
func (w *World) ExamInProgress(agentID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.eqOrder {
		eq := w.equipment[id]
		if eq.Holder == agentID || eq.QueuePosition(agentID) >= 0 {
			return true
		}
	}
	return false
}

// Equipment returns the equipment unit by id for status inspection.
func (w *World) Equipment(equipmentID string) (*Equipment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	eq, ok := w.equipment[equipmentID]
	if !ok {
		return nil, fmt.Errorf("equipment %q: %w", equipmentID, ErrNotFound)
	}
	return eq, nil
}

// EquipmentStatuses renders status lines for equipment, optionally filtered
// by exam type and location.
func (w *World) EquipmentStatuses(examType, locationID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var lines []string
	for _, id := range w.eqOrder {
		eq := w.equipment[id]
		if examType != "" && eq.ExamType != examType {
			continue
		}
		if locationID != "" && eq.LocationID != locationID {
			continue
		}
		lines = append(lines, eq.StatusLine(w.clock))
	}
	return lines
}
