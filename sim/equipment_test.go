package sim

import (
	"testing"
	"time"
)

func et(minute int) time.Time {
	return time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
}

func newTestXray() *Equipment {
	return NewEquipment("xray_1", "X-Ray Unit 1", "imaging", "xray", 20, 5)
}

func TestEquipment_StartUse_OccupiesForDuration(t *testing.T) {
	// GIVEN a free unit with 20-minute exams
	eq := newTestXray()

	// WHEN an exam starts at t=0
	eq.StartUse("patient_a", et(0), 5)

	// THEN the unit is busy until t=20 and free afterwards
	if eq.CanUse(et(19)) {
		t.Error("CanUse at 19 min: got true, want false")
	}
	if !eq.CanUse(et(20)) {
		t.Error("CanUse at 20 min: got false, want true")
	}
	if eq.DailyUsage != 1 {
		t.Errorf("DailyUsage: got %d, want 1", eq.DailyUsage)
	}
}

func TestEquipment_FinishUse_OnlyAfterInterval(t *testing.T) {
	eq := newTestXray()
	eq.StartUse("patient_a", et(0), 5)

	// WHEN FinishUse is polled before the interval elapses
	if _, done := eq.FinishUse(et(10)); done {
		t.Error("FinishUse at 10 min: got done, want not done")
	}

	// THEN at exactly the end it frees the holder
	freed, done := eq.FinishUse(et(20))
	if !done || freed != "patient_a" {
		t.Errorf("FinishUse at 20 min: got (%q, %v), want (patient_a, true)", freed, done)
	}
	if eq.Status != EquipmentAvailable {
		t.Errorf("Status after finish: got %s, want %s", eq.Status, EquipmentAvailable)
	}
}

func TestEquipment_CanUse_LazilyClearsExpiredMaintenance(t *testing.T) {
	// GIVEN a unit under a 30-minute maintenance window
	eq := newTestXray()
	eq.SetMaintenance(et(0), 30)

	if eq.CanUse(et(29)) {
		t.Error("CanUse during maintenance: got true, want false")
	}

	// WHEN checked after the window lapsed
	if !eq.CanUse(et(30)) {
		t.Error("CanUse after maintenance window: got false, want true")
	}

	// THEN the status was cleared as a side effect of the check
	if eq.Status != EquipmentAvailable {
		t.Errorf("Status after lazy clear: got %s, want %s", eq.Status, EquipmentAvailable)
	}
}

func TestEquipment_DailyUsageCap_BlocksUntilReset(t *testing.T) {
	// GIVEN a unit at its daily cap
	eq := NewEquipment("ecg_1", "ECG", "clinic", "ecg", 10, 2)
	eq.StartUse("a", et(0), 5)
	eq.FinishUse(et(10))
	eq.StartUse("b", et(10), 5)
	eq.FinishUse(et(20))

	if eq.CanUse(et(20)) {
		t.Error("CanUse at daily cap: got true, want false")
	}

	// WHEN the day-boundary sweep resets usage
	eq.ResetDailyUsage()

	// THEN the unit serves again
	if !eq.CanUse(et(20)) {
		t.Error("CanUse after daily reset: got false, want true")
	}
}

func TestEquipment_EstimatedWait_QueueScenario(t *testing.T) {
	// GIVEN an occupied unit with a two-deep queue
	eq := newTestXray()
	eq.StartUse("holder", et(0), 5)
	eq.Enqueue("urgent", 1, et(5))
	eq.Enqueue("routine", 5, et(3))

	// WHEN waits are estimated 5 minutes in
	now := et(5)

	// THEN the urgent waiter leads despite arriving later
	if w := eq.EstimatedWait(now, "urgent"); w != 15 {
		t.Errorf("urgent wait: got %d, want 15 (remaining holder time)", w)
	}
	if w := eq.EstimatedWait(now, "routine"); w != 35 {
		t.Errorf("routine wait: got %d, want 35 (15 remaining + 1*20)", w)
	}
	// An unqueued agent waits behind the whole queue
	if w := eq.EstimatedWait(now, "walk_in"); w != 55 {
		t.Errorf("walk-in wait: got %d, want 55 (15 remaining + 2*20)", w)
	}
}

func TestEquipment_EstimatedWait_UnavailableSentinel(t *testing.T) {
	eq := newTestXray()
	eq.SetOffline()
	if w := eq.EstimatedWait(et(0), "a"); w != unavailableWaitMinutes {
		t.Errorf("offline wait: got %d, want %d", w, unavailableWaitMinutes)
	}
}

func TestEquipment_ResetOffline_OnlyTouchesOfflineUnits(t *testing.T) {
	// GIVEN an offline unit
	eq := newTestXray()
	eq.SetOffline()

	// WHEN it is reset
	eq.ResetOffline()
	if eq.Status != EquipmentAvailable {
		t.Errorf("Status after reset: got %s, want %s", eq.Status, EquipmentAvailable)
	}

	// THEN a maintenance window is not cut short by the same call
	eq.SetMaintenance(et(0), 30)
	eq.ResetOffline()
	if eq.Status != EquipmentMaintenance {
		t.Errorf("reset cleared maintenance: got %s", eq.Status)
	}
}

func TestEquipment_StartUse_RemovesAgentFromOwnQueue(t *testing.T) {
	eq := newTestXray()
	eq.Enqueue("a", 1, et(0))
	eq.Enqueue("b", 2, et(0))

	eq.StartUse("a", et(0), 1)

	if pos := eq.QueuePosition("a"); pos != -1 {
		t.Errorf("holder still queued at position %d", pos)
	}
	if head, _ := eq.PeekNext(); head != "b" {
		t.Errorf("head after hand-off: got %s, want b", head)
	}
}

func TestEquipment_StartUse_PanicsWhenUnusable(t *testing.T) {
	eq := newTestXray()
	eq.SetOffline()
	defer func() {
		if recover() == nil {
			t.Error("StartUse on offline unit did not panic")
		}
	}()
	eq.StartUse("a", et(0), 5)
}

func TestEquipment_RemoveFromQueue_ClearsReservations(t *testing.T) {
	// GIVEN a queued agent holding a reserved slot
	eq := newTestXray()
	eq.Enqueue("a", 3, et(0))
	if !eq.ReserveSlot("14:30", "a") {
		t.Fatal("ReserveSlot returned false on free slot")
	}
	if eq.ReserveSlot("14:30", "b") {
		t.Error("ReserveSlot on taken slot returned true")
	}

	// WHEN the agent abandons the queue
	if !eq.RemoveFromQueue("a") {
		t.Fatal("RemoveFromQueue returned false")
	}

	// THEN the slot is free for the next agent
	if !eq.ReserveSlot("14:30", "b") {
		t.Error("slot still taken after RemoveFromQueue")
	}
}
