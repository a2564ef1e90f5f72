package cmd

import (
	"testing"

	sim "github.com/hospital-sim/hospital-sim/sim"
	"github.com/hospital-sim/hospital-sim/sim/coord"
	"github.com/hospital-sim/hospital-sim/sim/trace"
)

func TestRunScenario_SmokeRunTerminates(t *testing.T) {
	// GIVEN the default hospital and a handful of patient workers
	rec := trace.NewRecorder()
	world := sim.NewWorld(sim.WorldConfig{Seed: 7}, rec)
	pool := coord.NewPool(world.Clock, rec)
	DefaultLayout().Apply(world, pool)

	// WHEN a short horizon runs
	RunScenario(world, pool, ScenarioConfig{
		Patients:       3,
		HorizonMinutes: 60,
		TickMinutes:    10,
		Seed:           7,
	})

	// THEN all workers exited and left the world empty
	if n := world.Metrics.PatientsRegistered; n != 3 {
		t.Errorf("PatientsRegistered: got %d, want 3", n)
	}
	if n := world.Metrics.AgentsDeregistered; n != 3 {
		t.Errorf("AgentsDeregistered: got %d, want 3", n)
	}
	if rec.Len() == 0 {
		t.Error("no events recorded")
	}
	if conflicts := rec.DetectDoubleBookings(); len(conflicts) != 0 {
		t.Errorf("double bookings detected: %v", conflicts)
	}
}

func TestDayBoundaryHook_ResetsDoctorCounters(t *testing.T) {
	// GIVEN the pool reset wired to the world's day-boundary sweep, the
	// way the run command wires it
	rec := trace.NewRecorder()
	world := sim.NewWorld(sim.WorldConfig{Seed: 7}, rec)
	pool := coord.NewPool(world.Clock, rec)
	DefaultLayout().Apply(world, pool)
	world.OnDayBoundary(pool.ResetDailyCounts)

	// AND a doctor who served a patient today
	if _, err := pool.RegisterPatient("p1", "internal_medicine", 5); err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if err := pool.Discharge("p1"); err != nil {
		t.Fatalf("Discharge: %v", err)
	}

	// WHEN the clock crosses midnight
	world.Advance(24 * 60)

	// THEN the served-today counters are level again: the next patient
	// lands on the first-registered doctor, not the previously idle one
	docID, err := pool.RegisterPatient("p2", "internal_medicine", 5)
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if docID != DefaultLayout().Doctors[0].ID {
		t.Errorf("assignment after reset: got %s, want the first registered doctor", docID)
	}
}

func TestExamFloor_CoversEveryDefaultExamType(t *testing.T) {
	for _, eq := range DefaultLayout().Equipment {
		floor, ok := examFloor(eq.ExamType)
		if !ok {
			t.Errorf("exam type %s has no floor mapping", eq.ExamType)
			continue
		}
		if floor != eq.Location {
			t.Errorf("exam %s mapped to %s, placed at %s", eq.ExamType, floor, eq.Location)
		}
	}
}
