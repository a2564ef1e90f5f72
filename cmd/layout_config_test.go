package cmd

import (
	"os"
	"path/filepath"
	"testing"

	sim "github.com/hospital-sim/hospital-sim/sim"
	"github.com/hospital-sim/hospital-sim/sim/coord"
)

func TestDefaultLayout_IsInternallyConsistent(t *testing.T) {
	layout := DefaultLayout()
	if err := layout.Validate(); err != nil {
		t.Fatalf("default layout invalid: %v", err)
	}

	// Connections must be symmetric so no patient gets trapped
	edges := make(map[string]map[string]bool)
	for _, loc := range layout.Locations {
		edges[loc.ID] = make(map[string]bool)
		for _, n := range loc.ConnectedTo {
			edges[loc.ID][n] = true
		}
	}
	for from, tos := range edges {
		for to := range tos {
			if !edges[to][from] {
				t.Errorf("edge %s -> %s has no reverse edge", from, to)
			}
		}
	}
}

func TestDefaultLayout_AppliesToWorldAndPool(t *testing.T) {
	layout := DefaultLayout()
	world := sim.NewWorld(sim.WorldConfig{Seed: 1}, nil)
	pool := coord.NewPool(world.Clock, nil)

	layout.Apply(world, pool)

	// A patient can cross the whole graph from the lobby
	if err := world.RegisterAgent("p1", sim.AgentPatient, "lobby"); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if _, err := world.MoveAgent("p1", "endoscopy"); err != nil {
		t.Fatalf("lobby to endoscopy: %v", err)
	}

	// Every department named by a doctor accepts patients
	for _, doc := range layout.Doctors {
		if err := pool.TryAssign(doc.Department); err != nil {
			t.Errorf("TryAssign(%s): %v", doc.Department, err)
		}
	}
}

func TestLoadLayoutConfig_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	bad := []byte(`
locations:
  - id: lobby
    name: Lobby
    kind: lobby
    capacity: 5
    color: blue
`)
	if err := os.WriteFile(path, bad, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadLayoutConfig(path); err == nil {
		t.Error("unknown field accepted")
	}
}

func TestLoadLayoutConfig_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	good := []byte(`
locations:
  - id: lobby
    name: Lobby
    kind: lobby
    capacity: 5
    connected_to: [ward]
  - id: ward
    name: Ward
    kind: clinic
    capacity: 3
    connected_to: [lobby]
equipment:
  - id: ecg_1
    name: ECG
    location: ward
    exam_type: ecg
    duration_minutes: 10
    max_daily_usage: 20
doctors:
  - id: doc_a
    name: A
    department: internal_medicine
`)
	if err := os.WriteFile(path, good, 0o644); err != nil {
		t.Fatal(err)
	}

	layout, err := LoadLayoutConfig(path)
	if err != nil {
		t.Fatalf("LoadLayoutConfig: %v", err)
	}
	if err := layout.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(layout.Equipment) != 1 || layout.Equipment[0].ExamType != "ecg" {
		t.Errorf("equipment: got %+v", layout.Equipment)
	}
}

func TestLayoutValidate_CatchesDanglingReferences(t *testing.T) {
	layout := &LayoutConfig{
		Locations: []LocationSpec{
			{ID: "lobby", Name: "Lobby", Kind: "lobby", Capacity: 5, ConnectedTo: []string{"nowhere"}},
		},
	}
	if err := layout.Validate(); err == nil {
		t.Error("dangling connection accepted")
	}

	layout = &LayoutConfig{
		Locations: []LocationSpec{{ID: "lobby", Name: "Lobby", Kind: "lobby", Capacity: 5}},
		Equipment: []EquipmentSpec{{ID: "x", Name: "X", Location: "mars", ExamType: "xray", DurationMinutes: 10, MaxDailyUsage: 5}},
	}
	if err := layout.Validate(); err == nil {
		t.Error("dangling equipment location accepted")
	}
}
