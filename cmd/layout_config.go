package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/hospital-sim/hospital-sim/sim"
	"github.com/hospital-sim/hospital-sim/sim/coord"
)

// Define structs for the YAML hospital layout
type LayoutConfig struct {
	Locations []LocationSpec  `yaml:"locations"`
	Equipment []EquipmentSpec `yaml:"equipment"`
	Doctors   []DoctorSpec    `yaml:"doctors"`
}

type LocationSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Capacity    int      `yaml:"capacity"`
	ConnectedTo []string `yaml:"connected_to"`
	Actions     []string `yaml:"actions"`
}

type EquipmentSpec struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Location        string `yaml:"location"`
	ExamType        string `yaml:"exam_type"`
	DurationMinutes int    `yaml:"duration_minutes"`
	MaxDailyUsage   int    `yaml:"max_daily_usage"`
}

type DoctorSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
}

// LoadLayoutConfig reads a hospital layout from a YAML file. Unknown
// fields are rejected so typos in hand-written layouts fail loudly.
func LoadLayoutConfig(path string) (*LayoutConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg LayoutConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks internal consistency: equipment sits in known
// locations and connections reference known ids.
func (c *LayoutConfig) Validate() error {
	ids := make(map[string]bool, len(c.Locations))
	for _, loc := range c.Locations {
		if ids[loc.ID] {
			return fmt.Errorf("duplicate location %q", loc.ID)
		}
		ids[loc.ID] = true
	}
	for _, loc := range c.Locations {
		for _, n := range loc.ConnectedTo {
			if !ids[n] {
				return fmt.Errorf("location %q connects to unknown %q", loc.ID, n)
			}
		}
	}
	for _, eq := range c.Equipment {
		if !ids[eq.Location] {
			return fmt.Errorf("equipment %q placed in unknown location %q", eq.ID, eq.Location)
		}
	}
	return nil
}

// Apply populates a world and pool from the layout.
func (c *LayoutConfig) Apply(world *sim.World, pool *coord.Pool) {
	for _, loc := range c.Locations {
		world.AddLocation(sim.NewLocation(
			loc.ID, loc.Name, sim.LocationKind(loc.Kind),
			loc.Capacity, loc.ConnectedTo, loc.Actions,
		))
	}
	for _, eq := range c.Equipment {
		world.AddEquipment(sim.NewEquipment(
			eq.ID, eq.Name, eq.Location, eq.ExamType,
			eq.DurationMinutes, eq.MaxDailyUsage,
		))
	}
	for _, doc := range c.Doctors {
		pool.RegisterDoctor(doc.ID, doc.Name, doc.Department)
	}
}

// DefaultLayout is the built-in hospital used when no layout file is
// given: a lobby and triage feeding four clinics, with lab, imaging,
// endoscopy and neurophysiology service floors.
func DefaultLayout() *LayoutConfig {
	return &LayoutConfig{
		Locations: []LocationSpec{
			{ID: "lobby", Name: "Main Lobby", Kind: "lobby", Capacity: 50,
				ConnectedTo: []string{"triage", "pharmacy", "imaging", "lab"},
				Actions:     []string{"wait", "register"}},
			{ID: "triage", Name: "Triage", Kind: "triage", Capacity: 10,
				ConnectedTo: []string{"lobby", "internal_medicine", "surgery"},
				Actions:     []string{"assess", "assign_priority"}},
			{ID: "internal_medicine", Name: "Internal Medicine", Kind: "clinic", Capacity: 8,
				ConnectedTo: []string{"triage", "gastro", "neuro", "lab", "imaging"},
				Actions:     []string{"consult", "prescribe"}},
			{ID: "surgery", Name: "Surgery", Kind: "clinic", Capacity: 6,
				ConnectedTo: []string{"triage", "imaging"},
				Actions:     []string{"consult", "operate"}},
			{ID: "gastro", Name: "Gastroenterology", Kind: "clinic", Capacity: 6,
				ConnectedTo: []string{"internal_medicine", "endoscopy"},
				Actions:     []string{"consult"}},
			{ID: "neuro", Name: "Neurology", Kind: "clinic", Capacity: 6,
				ConnectedTo: []string{"internal_medicine", "neurophysiology"},
				Actions:     []string{"consult"}},
			{ID: "lab", Name: "Clinical Laboratory", Kind: "lab", Capacity: 12,
				ConnectedTo: []string{"lobby", "internal_medicine", "imaging"},
				Actions:     []string{"draw_blood", "analyze"}},
			{ID: "imaging", Name: "Imaging Floor", Kind: "imaging", Capacity: 10,
				ConnectedTo: []string{"lobby", "internal_medicine", "surgery", "lab"},
				Actions:     []string{"scan"}},
			{ID: "endoscopy", Name: "Endoscopy Suite", Kind: "endoscopy", Capacity: 4,
				ConnectedTo: []string{"gastro"},
				Actions:     []string{"scope"}},
			{ID: "neurophysiology", Name: "Neurophysiology", Kind: "neurophysiology", Capacity: 4,
				ConnectedTo: []string{"neuro"},
				Actions:     []string{"record"}},
			{ID: "pharmacy", Name: "Pharmacy", Kind: "pharmacy", Capacity: 15,
				ConnectedTo: []string{"lobby"},
				Actions:     []string{"dispense"}},
		},
		Equipment: []EquipmentSpec{
			{ID: "xray_1", Name: "X-Ray Unit 1", Location: "imaging", ExamType: "xray", DurationMinutes: 15, MaxDailyUsage: 25},
			{ID: "xray_2", Name: "X-Ray Unit 2", Location: "imaging", ExamType: "xray", DurationMinutes: 15, MaxDailyUsage: 25},
			{ID: "ct_1", Name: "CT Scanner", Location: "imaging", ExamType: "ct", DurationMinutes: 30, MaxDailyUsage: 15},
			{ID: "mri_1", Name: "MRI Scanner", Location: "imaging", ExamType: "mri", DurationMinutes: 45, MaxDailyUsage: 10},
			{ID: "ultrasound_1", Name: "Ultrasound", Location: "imaging", ExamType: "ultrasound", DurationMinutes: 20, MaxDailyUsage: 20},
			{ID: "blood_1", Name: "Blood Analyzer", Location: "lab", ExamType: "blood_test", DurationMinutes: 20, MaxDailyUsage: 40},
			{ID: "biochem_1", Name: "Biochemistry Analyzer", Location: "lab", ExamType: "biochemistry", DurationMinutes: 25, MaxDailyUsage: 30},
			{ID: "endoscope_1", Name: "Gastroscope", Location: "endoscopy", ExamType: "endoscopy", DurationMinutes: 30, MaxDailyUsage: 12},
			{ID: "colonoscope_1", Name: "Colonoscope", Location: "endoscopy", ExamType: "colonoscopy", DurationMinutes: 45, MaxDailyUsage: 8},
			{ID: "eeg_1", Name: "EEG Recorder", Location: "neurophysiology", ExamType: "eeg", DurationMinutes: 40, MaxDailyUsage: 10},
			{ID: "emg_1", Name: "EMG Recorder", Location: "neurophysiology", ExamType: "emg", DurationMinutes: 30, MaxDailyUsage: 10},
			{ID: "ecg_1", Name: "ECG Station", Location: "internal_medicine", ExamType: "ecg", DurationMinutes: 10, MaxDailyUsage: 50},
		},
		Doctors: []DoctorSpec{
			{ID: "dr_house", Name: "G. House", Department: "internal_medicine"},
			{ID: "dr_wilson", Name: "J. Wilson", Department: "internal_medicine"},
			{ID: "dr_grey", Name: "M. Grey", Department: "surgery"},
			{ID: "dr_burke", Name: "P. Burke", Department: "surgery"},
			{ID: "dr_adler", Name: "I. Adler", Department: "gastro"},
			{ID: "dr_ramon", Name: "S. Ramon", Department: "neuro"},
		},
	}
}
