package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	sim "github.com/hospital-sim/hospital-sim/sim"
	"github.com/hospital-sim/hospital-sim/sim/coord"
)

// ScenarioConfig parameterizes the built-in demo scenario.
type ScenarioConfig struct {
	Patients       int
	HorizonMinutes int
	TickMinutes    int
	Seed           int64
}

// patientCase is one presenting complaint a generated patient arrives
// with: its department, priority and initial symptoms.
type patientCase struct {
	department string
	priority   int
	examType   string
	symptoms   []caseSymptom
}

type caseSymptom struct {
	name     string
	severity float64
	rate     float64
}

var demoCases = []patientCase{
	{"internal_medicine", 3, "ecg", []caseSymptom{{"chest pain", 6, 0.15}, {"fatigue", 4, 0.1}}},
	{"internal_medicine", 5, "blood_test", []caseSymptom{{"fever", 5, 0.1}}},
	{"surgery", 2, "xray", []caseSymptom{{"abdominal pain", 7, 0.2}}},
	{"surgery", 4, "ct", []caseSymptom{{"pain", 5, 0.1}}},
	{"gastro", 5, "endoscopy", []caseSymptom{{"nausea", 4, 0.1}, {"abdominal pain", 5, 0.1}}},
	{"neuro", 3, "eeg", []caseSymptom{{"headache", 6, 0.15}, {"dizziness", 4, 0.1}}},
	{"internal_medicine", 7, "ultrasound", []caseSymptom{{"fatigue", 3, 0.05}}},
	{"neuro", 6, "emg", []caseSymptom{{"joint pain", 4, 0.1}}},
}

// RunScenario drives a demo run: concurrent patient workers register,
// travel to their clinic, wait for a doctor, take an exam excursion and
// come back, while the main goroutine advances the clock in fixed ticks.
// Movement also costs simulated time, so the horizon is a lower bound on
// how far the clock travels.
func RunScenario(world *sim.World, pool *coord.Pool, cfg ScenarioConfig) {
	if cfg.TickMinutes <= 0 {
		cfg.TickMinutes = 10
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)).ForSubsystem(sim.SubsystemScenario)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < cfg.Patients; i++ {
		pc := demoCases[rng.Intn(len(demoCases))]
		patientID := fmt.Sprintf("patient_%03d", i+1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPatient(world, pool, patientID, pc, done)
		}()
	}

	for elapsed := 0; elapsed < cfg.HorizonMinutes; elapsed += cfg.TickMinutes {
		world.Advance(cfg.TickMinutes)
		// Yield real time so workers observe the new clock state.
		time.Sleep(20 * time.Millisecond)
	}
	close(done)
	wg.Wait()
}

// runPatient is one patient worker. Every step polls and backs off; the
// shared world lock is only ever held for the duration of one call.
func runPatient(world *sim.World, pool *coord.Pool, patientID string, pc patientCase, done <-chan struct{}) {
	if err := world.RegisterAgent(patientID, sim.AgentPatient, "lobby"); err != nil {
		logrus.Errorf("[scenario] %s: register: %v", patientID, err)
		return
	}
	defer world.DeregisterAgent(patientID)

	for _, s := range pc.symptoms {
		if err := world.AddSymptom(patientID, s.name, s.severity, s.rate); err != nil {
			logrus.Errorf("[scenario] %s: symptom: %v", patientID, err)
			return
		}
	}

	if !travel(world, patientID, "triage", done) {
		return
	}
	if _, err := pool.RegisterPatient(patientID, pc.department, pc.priority); err != nil {
		logrus.Errorf("[scenario] %s: pool register: %v", patientID, err)
		return
	}
	defer pool.RemovePatient(patientID)

	if !travel(world, patientID, pc.department, done) {
		return
	}

	ctx, cancel := contextForDone(done)
	defer cancel()
	doctorID, err := pool.WaitForAssignment(ctx, patientID, coord.PollConfig{Timeout: 60 * time.Second})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logrus.Warnf("[scenario] %s: no doctor: %v", patientID, err)
		}
		return
	}
	logrus.Infof("[scenario] %s consulting with %s", patientID, doctorID)

	// The doctor orders an exam; the patient leaves for the service floor
	// and the doctor is freed in the meantime.
	sendOut, complete := pool.SendToImaging, pool.CompleteImaging
	if floor, _ := examFloor(pc.examType); floor == "lab" {
		sendOut, complete = pool.SendToLab, pool.CompleteLab
	}
	if err := sendOut(patientID); err == nil {
		takeExam(world, patientID, pc.examType, pc.priority, done)
		complete(patientID)
		ctx2, cancel2 := contextForDone(done)
		if _, err := pool.WaitForAssignment(ctx2, patientID, coord.PollConfig{Timeout: 60 * time.Second}); err == nil {
			pool.Discharge(patientID)
		}
		cancel2()
	}
	travel(world, patientID, "pharmacy", done)
	travel(world, patientID, "lobby", done)
}

// travel moves the patient toward a target, retrying on transient
// failures (full rooms, closed floors) until done fires.
func travel(world *sim.World, agentID, target string, done <-chan struct{}) bool {
	for {
		select {
		case <-done:
			return false
		default:
		}
		_, err := world.MoveAgent(agentID, target)
		if err == nil || errors.Is(err, sim.ErrAlreadyInState) {
			return true
		}
		if errors.Is(err, sim.ErrUnreachable) || errors.Is(err, sim.ErrNotFound) {
			logrus.Errorf("[scenario] %s: cannot reach %s: %v", agentID, target, err)
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// takeExam finds the exam's floor, requests the exam and polls until the
// usage finishes or done fires.
func takeExam(world *sim.World, agentID, examType string, priority int, done <-chan struct{}) {
	floor, ok := examFloor(examType)
	if !ok {
		return
	}
	if !travel(world, agentID, floor, done) {
		return
	}
	res, err := world.RequestExam(agentID, examType, priority)
	if err != nil {
		logrus.Warnf("[scenario] %s: exam %s: %v", agentID, examType, err)
		return
	}
	if !res.Started {
		logrus.Infof("[scenario] %s queued for %s at position %d (~%d min)",
			agentID, examType, res.QueuePosition, res.EstimatedWait)
	}
	for world.ExamInProgress(agentID) {
		select {
		case <-done:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// examFloor maps exam types to the default layout's service floors.
func examFloor(examType string) (string, bool) {
	switch examType {
	case "xray", "ct", "mri", "ultrasound":
		return "imaging", true
	case "blood_test", "biochemistry":
		return "lab", true
	case "endoscopy", "colonoscopy":
		return "endoscopy", true
	case "eeg", "emg":
		return "neurophysiology", true
	case "ecg":
		return "internal_medicine", true
	}
	return "", false
}

func contextForDone(done <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
