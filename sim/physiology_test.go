package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(minutes int) time.Time {
	return time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}

func TestSymptom_SevereUntreated_Worsens(t *testing.T) {
	// GIVEN an untreated severity-8 symptom progressing for two hours
	ps := NewPhysiologicalState("p1", pt(0))
	ps.AddSymptom("chest pain", 8.0, 0.5)

	// WHEN the state ticks forward two hours
	ps.Tick(pt(120), rand.New(rand.NewSource(1)))

	// THEN severity grew at the accelerated 1.5x rate
	s := ps.Symptoms["chest pain"]
	assert.InDelta(t, 9.5, s.Severity, 1e-9, "severity after 2h at rate 0.5*1.5")
	assert.Equal(t, TrendWorsening, s.Trend)
}

func TestSymptom_Treated_DecaysTowardZero(t *testing.T) {
	// GIVEN a treated symptom with effectiveness 0.8
	ps := NewPhysiologicalState("p1", pt(0))
	ps.AddSymptom("fever", 6.0, 1.0)
	ps.ApplyMedication(0.8)

	ps.Tick(pt(120), rand.New(rand.NewSource(1)))

	s := ps.Symptoms["fever"]
	assert.InDelta(t, 4.4, s.Severity, 1e-9, "severity after 2h treated decay")
	assert.Equal(t, TrendImproving, s.Trend)
}

func TestSymptom_Severity_ClampedAtTen(t *testing.T) {
	ps := NewPhysiologicalState("p1", pt(0))
	ps.AddSymptom("pain", 9.8, 2.0)

	ps.Tick(pt(120), rand.New(rand.NewSource(1)))

	assert.Equal(t, 10.0, ps.Symptoms["pain"].Severity)
}

func TestTick_BelowThreshold_IsNoOp(t *testing.T) {
	// GIVEN a fresh state
	ps := NewPhysiologicalState("p1", pt(0))
	ps.AddSymptom("headache", 5.0, 0.5)

	// WHEN only five minutes elapse
	ps.Tick(pt(5), rand.New(rand.NewSource(1)))

	// THEN nothing changed
	assert.Equal(t, 5.0, ps.Symptoms["headache"].Severity)
	assert.Equal(t, 10.0, ps.Energy)
}

func TestTick_EnergyDrainsWithSymptomLoad(t *testing.T) {
	// GIVEN one hour of elapsed time with total severity 10
	ps := NewPhysiologicalState("p1", pt(0))
	ps.AddSymptom("fatigue", 4.0, 0)
	ps.AddSymptom("nausea", 6.0, 0)

	ps.Tick(pt(60), rand.New(rand.NewSource(1)))

	// THEN drain = hours * (1 + total/50) = 1 * 1.2
	assert.InDelta(t, 8.8, ps.Energy, 0.05)
}

func TestPain_IsMeanOverFixedSymptomSet(t *testing.T) {
	// GIVEN two of the five pain-associated symptoms present
	ps := NewPhysiologicalState("p1", pt(0))
	ps.AddSymptom("chest pain", 5.0, 0)
	ps.AddSymptom("headache", 5.0, 0)
	ps.AddSymptom("fever", 9.0, 0) // not pain-associated

	ps.Tick(pt(10), rand.New(rand.NewSource(1)))

	// THEN pain = (5+5)/5, fever not counted
	assert.InDelta(t, 2.0, ps.Pain, 0.2)
}

func TestCheckCritical_Bands(t *testing.T) {
	ps := NewPhysiologicalState("p1", pt(0))
	if critical, _ := ps.CheckCritical(); critical {
		t.Fatal("fresh state reported critical")
	}

	ps.SetVital("heart_rate", 160)
	ps.SetVital("oxygen_saturation", 85)

	critical, reasons := ps.CheckCritical()
	require.True(t, critical)
	assert.Len(t, reasons, 2)
}

func TestConsciousness_DowngradesWithAbnormalVitals(t *testing.T) {
	// GIVEN three abnormal vitals
	ps := NewPhysiologicalState("p1", pt(0))
	ps.SetVital("heart_rate", 130)
	ps.SetVital("temperature", 38.5)
	ps.SetVital("respiratory_rate", 28)
	ps.assessConsciousness()
	assert.Equal(t, ConsciousnessDrowsy, ps.Consciousness)

	// WHEN a fourth vital leaves its range
	ps.SetVital("oxygen_saturation", 88)
	ps.assessConsciousness()

	// THEN the patient is unconscious, not merely drowsy
	assert.Equal(t, ConsciousnessUnconscious, ps.Consciousness)
}

func TestConsciousness_SevereSymptomsAlone(t *testing.T) {
	ps := NewPhysiologicalState("p1", pt(0))
	ps.AddSymptom("chest pain", 9.0, 0)
	ps.AddSymptom("abdominal pain", 8.5, 0)
	ps.assessConsciousness()
	assert.Equal(t, ConsciousnessDrowsy, ps.Consciousness)

	ps.AddSymptom("headache", 9.0, 0)
	ps.assessConsciousness()
	assert.Equal(t, ConsciousnessUnconscious, ps.Consciousness)
}

func TestTick_DeterministicUnderSameSeed(t *testing.T) {
	// GIVEN two identical patients ticked with identically-seeded RNGs
	run := func() map[string]float64 {
		ps := NewPhysiologicalState("p1", pt(0))
		ps.AddSymptom("headache", 2.0, 0.3) // below 4: random drift branch
		ps.AddSymptom("nausea", 3.0, 0.2)
		rng := rand.New(rand.NewSource(99))
		for i := 1; i <= 10; i++ {
			ps.Tick(pt(i*30), rng)
		}
		out := ps.SymptomSeverities()
		for k, v := range ps.VitalValues() {
			out[k] = v
		}
		out["energy"] = ps.Energy
		return out
	}

	// THEN both runs land on exactly the same state
	assert.Equal(t, run(), run())
}

func TestRest_RestoresEnergy(t *testing.T) {
	ps := NewPhysiologicalState("p1", pt(0))
	ps.spendEnergy(6.0)
	require.Equal(t, 4.0, ps.Energy)

	// WHEN resting one hour at full quality
	ps.Rest(60, 1.0)

	assert.Equal(t, 9.0, ps.Energy)

	// AND energy never exceeds the cap
	ps.Rest(240, 1.0)
	assert.Equal(t, 10.0, ps.Energy)
}
