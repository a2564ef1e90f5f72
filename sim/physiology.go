package sim

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Consciousness levels, from best to worst.
const (
	ConsciousnessAlert       = "alert"
	ConsciousnessDrowsy      = "drowsy"
	ConsciousnessUnconscious = "unconscious"
)

// Symptom trend labels derived from the last severity delta.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
)

// trendDelta is the severity change beyond which a trend flips away from
// stable.
const trendDelta = 0.1

// minTickMinutes is the minimum elapsed simulated time before a physiology
// tick does any work, to avoid thrashing on sub-minute advances.
const minTickMinutes = 6

// painSymptomNames is the fixed set of pain-associated symptom names whose
// mean severity defines the pain scalar.
var painSymptomNames = []string{"pain", "headache", "abdominal pain", "chest pain", "joint pain"}

// Symptom is a named complaint with a 0-10 severity that evolves over time.
type Symptom struct {
	Name     string
	Severity float64
	Trend    string
	// ProgressionRate is the per-hour severity change rate.
	ProgressionRate float64
	Treated         bool
	// Effectiveness scales treated decay, 0-1.
	Effectiveness float64
}

// progress evolves severity over the elapsed hours.
// Treated symptoms decay toward zero. Untreated symptoms above severity 7
// worsen deterministically, 4-7 drift mildly upward, and below 4 they drift
// randomly with a small chance of spontaneous improvement.
func (s *Symptom) progress(hours float64, rng *rand.Rand) {
	var change float64
	switch {
	case s.Treated:
		change = -s.ProgressionRate * s.Effectiveness * hours
	case s.Severity > 7:
		change = s.ProgressionRate * 1.5 * hours
	case s.Severity >= 4:
		change = s.ProgressionRate * 0.5 * hours
	default:
		change = (rng.Float64()*0.4 - 0.1) * hours // uniform [-0.1, 0.3)
	}
	old := s.Severity
	s.Severity = clamp(s.Severity+change, 0, 10)
	switch {
	case s.Severity > old+trendDelta:
		s.Trend = TrendWorsening
	case s.Severity < old-trendDelta:
		s.Trend = TrendImproving
	default:
		s.Trend = TrendStable
	}
}

// VitalSign is a named measurement with a normal reference range.
type VitalSign struct {
	Name  string
	Value float64
	Unit  string
	Low   float64
	High  float64
}

// IsNormal reports whether the value sits inside the reference range.
func (v *VitalSign) IsNormal() bool {
	return v.Value >= v.Low && v.Value <= v.High
}

// drift moves the value under the current total symptom load. A heavy load
// (total severity above 20) produces larger, direction-biased swings; a
// light load produces small fluctuation.
func (v *VitalSign) drift(hours, totalSeverity float64, rng *rand.Rand) {
	var change float64
	if totalSeverity > 20 {
		if rng.Float64() > 0.5 {
			change = (0.5 + rng.Float64()*1.5) * hours
		} else {
			change = (-2.0 + rng.Float64()*1.5) * hours
		}
	} else {
		change = (rng.Float64() - 0.5) * hours
	}
	v.Value += change
}

// PhysiologicalState is the per-patient time-driven state. It is created
// when an agent registers as a patient, mutated only by the time engine's
// tick and by explicit treatment/rest operations, and discarded on
// deregistration.
type PhysiologicalState struct {
	AgentID string

	Vitals   map[string]*VitalSign
	Symptoms map[string]*Symptom
	// symptomOrder preserves insertion order so the RNG is consumed in a
	// deterministic sequence each tick.
	symptomOrder []string
	vitalOrder   []string

	Energy        float64 // 0-10
	Pain          float64 // 0-10
	Consciousness string

	lastUpdate time.Time
}

// NewPhysiologicalState creates a state with the default vital signs of a
// stable adult.
func NewPhysiologicalState(agentID string, now time.Time) *PhysiologicalState {
	ps := &PhysiologicalState{
		AgentID:       agentID,
		Vitals:        make(map[string]*VitalSign),
		Symptoms:      make(map[string]*Symptom),
		Energy:        10.0,
		Consciousness: ConsciousnessAlert,
		lastUpdate:    now,
	}
	defaults := []*VitalSign{
		{Name: "heart_rate", Value: 75, Unit: "bpm", Low: 60, High: 100},
		{Name: "blood_pressure_systolic", Value: 120, Unit: "mmHg", Low: 90, High: 140},
		{Name: "blood_pressure_diastolic", Value: 80, Unit: "mmHg", Low: 60, High: 90},
		{Name: "temperature", Value: 36.5, Unit: "°C", Low: 36.0, High: 37.5},
		{Name: "respiratory_rate", Value: 16, Unit: "breaths/min", Low: 12, High: 20},
		{Name: "oxygen_saturation", Value: 98, Unit: "%", Low: 95, High: 100},
	}
	for _, v := range defaults {
		ps.Vitals[v.Name] = v
		ps.vitalOrder = append(ps.vitalOrder, v.Name)
	}
	return ps
}

// AddSymptom registers a symptom, replacing any previous one with the same
// name.
func (ps *PhysiologicalState) AddSymptom(name string, severity, progressionRate float64) {
	if _, exists := ps.Symptoms[name]; !exists {
		ps.symptomOrder = append(ps.symptomOrder, name)
	}
	ps.Symptoms[name] = &Symptom{
		Name:            name,
		Severity:        clamp(severity, 0, 10),
		Trend:           TrendStable,
		ProgressionRate: progressionRate,
	}
}

// SetVital updates a vital sign value, creating it with a default range if
// unknown.
func (ps *PhysiologicalState) SetVital(name string, value float64) {
	if v, ok := ps.Vitals[name]; ok {
		v.Value = value
		return
	}
	ps.Vitals[name] = &VitalSign{Name: name, Value: value, Low: 0, High: 100}
	ps.vitalOrder = append(ps.vitalOrder, name)
}

// Tick advances the state to now. No-op if less than minTickMinutes of
// simulated time has elapsed since the last update.
func (ps *PhysiologicalState) Tick(now time.Time, rng *rand.Rand) {
	elapsed := now.Sub(ps.lastUpdate)
	if elapsed < minTickMinutes*time.Minute {
		return
	}
	hours := elapsed.Hours()

	for _, name := range ps.symptomOrder {
		ps.Symptoms[name].progress(hours, rng)
	}

	total := ps.totalSeverity()
	for _, name := range ps.vitalOrder {
		ps.Vitals[name].drift(hours, total, rng)
	}

	// Energy drains faster the sicker the patient is.
	ps.Energy = clamp(ps.Energy-hours*(1+total/50), 0, 10)

	ps.recomputePain()
	ps.assessConsciousness()
	ps.lastUpdate = now
}

// totalSeverity sums all symptom severities.
func (ps *PhysiologicalState) totalSeverity() float64 {
	var total float64
	for _, s := range ps.Symptoms {
		total += s.Severity
	}
	return total
}

// recomputePain sets the pain scalar to the summed severity of the fixed
// pain-associated symptom set, averaged over the size of that set.
func (ps *PhysiologicalState) recomputePain() {
	var sum float64
	for _, name := range painSymptomNames {
		if s, ok := ps.Symptoms[name]; ok {
			sum += s.Severity
		}
	}
	ps.Pain = sum / float64(len(painSymptomNames))
}

// assessConsciousness downgrades consciousness from alert based on counts of
// abnormal vitals and high-severity symptoms. Unconsciousness requires
// strictly more of both than drowsiness; the exact thresholds are subject to
// clinical review.
func (ps *PhysiologicalState) assessConsciousness() {
	abnormalVitals := 0
	for _, v := range ps.Vitals {
		if !v.IsNormal() {
			abnormalVitals++
		}
	}
	severeSymptoms := 0
	for _, s := range ps.Symptoms {
		if s.Severity > 8 {
			severeSymptoms++
		}
	}
	switch {
	case abnormalVitals >= 4 || severeSymptoms >= 3:
		ps.Consciousness = ConsciousnessUnconscious
	case abnormalVitals >= 3 || severeSymptoms >= 2:
		ps.Consciousness = ConsciousnessDrowsy
	default:
		ps.Consciousness = ConsciousnessAlert
	}
}

// CheckCritical is a pure query flagging individually critical vital-sign
// bands. It returns whether any fired and the list of reasons.
func (ps *PhysiologicalState) CheckCritical() (bool, []string) {
	var reasons []string
	if hr, ok := ps.Vitals["heart_rate"]; ok && (hr.Value < 40 || hr.Value > 150) {
		reasons = append(reasons, fmt.Sprintf("heart rate %.0f", hr.Value))
	}
	if sys, ok := ps.Vitals["blood_pressure_systolic"]; ok && (sys.Value < 80 || sys.Value > 180) {
		reasons = append(reasons, fmt.Sprintf("systolic pressure %.0f", sys.Value))
	}
	if t, ok := ps.Vitals["temperature"]; ok && (t.Value < 35.0 || t.Value > 40.0) {
		reasons = append(reasons, fmt.Sprintf("temperature %.1f", t.Value))
	}
	if o2, ok := ps.Vitals["oxygen_saturation"]; ok && o2.Value < 90 {
		reasons = append(reasons, fmt.Sprintf("oxygen saturation %.0f", o2.Value))
	}
	return len(reasons) > 0, reasons
}

// ApplyMedication marks every untreated symptom as treated with the given
// effectiveness, so subsequent ticks decay them.
func (ps *PhysiologicalState) ApplyMedication(effectiveness float64) {
	for _, s := range ps.Symptoms {
		if !s.Treated {
			s.Treated = true
			s.Effectiveness = effectiveness
		}
	}
}

// Rest restores energy proportional to the rest duration and quality (0-1).
func (ps *PhysiologicalState) Rest(minutes int, quality float64) {
	ps.Energy = clamp(ps.Energy+float64(minutes)/60*5*quality, 0, 10)
}

// spendEnergy deducts a fixed cost, e.g. one movement hop.
func (ps *PhysiologicalState) spendEnergy(cost float64) {
	ps.Energy = clamp(ps.Energy-cost, 0, 10)
}

// Clone returns a deep copy. The engine hands out clones so callers can
// inspect state without holding the world lock.
func (ps *PhysiologicalState) Clone() *PhysiologicalState {
	out := &PhysiologicalState{
		AgentID:       ps.AgentID,
		Vitals:        make(map[string]*VitalSign, len(ps.Vitals)),
		Symptoms:      make(map[string]*Symptom, len(ps.Symptoms)),
		symptomOrder:  append([]string(nil), ps.symptomOrder...),
		vitalOrder:    append([]string(nil), ps.vitalOrder...),
		Energy:        ps.Energy,
		Pain:          ps.Pain,
		Consciousness: ps.Consciousness,
		lastUpdate:    ps.lastUpdate,
	}
	for name, v := range ps.Vitals {
		c := *v
		out.Vitals[name] = &c
	}
	for name, s := range ps.Symptoms {
		c := *s
		out.Symptoms[name] = &c
	}
	return out
}

// SymptomSeverities returns a name -> severity snapshot.
func (ps *PhysiologicalState) SymptomSeverities() map[string]float64 {
	out := make(map[string]float64, len(ps.Symptoms))
	for name, s := range ps.Symptoms {
		out[name] = s.Severity
	}
	return out
}

// VitalValues returns a name -> value snapshot.
func (ps *PhysiologicalState) VitalValues() map[string]float64 {
	out := make(map[string]float64, len(ps.Vitals))
	for name, v := range ps.Vitals {
		out[name] = v.Value
	}
	return out
}

// Summary renders a human-readable state report.
func (ps *PhysiologicalState) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "consciousness=%s energy=%.1f/10 pain=%.1f/10\n", ps.Consciousness, ps.Energy, ps.Pain)
	names := make([]string, 0, len(ps.Symptoms))
	for name := range ps.Symptoms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := ps.Symptoms[name]
		mark := ""
		if s.Treated {
			mark = " [treated]"
		}
		fmt.Fprintf(&sb, "  %s: %.1f/10 (%s)%s\n", s.Name, s.Severity, s.Trend, mark)
	}
	if critical, reasons := ps.CheckCritical(); critical {
		fmt.Fprintf(&sb, "  CRITICAL: %s\n", strings.Join(reasons, ", "))
	}
	return sb.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
