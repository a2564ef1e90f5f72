package sim

import (
	"fmt"
	"time"
)

// Observation is a read-only snapshot of what an agent can see: where it
// is, what is nearby, equipment status at its location, and (for patients)
// its own physiology.
type Observation struct {
	Time         time.Time
	WorkingHours bool

	LocationID   string
	LocationName string
	Actions      []string
	Occupants    int
	Capacity     int
	// Nearby lists directly connected locations with their occupancy,
	// e.g. "Imaging (2/5)".
	Nearby []string

	Equipment []string // status lines for equipment at this location

	// Patient-only fields; nil/zero for staff.
	Symptoms      map[string]float64
	Vitals        map[string]float64
	Energy        float64
	Pain          float64
	Consciousness string
}

// Observe returns the agent's current observation.
func (w *World) Observe(agentID string) (Observation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.agents[agentID]; !ok {
		return Observation{}, fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	locID, placed := w.agentLoc[agentID]
	if !placed {
		return Observation{}, fmt.Errorf("agent %q is not placed: %w", agentID, ErrNotFound)
	}
	loc := w.locations[locID]

	obs := Observation{
		Time:         w.clock,
		WorkingHours: w.isWorkingHoursLocked(),
		LocationID:   locID,
		LocationName: loc.Name,
		Actions:      loc.Actions,
		Occupants:    len(loc.Occupants),
		Capacity:     loc.Capacity,
	}
	for _, id := range loc.ConnectedTo {
		n := w.locations[id]
		obs.Nearby = append(obs.Nearby, fmt.Sprintf("%s (%d/%d)", n.Name, len(n.Occupants), n.Capacity))
	}
	for _, id := range w.eqOrder {
		eq := w.equipment[id]
		if eq.LocationID == locID {
			obs.Equipment = append(obs.Equipment, eq.StatusLine(w.clock))
		}
	}
	if ps, isPatient := w.states[agentID]; isPatient {
		obs.Symptoms = ps.SymptomSeverities()
		obs.Vitals = ps.VitalValues()
		obs.Energy = ps.Energy
		obs.Pain = ps.Pain
		obs.Consciousness = ps.Consciousness
	}
	return obs, nil
}
