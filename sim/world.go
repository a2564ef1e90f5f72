package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hospital-sim/hospital-sim/sim/trace"
)

// WorkingHours bounds the service day. Service locations (lab, imaging,
// endoscopy, neurophysiology) are closed outside these hours and over lunch.
type WorkingHours struct {
	Start      int // opening hour, inclusive
	End        int // closing hour, exclusive
	LunchStart int
	LunchEnd   int
}

// WorldConfig groups construction parameters for NewWorld.
// Zero values fall back to the defaults below.
type WorldConfig struct {
	Start         time.Time // initial clock; default: a Monday at 08:00
	Seed          int64     // master RNG seed
	HopMinutes    int       // time quantum per movement hop (default 3)
	HopEnergyCost float64   // patient energy cost per hop (default 0.2)
	Hours         WorkingHours
}

func (c *WorldConfig) applyDefaults() {
	if c.Start.IsZero() {
		c.Start = time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	}
	if c.HopMinutes == 0 {
		c.HopMinutes = 3
	}
	if c.HopEnergyCost == 0 {
		c.HopEnergyCost = 0.2
	}
	if c.Hours == (WorkingHours{}) {
		c.Hours = WorkingHours{Start: 8, End: 18, LunchStart: 12, LunchEnd: 13}
	}
}

// World owns all mutable simulation state: the spatial graph, equipment,
// agent placement, and per-patient physiology. One coarse mutex guards the
// whole world, so Advance is atomic with respect to every other mutating
// operation. Exported methods lock and delegate to unexported *Locked
// internals; the internals assume the lock is held.
//
// Operations never block inside the lock. Anything that would wait
// (equipment busy) returns immediately with a queue position and estimated
// wait, and the caller polls via Advance + Observe.
type World struct {
	mu    sync.Mutex
	clock time.Time

	locations map[string]*Location
	locOrder  []string
	equipment map[string]*Equipment
	eqOrder   []string

	agents     map[string]*Agent
	agentOrder []string
	agentLoc   map[string]string
	states     map[string]*PhysiologicalState
	// critical tracks which patients were critical at the last tick, so
	// the alert fires once per episode.
	critical map[string]bool

	rng *PartitionedRNG
	rec *trace.Recorder

	// dayHooks run after any operation that crossed a calendar-day
	// boundary, once the world lock has been released. dayCrossed marks a
	// crossing resolved inside the lock whose hooks are still owed.
	dayHooks   []func()
	dayCrossed bool

	Metrics *Metrics

	cfg WorldConfig
}

// NewWorld creates an empty world. Locations and equipment are added with
// AddLocation/AddEquipment before agents enter.
func NewWorld(cfg WorldConfig, rec *trace.Recorder) *World {
	cfg.applyDefaults()
	if rec == nil {
		rec = trace.NewRecorder()
	}
	return &World{
		clock:     cfg.Start,
		locations: make(map[string]*Location),
		equipment: make(map[string]*Equipment),
		agents:    make(map[string]*Agent),
		agentLoc:  make(map[string]string),
		states:    make(map[string]*PhysiologicalState),
		critical:  make(map[string]bool),
		rng:       NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		rec:       rec,
		Metrics:   &Metrics{},
		cfg:       cfg,
	}
}

// AddLocation registers a location. Panics on a duplicate id; the graph is
// built once at startup and never changes afterwards.
func (w *World) AddLocation(loc *Location) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.locations[loc.ID]; exists {
		panic(fmt.Sprintf("duplicate location %q", loc.ID))
	}
	w.locations[loc.ID] = loc
	w.locOrder = append(w.locOrder, loc.ID)
}

// AddEquipment registers an equipment unit at an existing location.
func (w *World) AddEquipment(eq *Equipment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.equipment[eq.ID]; exists {
		panic(fmt.Sprintf("duplicate equipment %q", eq.ID))
	}
	if _, ok := w.locations[eq.LocationID]; !ok {
		panic(fmt.Sprintf("equipment %q placed at unknown location %q", eq.ID, eq.LocationID))
	}
	w.equipment[eq.ID] = eq
	w.eqOrder = append(w.eqOrder, eq.ID)
}

// Clock returns the current simulation time.
func (w *World) Clock() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clock
}

// Recorder returns the event recorder backing this world.
func (w *World) Recorder() *trace.Recorder { return w.rec }

// OnDayBoundary registers a callback invoked whenever the clock crosses a
// calendar-day boundary, via Advance or movement hops. Callbacks run after
// the boundary sweep completes, outside the world lock, so they may call
// back into the World or lock other subsystems.
func (w *World) OnDayBoundary(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dayHooks = append(w.dayHooks, fn)
}

// takeDayHooksLocked hands out the registered hooks once per crossing. The
// caller runs them after releasing the lock.
func (w *World) takeDayHooksLocked() []func() {
	if !w.dayCrossed {
		return nil
	}
	w.dayCrossed = false
	return w.dayHooks
}

// IsWorkingHours reports whether the clock is inside the service day.
func (w *World) IsWorkingHours() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isWorkingHoursLocked()
}

func (w *World) isWorkingHoursLocked() bool {
	hour := w.clock.Hour()
	h := w.cfg.Hours
	if hour >= h.LunchStart && hour < h.LunchEnd {
		return false
	}
	return hour >= h.Start && hour < h.End
}

// === Agent registration ===

// RegisterAgent places a new agent at the initial location. Placement is
// instantaneous (no travel time for first entry). Patients get a fresh
// physiological state.
func (w *World) RegisterAgent(agentID string, kind AgentKind, initialLocation string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !IsValidAgentKind(string(kind)) {
		return fmt.Errorf("agent kind %q: %w", kind, ErrNotFound)
	}
	if _, exists := w.agents[agentID]; exists {
		return fmt.Errorf("agent %q: %w", agentID, ErrAlreadyInState)
	}
	loc, ok := w.locations[initialLocation]
	if !ok {
		return fmt.Errorf("location %q: %w", initialLocation, ErrNotFound)
	}
	if !loc.HasRoom() {
		return fmt.Errorf("%s is full (%d/%d): %w", loc.Name, len(loc.Occupants), loc.Capacity, ErrCapacityExceeded)
	}

	w.agents[agentID] = &Agent{ID: agentID, Kind: kind}
	w.agentOrder = append(w.agentOrder, agentID)
	loc.addOccupant(agentID)
	w.agentLoc[agentID] = initialLocation

	if kind == AgentPatient {
		w.states[agentID] = NewPhysiologicalState(agentID, w.clock)
		w.Metrics.PatientsRegistered++
	}

	w.rec.Record(w.clock, "agent_registered", map[string]any{
		"agent": agentID, "kind": string(kind), "location": initialLocation,
	})
	logrus.Infof("[%s] agent %s (%s) entered at %s", w.clock.Format("15:04"), agentID, kind, initialLocation)
	return nil
}

// DeregisterAgent removes the agent from the world: occupancy, every
// equipment queue and reservation, current equipment holds, and (for
// patients) the physiological state.
func (w *World) DeregisterAgent(agentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.agents[agentID]; !ok {
		return fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	w.releaseEquipmentLocked(agentID)
	if locID, placed := w.agentLoc[agentID]; placed {
		w.locations[locID].removeOccupant(agentID)
		delete(w.agentLoc, agentID)
	}
	delete(w.states, agentID)
	delete(w.critical, agentID)
	delete(w.agents, agentID)
	for i, id := range w.agentOrder {
		if id == agentID {
			w.agentOrder = append(w.agentOrder[:i], w.agentOrder[i+1:]...)
			break
		}
	}
	w.Metrics.AgentsDeregistered++
	w.rec.Record(w.clock, "agent_deregistered", map[string]any{"agent": agentID})
	return nil
}

// State returns a copy of a registered patient's physiological state.
// The copy is safe to read while the simulation keeps running; writes go
// through AddSymptom, SetVital, ApplyMedication and Rest, which mutate the
// live state under the world lock.
func (w *World) State(agentID string) (*PhysiologicalState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ps, err := w.stateLocked(agentID)
	if err != nil {
		return nil, err
	}
	return ps.Clone(), nil
}

func (w *World) stateLocked(agentID string) (*PhysiologicalState, error) {
	ps, ok := w.states[agentID]
	if !ok {
		return nil, fmt.Errorf("no physiological state for %q: %w", agentID, ErrNotFound)
	}
	return ps, nil
}

// AddSymptom records a symptom on a registered patient, replacing any
// previous symptom with the same name.
func (w *World) AddSymptom(agentID, name string, severity, progressionRate float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ps, err := w.stateLocked(agentID)
	if err != nil {
		return err
	}
	ps.AddSymptom(name, severity, progressionRate)
	w.rec.Record(w.clock, "symptom_added", map[string]any{
		"agent": agentID, "symptom": name, "severity": severity,
	})
	return nil
}

// SetVital overwrites one vital sign measurement on a registered patient.
func (w *World) SetVital(agentID, name string, value float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ps, err := w.stateLocked(agentID)
	if err != nil {
		return err
	}
	ps.SetVital(name, value)
	return nil
}

// ApplyMedication treats every untreated symptom of the patient with the
// given effectiveness, so subsequent ticks decay them.
func (w *World) ApplyMedication(agentID string, effectiveness float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ps, err := w.stateLocked(agentID)
	if err != nil {
		return err
	}
	ps.ApplyMedication(effectiveness)
	w.rec.Record(w.clock, "medication_applied", map[string]any{
		"agent": agentID, "effectiveness": effectiveness,
	})
	return nil
}

// Rest restores the patient's energy proportional to duration and quality.
func (w *World) Rest(agentID string, minutes int, quality float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ps, err := w.stateLocked(agentID)
	if err != nil {
		return err
	}
	ps.Rest(minutes, quality)
	return nil
}

// AgentLocation returns the agent's current location id.
func (w *World) AgentLocation(agentID string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	loc, ok := w.agentLoc[agentID]
	return loc, ok
}

// === Movement ===

// validatePathLocked resolves the hop sequence for a move, or the typed
// error explaining why it cannot happen. Pure: no state changes.
func (w *World) validatePathLocked(agentID, target string) ([]string, error) {
	if _, ok := w.agents[agentID]; !ok {
		return nil, fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	if _, ok := w.locations[target]; !ok {
		return nil, fmt.Errorf("location %q: %w", target, ErrNotFound)
	}
	cur, placed := w.agentLoc[agentID]
	if !placed {
		return nil, fmt.Errorf("agent %q is not placed: %w", agentID, ErrNotFound)
	}
	if cur == target {
		return nil, fmt.Errorf("agent %q already at %s: %w", agentID, target, ErrAlreadyInState)
	}

	var path []string
	if contains(w.locations[cur].ConnectedTo, target) {
		path = []string{target}
	} else {
		path = w.shortestPath(cur, target)
		if path == nil {
			return nil, fmt.Errorf("no path from %s to %s; directly reachable: %s: %w",
				w.locations[cur].Name, w.locations[target].Name, w.neighborNames(cur), ErrUnreachable)
		}
	}

	// Every hop must fit and be open before anything mutates, so a failed
	// move has no partial side effects.
	for _, hop := range path {
		loc := w.locations[hop]
		if !loc.HasRoom() {
			return nil, fmt.Errorf("%s is full (%d/%d): %w", loc.Name, len(loc.Occupants), loc.Capacity, ErrCapacityExceeded)
		}
		if isServiceKind(loc.Kind) && !w.isWorkingHoursLocked() {
			return nil, fmt.Errorf("%s is closed (working hours %d:00-%d:00): %w",
				loc.Name, w.cfg.Hours.Start, w.cfg.Hours.End, ErrUnavailable)
		}
	}
	return path, nil
}

// CanMove performs move validation without executing it, for pre-flight
// checks.
func (w *World) CanMove(agentID, target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.validatePathLocked(agentID, target)
	return err
}

// MoveAgent walks the agent along the shortest path to the target, one hop
// at a time. Each hop updates occupancy, costs one time quantum (advancing
// the clock and therefore physiology), deducts energy from patients, and is
// appended to the movement history.
func (w *World) MoveAgent(agentID, target string) (string, error) {
	w.mu.Lock()
	msg, err := w.moveAgentLocked(agentID, target)
	hooks := w.takeDayHooksLocked()
	w.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return msg, err
}

func (w *World) moveAgentLocked(agentID, target string) (string, error) {
	path, err := w.validatePathLocked(agentID, target)
	if err != nil {
		return "", err
	}

	for _, hop := range path {
		from := w.agentLoc[agentID]
		w.locations[from].removeOccupant(agentID)
		w.locations[hop].addOccupant(agentID)
		w.agentLoc[agentID] = hop

		w.rec.RecordMove(w.clock, agentID, from, hop)
		w.Metrics.MovesExecuted++
		if ps, isPatient := w.states[agentID]; isPatient {
			ps.spendEnergy(w.cfg.HopEnergyCost)
		}
		w.advanceLocked(w.cfg.HopMinutes)
		w.rec.Record(w.clock, "agent_move", map[string]any{
			"agent": agentID, "from": from, "to": hop,
		})
	}

	total := len(path) * w.cfg.HopMinutes
	dest := w.locations[target]
	logrus.Infof("[%s] %s arrived at %s (%d min, %d hops)", w.clock.Format("15:04"), agentID, dest.Name, total, len(path))
	return fmt.Sprintf("arrived at %s (%d minutes)", dest.Name, total), nil
}

// === Time engine ===

// Advance moves the clock forward by the given minutes and resolves all
// time-dependent state: maintenance windows, finished equipment usage with
// auto-hand-off to queued waiters, and every patient's physiology. Atomic
// with respect to all other operations.
func (w *World) Advance(minutes int) {
	w.mu.Lock()
	w.advanceLocked(minutes)
	hooks := w.takeDayHooksLocked()
	w.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (w *World) advanceLocked(minutes int) {
	old := w.clock
	w.clock = w.clock.Add(time.Duration(minutes) * time.Minute)
	w.Metrics.MinutesAdvanced += minutes

	if old.YearDay() != w.clock.YearDay() || old.Year() != w.clock.Year() {
		for _, id := range w.eqOrder {
			w.equipment[id].ResetDailyUsage()
		}
		w.dayCrossed = true
		w.rec.Record(w.clock, "daily_reset", map[string]any{"date": w.clock.Format("2006-01-02")})
	}

	for _, id := range w.eqOrder {
		eq := w.equipment[id]

		if eq.Status == EquipmentMaintenance && !eq.MaintenanceUntil.IsZero() && !w.clock.Before(eq.MaintenanceUntil) {
			eq.Status = EquipmentAvailable
			eq.MaintenanceUntil = time.Time{}
			w.rec.Record(w.clock, "maintenance_complete", map[string]any{"equipment": eq.ID})
		}

		freed, done := eq.FinishUse(w.clock)
		if !done {
			continue
		}
		w.Metrics.ExamsCompleted++
		w.rec.Record(w.clock, "exam_complete", map[string]any{
			"equipment": eq.ID, "agent": freed,
		})
		logrus.Debugf("[%s] %s finished on %s", w.clock.Format("15:04"), freed, eq.ID)

		// Auto-hand-off: the head waiter gets the slot immediately if it
		// is still physically at the equipment's location.
		entry, ok := eq.HeadEntry()
		if !ok {
			continue
		}
		if w.agentLoc[entry.AgentID] != eq.LocationID || !eq.CanUse(w.clock) {
			continue
		}
		eq.StartUse(entry.AgentID, w.clock, entry.Priority)
		w.Metrics.ExamsStarted++
		w.Metrics.AutoHandoffs++
		w.rec.RecordSlot(eq.ID, entry.AgentID, w.clock, eq.OccupiedUntil)
		w.rec.Record(w.clock, "exam_auto_start", map[string]any{
			"equipment": eq.ID, "agent": entry.AgentID, "priority": entry.Priority,
		})
		logrus.Infof("[%s] auto hand-off: %s -> %s", w.clock.Format("15:04"), eq.ID, entry.AgentID)
	}

	physioRNG := w.rng.ForSubsystem(SubsystemPhysiology)
	for _, agentID := range w.agentOrder {
		ps, isPatient := w.states[agentID]
		if !isPatient {
			continue
		}
		ps.Tick(w.clock, physioRNG)
		if critical, reasons := ps.CheckCritical(); critical && !w.critical[agentID] {
			w.critical[agentID] = true
			w.Metrics.CriticalAlerts++
			w.rec.Record(w.clock, "critical_condition", map[string]any{
				"agent": agentID, "reasons": reasons,
			})
			logrus.Warnf("[%s] patient %s critical: %v", w.clock.Format("15:04"), agentID, reasons)
		} else if !critical {
			w.critical[agentID] = false
		}
	}

	w.rec.Record(w.clock, "time_advance", map[string]any{
		"from": old.Format("15:04"), "to": w.clock.Format("15:04"), "minutes": minutes,
	})
}

func contains(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
