package coord

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hospital-sim/hospital-sim/sim"
	"github.com/hospital-sim/hospital-sim/sim/trace"
)

// Stats are the pool's monotone counters.
type Stats struct {
	PatientsRegistered int
	Assignments        int
	Consultations      int
	LabVisits          int
	ImagingVisits      int
	Discharges         int
}

// pendingConsult is a consultation request waiting for a free doctor in
// the target department.
type pendingConsult struct {
	patientID   string
	department  string
	requestedAt time.Time
}

// Pool coordinates doctors and patient sessions across departments. All
// exported methods are safe for concurrent use; operations never block,
// waiting is done by the caller via polling (see WaitForAssignment).
type Pool struct {
	mu sync.Mutex

	// clock is injected so pool time follows the simulation clock rather
	// than wall time.
	clock func() time.Time

	doctors  map[string]*Doctor
	docOrder []string

	sessions map[string]*Session

	// deptQueues holds patients waiting for any doctor of a department.
	deptQueues map[string]*sessionQueue

	pendingConsults []pendingConsult

	rec   *trace.Recorder
	stats Stats
}

// NewPool creates an empty pool driven by the given clock. A nil recorder
// disables tracing.
func NewPool(clock func() time.Time, rec *trace.Recorder) *Pool {
	if clock == nil {
		panic("coord: nil clock")
	}
	return &Pool{
		clock:      clock,
		doctors:    make(map[string]*Doctor),
		sessions:   make(map[string]*Session),
		deptQueues: make(map[string]*sessionQueue),
		rec:        rec,
	}
}

// RegisterDoctor adds a doctor to the pool. Panics on a duplicate id.
func (p *Pool) RegisterDoctor(id, name, department string) *Doctor {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.doctors[id]; ok {
		panic(fmt.Sprintf("coord: duplicate doctor %q", id))
	}
	d := &Doctor{
		ID:            id,
		Name:          name,
		Department:    department,
		Status:        DoctorAvailable,
		consultations: make(map[string]bool),
	}
	p.doctors[id] = d
	p.docOrder = append(p.docOrder, id)
	if p.deptQueues[department] == nil {
		p.deptQueues[department] = &sessionQueue{}
	}
	logrus.Infof("[coord] doctor %s (%s) registered in %s", id, name, department)

	// A doctor joining may unblock waiters already queued for the dept.
	p.tryAssignLocked(department)
	p.retryPendingConsultsLocked(department)
	return d
}

// SetDoctorOffline takes the doctor out of rotation. An active primary
// consultation keeps running until Release.
func (p *Pool) SetDoctorOffline(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.doctors[id]
	if !ok {
		return fmt.Errorf("doctor %q: %w", id, sim.ErrNotFound)
	}
	d.Status = DoctorOffline
	logrus.Infof("[coord] doctor %s offline", id)
	return nil
}

// SetDoctorOnline returns the doctor to rotation and serves any waiters.
func (p *Pool) SetDoctorOnline(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.doctors[id]
	if !ok {
		return fmt.Errorf("doctor %q: %w", id, sim.ErrNotFound)
	}
	if d.Status != DoctorOffline {
		return fmt.Errorf("doctor %q is %s: %w", id, d.Status, sim.ErrAlreadyInState)
	}
	d.Status = DoctorAvailable
	logrus.Infof("[coord] doctor %s online", id)
	p.servePersonalLocked(d)
	p.tryAssignLocked(d.Department)
	p.retryPendingConsultsLocked(d.Department)
	return nil
}

// RegisterPatient opens a session for the patient in a department and
// queues them for assignment. Priority 1 is the most urgent. Returns the
// assigned doctor id when a doctor was free immediately, or "" when the
// patient was queued.
func (p *Pool) RegisterPatient(patientID, department string, priority int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.sessions[patientID]; ok {
		return "", fmt.Errorf("patient %q already registered: %w", patientID, sim.ErrAlreadyInState)
	}
	now := p.clock()
	s := &Session{
		PatientID:         patientID,
		Department:        department,
		Priority:          priority,
		Arrival:           now,
		State:             SessionRegistered,
		ConsultingDoctors: make(map[string]bool),
	}
	p.sessions[patientID] = s
	p.stats.PatientsRegistered++
	p.record("patient_registered", map[string]any{
		"patient":    patientID,
		"department": department,
		"priority":   priority,
		"state":      string(s.State),
	})
	logrus.Infof("[coord] patient %s registered in %s (priority %d)", patientID, department, priority)

	s.State = SessionWaiting
	if p.deptQueues[department] == nil {
		p.deptQueues[department] = &sessionQueue{}
	}
	p.deptQueues[department].push(patientID, priority, now)
	p.tryAssignLocked(department)
	if s.State == SessionConsulting {
		return s.AssignedDoctor, nil
	}
	return "", nil
}

// TryAssign attempts one assignment from the department queue. It is a
// no-op when the queue is empty or no doctor is free. Returns ErrNotFound
// when the department has no registered doctors at all.
func (p *Pool) TryAssign(department string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.deptHasDoctorsLocked(department) {
		return fmt.Errorf("department %q has no doctors: %w", department, sim.ErrNotFound)
	}
	p.tryAssignLocked(department)
	return nil
}

// AssignManually binds a specific free doctor to a specific waiting
// patient, bypassing queue order.
func (p *Pool) AssignManually(patientID, doctorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	d, ok := p.doctors[doctorID]
	if !ok {
		return fmt.Errorf("doctor %q: %w", doctorID, sim.ErrNotFound)
	}
	if s.State != SessionWaiting {
		return fmt.Errorf("patient %q is %s: %w", patientID, s.State, sim.ErrAlreadyInState)
	}
	if !d.Available() {
		return fmt.Errorf("doctor %q is %s: %w", doctorID, d.Status, sim.ErrUnavailable)
	}
	if q := p.deptQueues[s.Department]; q != nil {
		q.remove(patientID)
	}
	d.personalQueue.remove(patientID)
	p.bindLocked(d, s)
	return nil
}

// Release ends the doctor's current primary consultation. The freed
// doctor serves their personal queue first, then the shared department
// queue, then any pending consultation requests.
func (p *Pool) Release(doctorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.doctors[doctorID]
	if !ok {
		return fmt.Errorf("doctor %q: %w", doctorID, sim.ErrNotFound)
	}
	if d.CurrentPatient == "" {
		return fmt.Errorf("doctor %q has no patient: %w", doctorID, sim.ErrAlreadyInState)
	}
	patientID := d.CurrentPatient
	if s, ok := p.sessions[patientID]; ok && s.State == SessionConsulting {
		s.State = SessionWaiting
		s.ConsultEnd = p.clock()
	}
	d.endConsultation()
	p.record("consultation_end", map[string]any{
		"patient": patientID,
		"doctor":  doctorID,
	})
	logrus.Infof("[coord] doctor %s released patient %s", doctorID, patientID)

	p.servePersonalLocked(d)
	p.tryAssignLocked(d.Department)
	p.retryPendingConsultsLocked(d.Department)
	return nil
}

// RequestConsultation asks a doctor from another department to join the
// patient's consultation as a secondary participant. When the department
// has no free doctor the request is queued and retried on each Release.
// Returns the consulting doctor id, or "" when queued.
func (p *Pool) RequestConsultation(patientID, department string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return "", fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	if !p.deptHasDoctorsLocked(department) {
		return "", fmt.Errorf("department %q has no doctors: %w", department, sim.ErrNotFound)
	}
	if d := p.pickConsultantLocked(department, patientID); d != nil {
		d.joinConsultation(patientID)
		s.ConsultingDoctors[d.ID] = true
		p.stats.Consultations++
		p.record("consultation_join", map[string]any{
			"patient": patientID,
			"doctor":  d.ID,
		})
		logrus.Infof("[coord] doctor %s joined consultation for %s", d.ID, patientID)
		return d.ID, nil
	}
	p.pendingConsults = append(p.pendingConsults, pendingConsult{
		patientID:   patientID,
		department:  department,
		requestedAt: p.clock(),
	})
	logrus.Infof("[coord] consultation for %s queued on %s", patientID, department)
	return "", nil
}

// EndConsultation detaches a secondary doctor from the patient's
// consultation.
func (p *Pool) EndConsultation(patientID, doctorID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	d, ok := p.doctors[doctorID]
	if !ok {
		return fmt.Errorf("doctor %q: %w", doctorID, sim.ErrNotFound)
	}
	if !s.ConsultingDoctors[doctorID] {
		return fmt.Errorf("doctor %q is not consulting on %q: %w", doctorID, patientID, sim.ErrNotFound)
	}
	delete(s.ConsultingDoctors, doctorID)
	d.leaveConsultation(patientID)
	logrus.Infof("[coord] doctor %s left consultation for %s", doctorID, patientID)

	if d.Available() {
		p.servePersonalLocked(d)
		p.tryAssignLocked(d.Department)
	}
	p.retryPendingConsultsLocked(d.Department)
	return nil
}

// SendToLab suspends the patient's consultation for a lab excursion. The
// assigned doctor is released but stays recorded as the continuity link.
func (p *Pool) SendToLab(patientID string) error {
	return p.sendOut(patientID, SessionWaitingLab)
}

// CompleteLab marks the lab work done and routes the patient back.
func (p *Pool) CompleteLab(patientID string) error {
	return p.completeExcursion(patientID, SessionWaitingLab)
}

// SendToImaging suspends the patient's consultation for an imaging
// excursion.
func (p *Pool) SendToImaging(patientID string) error {
	return p.sendOut(patientID, SessionWaitingImaging)
}

// CompleteImaging marks the imaging done and routes the patient back.
func (p *Pool) CompleteImaging(patientID string) error {
	return p.completeExcursion(patientID, SessionWaitingImaging)
}

func (p *Pool) sendOut(patientID string, dst SessionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	if s.State != SessionConsulting {
		return fmt.Errorf("patient %q is %s: %w", patientID, s.State, sim.ErrAlreadyInState)
	}
	s.State = dst
	switch dst {
	case SessionWaitingLab:
		s.LabReady = false
		p.stats.LabVisits++
	case SessionWaitingImaging:
		s.ImagingReady = false
		p.stats.ImagingVisits++
	}

	// Free the doctor for other patients; the session keeps the doctor id
	// so the patient rejoins the same doctor's personal queue on return.
	if d, ok := p.doctors[s.AssignedDoctor]; ok && d.CurrentPatient == patientID {
		d.endConsultation()
		p.servePersonalLocked(d)
		p.tryAssignLocked(d.Department)
		p.retryPendingConsultsLocked(d.Department)
	}
	p.record("patient_sent_out", map[string]any{
		"patient": patientID,
		"to":      string(dst),
	})
	logrus.Infof("[coord] patient %s sent out (%s)", patientID, dst)
	return nil
}

func (p *Pool) completeExcursion(patientID string, from SessionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	if s.State != from {
		return fmt.Errorf("patient %q is %s: %w", patientID, s.State, sim.ErrAlreadyInState)
	}
	switch from {
	case SessionWaitingLab:
		s.LabReady = true
	case SessionWaitingImaging:
		s.ImagingReady = true
	}
	s.State = SessionReturning
	p.record("patient_returning", map[string]any{
		"patient": patientID,
		"from":    string(from),
	})

	now := p.clock()
	s.State = SessionWaiting
	if d, ok := p.doctors[s.AssignedDoctor]; ok && d.Status != DoctorOffline {
		// Continuity: rejoin the same doctor's personal queue.
		d.personalQueue.push(patientID, s.Priority, now)
		logrus.Infof("[coord] patient %s returning to doctor %s", patientID, d.ID)
		if d.Available() {
			p.servePersonalLocked(d)
		}
		return nil
	}
	p.deptQueues[s.Department].push(patientID, s.Priority, now)
	p.tryAssignLocked(s.Department)
	return nil
}

// Discharge closes the patient's session. Active consultations are ended
// and all participating doctors are freed.
func (p *Pool) Discharge(patientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	if s.State == SessionDischarged {
		return fmt.Errorf("patient %q already discharged: %w", patientID, sim.ErrAlreadyInState)
	}
	p.detachPatientLocked(s)
	s.State = SessionDischarged
	p.stats.Discharges++
	p.record("patient_discharged", map[string]any{"patient": patientID})
	logrus.Infof("[coord] patient %s discharged", patientID)
	return nil
}

// RemovePatient purges the patient from the pool entirely: session,
// queues and pending consultation requests.
func (p *Pool) RemovePatient(patientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	p.detachPatientLocked(s)
	delete(p.sessions, patientID)
	logrus.Infof("[coord] patient %s removed", patientID)
	return nil
}

// detachPatientLocked frees doctors and removes the patient from every
// queue without touching the session map.
func (p *Pool) detachPatientLocked(s *Session) {
	if d, ok := p.doctors[s.AssignedDoctor]; ok && d.CurrentPatient == s.PatientID {
		d.endConsultation()
		p.servePersonalLocked(d)
		p.tryAssignLocked(d.Department)
	}
	for docID := range s.ConsultingDoctors {
		if d, ok := p.doctors[docID]; ok {
			d.leaveConsultation(s.PatientID)
		}
	}
	s.ConsultingDoctors = make(map[string]bool)
	if q := p.deptQueues[s.Department]; q != nil {
		q.remove(s.PatientID)
	}
	for _, id := range p.docOrder {
		p.doctors[id].personalQueue.remove(s.PatientID)
	}
	kept := p.pendingConsults[:0]
	for _, pc := range p.pendingConsults {
		if pc.patientID != s.PatientID {
			kept = append(kept, pc)
		}
	}
	p.pendingConsults = kept
}

// tryAssignLocked serves the department queue while free doctors remain.
func (p *Pool) tryAssignLocked(department string) {
	q := p.deptQueues[department]
	if q == nil {
		return
	}
	for q.len() > 0 {
		d := p.pickDoctorLocked(department)
		if d == nil {
			return
		}
		patientID, _ := q.pop()
		s, ok := p.sessions[patientID]
		if !ok || s.State != SessionWaiting {
			continue
		}
		p.bindLocked(d, s)
	}
}

// servePersonalLocked serves the doctor's personal queue head, if any.
func (p *Pool) servePersonalLocked(d *Doctor) {
	for d.Available() && d.personalQueue.len() > 0 {
		patientID, _ := d.personalQueue.pop()
		s, ok := p.sessions[patientID]
		if !ok || s.State != SessionWaiting {
			continue
		}
		p.bindLocked(d, s)
	}
}

func (p *Pool) bindLocked(d *Doctor, s *Session) {
	d.startConsultation(s.PatientID)
	s.State = SessionConsulting
	s.AssignedDoctor = d.ID
	s.ConsultStart = p.clock()
	p.stats.Assignments++
	p.record("consultation_start", map[string]any{
		"patient": s.PatientID,
		"doctor":  d.ID,
	})
	logrus.Infof("[coord] doctor %s took patient %s", d.ID, s.PatientID)
}

// pickDoctorLocked selects the free doctor in a department with the
// fewest patients served today, registration order breaking ties.
func (p *Pool) pickDoctorLocked(department string) *Doctor {
	var best *Doctor
	for _, id := range p.docOrder {
		d := p.doctors[id]
		if d.Department != department || !d.Available() {
			continue
		}
		if best == nil || d.PatientsToday < best.PatientsToday {
			best = d
		}
	}
	return best
}

// pickConsultantLocked selects a doctor who can join a consultation as a
// secondary participant. The patient's own primary doctor is excluded.
func (p *Pool) pickConsultantLocked(department, patientID string) *Doctor {
	var best *Doctor
	for _, id := range p.docOrder {
		d := p.doctors[id]
		if d.Department != department || d.Status == DoctorOffline {
			continue
		}
		if !d.Available() {
			continue
		}
		if s, ok := p.sessions[patientID]; ok && s.AssignedDoctor == d.ID {
			continue
		}
		if best == nil || d.PatientsToday < best.PatientsToday {
			best = d
		}
	}
	return best
}

func (p *Pool) retryPendingConsultsLocked(department string) {
	kept := p.pendingConsults[:0]
	for _, pc := range p.pendingConsults {
		if pc.department != department {
			kept = append(kept, pc)
			continue
		}
		s, ok := p.sessions[pc.patientID]
		if !ok || s.State == SessionDischarged {
			continue
		}
		d := p.pickConsultantLocked(pc.department, pc.patientID)
		if d == nil {
			kept = append(kept, pc)
			continue
		}
		d.joinConsultation(pc.patientID)
		s.ConsultingDoctors[d.ID] = true
		p.stats.Consultations++
		p.record("consultation_join", map[string]any{
			"patient": pc.patientID,
			"doctor":  d.ID,
		})
		logrus.Infof("[coord] doctor %s joined queued consultation for %s", d.ID, pc.patientID)
	}
	p.pendingConsults = kept
}

func (p *Pool) deptHasDoctorsLocked(department string) bool {
	for _, id := range p.docOrder {
		if p.doctors[id].Department == department {
			return true
		}
	}
	return false
}

func (p *Pool) record(eventType string, payload map[string]any) {
	if p.rec != nil {
		p.rec.Record(p.clock(), eventType, payload)
	}
}

// Session returns a snapshot copy of a patient's session.
func (p *Pool) Session(patientID string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[patientID]
	if !ok {
		return Session{}, fmt.Errorf("patient %q: %w", patientID, sim.ErrNotFound)
	}
	cp := *s
	cp.ConsultingDoctors = make(map[string]bool, len(s.ConsultingDoctors))
	for k, v := range s.ConsultingDoctors {
		cp.ConsultingDoctors[k] = v
	}
	return cp, nil
}

// DoctorStatus returns a one-line status for each doctor, registration
// order.
func (p *Pool) DoctorStatus() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	lines := make([]string, 0, len(p.docOrder))
	for _, id := range p.docOrder {
		d := p.doctors[id]
		line := fmt.Sprintf("%s (%s, %s): %s", d.ID, d.Name, d.Department, d.Status)
		if d.CurrentPatient != "" {
			line += fmt.Sprintf(", with %s", d.CurrentPatient)
		}
		if n := d.personalQueue.len(); n > 0 {
			line += fmt.Sprintf(", %d waiting", n)
		}
		lines = append(lines, line)
	}
	return lines
}

// DeptStatus reports queue length and free doctors for a department.
func (p *Pool) DeptStatus(department string) (waiting int, free int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if q := p.deptQueues[department]; q != nil {
		waiting = q.len()
	}
	for _, id := range p.docOrder {
		d := p.doctors[id]
		if d.Department == department && d.Available() {
			free++
		}
	}
	return waiting, free
}

// QueuedPatients returns the department queue contents in service order.
func (p *Pool) QueuedPatients(department string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if q := p.deptQueues[department]; q != nil {
		return q.patientIDs()
	}
	return nil
}

// Stats returns a copy of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// SystemStats renders an aggregate report across departments.
func (p *Pool) SystemStats() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	depts := make([]string, 0, len(p.deptQueues))
	for dept := range p.deptQueues {
		depts = append(depts, dept)
	}
	sort.Strings(depts)

	out := fmt.Sprintf("pool: %d doctors, %d sessions, %d assignments, %d consultations, %d discharges\n",
		len(p.doctors), len(p.sessions), p.stats.Assignments, p.stats.Consultations, p.stats.Discharges)
	for _, dept := range depts {
		waiting := p.deptQueues[dept].len()
		free, total := 0, 0
		for _, id := range p.docOrder {
			d := p.doctors[id]
			if d.Department != dept {
				continue
			}
			total++
			if d.Available() {
				free++
			}
		}
		out += fmt.Sprintf("  %s: %d waiting, %d/%d doctors free\n", dept, waiting, free, total)
	}
	return out
}

// ResetDailyCounts zeroes every doctor's served-today counter. Called by
// the world's day-boundary sweep.
func (p *Pool) ResetDailyCounts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.docOrder {
		p.doctors[id].PatientsToday = 0
	}
}
