// Package coord implements the doctor/patient pool coordinator: priority-
// queued patient-to-doctor assignment, load-balanced selection, and
// multi-party consultation (referral) requests across departments.
//
// The pool is distinct from the equipment scheduler in sim/: doctors are
// stateful staff resources with personal wait queues and a consultation
// axis, and their load-balancing comparator (fewest patients served today)
// deliberately differs from the equipment rule (fewest daily uses).
package coord

import "fmt"

// DoctorStatus is the availability state of a doctor.
type DoctorStatus string

const (
	DoctorAvailable  DoctorStatus = "available"
	DoctorBusy       DoctorStatus = "busy"
	DoctorConsulting DoctorStatus = "consulting"
	DoctorOffline    DoctorStatus = "offline"
)

// Doctor is one staff resource in the pool.
type Doctor struct {
	ID         string
	Name       string
	Department string
	Status     DoctorStatus

	// CurrentPatient is the patient in an active primary consultation,
	// empty when none.
	CurrentPatient string

	// personalQueue holds patients waiting for this doctor specifically
	// (returning patients rejoin their doctor here). Served before the
	// shared department queue on Release.
	personalQueue sessionQueue

	// consultations is the set of patient ids this doctor is attached to
	// as a secondary (referral) participant.
	consultations map[string]bool

	// PatientsToday counts patients served today; the load-balancing key.
	PatientsToday int
}

// Available reports whether the doctor can take a new primary patient.
func (d *Doctor) Available() bool {
	return d.Status == DoctorAvailable
}

// startConsultation binds the doctor to a primary patient.
func (d *Doctor) startConsultation(patientID string) {
	d.Status = DoctorBusy
	d.CurrentPatient = patientID
	d.PatientsToday++
}

// endConsultation clears the primary patient. The doctor stays flagged
// consulting while secondary participations remain, and stays offline if
// taken out of rotation mid-consultation.
func (d *Doctor) endConsultation() {
	d.CurrentPatient = ""
	if d.Status == DoctorOffline {
		return
	}
	if len(d.consultations) > 0 {
		d.Status = DoctorConsulting
	} else {
		d.Status = DoctorAvailable
	}
}

// joinConsultation attaches the doctor as a secondary participant.
func (d *Doctor) joinConsultation(patientID string) {
	d.consultations[patientID] = true
	d.Status = DoctorConsulting
}

// leaveConsultation detaches the doctor from one consultation and restores
// availability when nothing else holds it.
func (d *Doctor) leaveConsultation(patientID string) {
	delete(d.consultations, patientID)
	if len(d.consultations) > 0 {
		return
	}
	if d.CurrentPatient != "" {
		d.Status = DoctorBusy
	} else if d.Status != DoctorOffline {
		d.Status = DoctorAvailable
	}
}

func (d *Doctor) String() string {
	return fmt.Sprintf("Doctor(%s, %s, %s)", d.ID, d.Department, d.Status)
}
