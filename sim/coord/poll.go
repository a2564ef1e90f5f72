package coord

import (
	"context"
	"fmt"
	"time"

	"github.com/hospital-sim/hospital-sim/sim"
)

const (
	defaultPollTimeout  = 300 * time.Second
	defaultPollInterval = 500 * time.Millisecond
)

// PollConfig controls the caller-driven wait loop. Zero values take the
// defaults (300s timeout, 500ms interval).
type PollConfig struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Timeout <= 0 {
		c.Timeout = defaultPollTimeout
	}
	if c.Interval <= 0 {
		c.Interval = defaultPollInterval
	}
	return c
}

// WaitForAssignment polls until the patient's session reaches Consulting,
// nudging the department queue on each pass. On timeout the error wraps
// ErrAssignmentTimeout with queue position and doctor availability so the
// caller can tell a busy department from an empty one.
func (p *Pool) WaitForAssignment(ctx context.Context, patientID string, cfg PollConfig) (string, error) {
	cfg = cfg.withDefaults()
	deadline := time.Now().Add(cfg.Timeout)

	for {
		s, err := p.Session(patientID)
		if err != nil {
			return "", err
		}
		if s.State == SessionConsulting {
			return s.AssignedDoctor, nil
		}
		if s.State == SessionDischarged {
			return "", fmt.Errorf("patient %q discharged while waiting: %w", patientID, sim.ErrAlreadyInState)
		}

		// Assignment happens on state changes; re-trigger here so a
		// waiter never stalls on a missed edge.
		if err := p.TryAssign(s.Department); err != nil {
			return "", err
		}
		s, err = p.Session(patientID)
		if err != nil {
			return "", err
		}
		if s.State == SessionConsulting {
			return s.AssignedDoctor, nil
		}

		if time.Now().After(deadline) {
			waiting, free := p.DeptStatus(s.Department)
			return "", fmt.Errorf("patient %q in %s after %s (%d waiting, %d doctors free): %w",
				patientID, s.Department, cfg.Timeout, waiting, free, sim.ErrAssignmentTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
}
