// Tracks simulation-wide counters for final reporting.

package sim

import "fmt"

// Metrics aggregates statistics about the simulation for final reporting.
// Useful for evaluating throughput and debugging behavior over time.
type Metrics struct {
	PatientsRegistered int
	AgentsDeregistered int
	MovesExecuted      int // individual hops, not whole paths
	ExamsStarted       int
	ExamsCompleted     int
	ExamsQueued        int
	AutoHandoffs       int
	MinutesAdvanced    int
	CriticalAlerts     int
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Patients Registered  : %d\n", m.PatientsRegistered)
	fmt.Printf("Moves Executed       : %d\n", m.MovesExecuted)
	fmt.Printf("Exams Started        : %d\n", m.ExamsStarted)
	fmt.Printf("Exams Completed      : %d\n", m.ExamsCompleted)
	fmt.Printf("Exams Queued         : %d\n", m.ExamsQueued)
	fmt.Printf("Auto Hand-offs       : %d\n", m.AutoHandoffs)
	fmt.Printf("Minutes Advanced     : %d\n", m.MinutesAdvanced)
	fmt.Printf("Critical Alerts      : %d\n", m.CriticalAlerts)
}
