package sim

import "fmt"

// AgentKind classifies a placeable entity in the simulation.
type AgentKind string

const (
	AgentPatient    AgentKind = "patient"
	AgentDoctor     AgentKind = "doctor"
	AgentNurse      AgentKind = "nurse"
	AgentTechnician AgentKind = "technician"
)

// validAgentKinds maps accepted agent kind strings.
var validAgentKinds = map[AgentKind]bool{
	AgentPatient:    true,
	AgentDoctor:     true,
	AgentNurse:      true,
	AgentTechnician: true,
}

// IsValidAgentKind returns true if the given kind string is recognized.
func IsValidAgentKind(kind string) bool {
	return validAgentKinds[AgentKind(kind)]
}

// Agent is any placeable entity: patient, doctor, nurse, or technician.
// The engine exclusively owns the agent-to-location mapping; an agent is at
// exactly one location, or not placed at all.
type Agent struct {
	ID   string
	Kind AgentKind
}

func (a Agent) String() string {
	return fmt.Sprintf("Agent(%s, %s)", a.ID, a.Kind)
}
