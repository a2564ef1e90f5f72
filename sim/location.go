package sim

import (
	"fmt"
	"strings"
)

// LocationKind tags the broad function of a location. Service locations
// (lab, imaging, endoscopy, neurophysiology) are gated by working hours.
type LocationKind string

const (
	LocationLobby           LocationKind = "lobby"
	LocationTriage          LocationKind = "triage"
	LocationClinic          LocationKind = "clinic"
	LocationLab             LocationKind = "lab"
	LocationImaging         LocationKind = "imaging"
	LocationEndoscopy       LocationKind = "endoscopy"
	LocationNeurophysiology LocationKind = "neurophysiology"
	LocationPharmacy        LocationKind = "pharmacy"
)

// isServiceKind reports whether a location kind is closed outside working hours.
func isServiceKind(kind LocationKind) bool {
	switch kind {
	case LocationLab, LocationImaging, LocationEndoscopy, LocationNeurophysiology:
		return true
	}
	return false
}

// Location is a node in the static spatial graph. Connectivity and capacity
// are fixed at construction; only the occupant set changes at runtime.
//
// The occupant invariant (count <= capacity) is enforced by move validation
// in World.MoveAgent. Over-capacity is reported to the caller, never
// silently clamped.
type Location struct {
	ID       string
	Name     string
	Kind     LocationKind
	Capacity int
	// ConnectedTo lists neighbor ids in insertion order. BFS explores
	// neighbors in this order, so shortest-path ties are deterministic.
	ConnectedTo []string
	Occupants   map[string]bool
	Actions     []string
}

// NewLocation creates a Location with an empty occupant set.
func NewLocation(id, name string, kind LocationKind, capacity int, connectedTo, actions []string) *Location {
	return &Location{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Capacity:    capacity,
		ConnectedTo: connectedTo,
		Occupants:   make(map[string]bool),
		Actions:     actions,
	}
}

// HasRoom reports whether at least one more occupant fits.
func (l *Location) HasRoom() bool {
	return len(l.Occupants) < l.Capacity
}

func (l *Location) addOccupant(agentID string)    { l.Occupants[agentID] = true }
func (l *Location) removeOccupant(agentID string) { delete(l.Occupants, agentID) }

func (l *Location) String() string {
	return fmt.Sprintf("%s (%d/%d)", l.Name, len(l.Occupants), l.Capacity)
}

// shortestPath runs a breadth-first search from src to dst over the
// connectivity graph and returns the hop sequence excluding src. Neighbors
// are explored in edge insertion order, so equal-length paths resolve
// deterministically. Returns nil if dst is not reachable.
func (w *World) shortestPath(src, dst string) []string {
	if src == dst {
		return []string{}
	}
	prev := map[string]string{src: ""}
	frontier := []string{src}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, next := range w.locations[cur].ConnectedTo {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == dst {
				// walk back to src
				path := []string{dst}
				for at := cur; at != src; at = prev[at] {
					path = append([]string{at}, path...)
				}
				return path
			}
			frontier = append(frontier, next)
		}
	}
	return nil
}

// neighborNames renders the directly reachable neighbors of a location,
// used in Unreachable error messages.
func (w *World) neighborNames(locID string) string {
	loc := w.locations[locID]
	names := make([]string, 0, len(loc.ConnectedTo))
	for _, id := range loc.ConnectedTo {
		names = append(names, w.locations[id].Name)
	}
	return strings.Join(names, ", ")
}
