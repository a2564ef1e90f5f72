// Package sim provides the core discrete-event simulation engine for the
// hospital world.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - location.go: the static spatial graph (capacity, connectivity, BFS paths)
//   - equipment.go: the per-equipment scheduler (priority queue, usage cycle, caps)
//   - world.go: the World facade that owns all mutable state behind one lock
//     and advances the single authoritative clock
//
// # Architecture
//
// The sim package owns the physical world: locations, agents, equipment, and
// per-patient physiology. Higher-level concerns live in sub-packages:
//   - sim/coord/: doctor/patient pool coordination (assignment, consultations)
//   - sim/trace/: event log, movement history, resource time-slot auditing
//   - sim/journal/: SQLite persistence of events and snapshots
//
// Every mutation that consumes time flows through World.Advance, which is the
// single point where finished equipment usage is resolved, waiters are
// re-queued, and physiology ticks forward. Callers never block inside the
// engine: operations that would wait (equipment busy, no doctor free) return
// immediately with a queue position or estimated wait, and the caller polls.
package sim
