package sim

import "errors"

// Error kinds returned by engine operations. All of them are recoverable by
// the caller (retry, re-route, escalate); none are fatal to the engine.
// Internal invariant violations (e.g. equipment occupied with no holder) are
// programming errors and panic instead of returning an error.
var (
	// ErrNotFound reports an unknown agent, location, equipment id, or
	// agent kind.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyInState reports a redundant transition, e.g. moving to the
	// current location or enqueueing an agent that is already queued.
	ErrAlreadyInState = errors.New("already in requested state")

	// ErrUnreachable reports that no path exists between two locations.
	ErrUnreachable = errors.New("unreachable")

	// ErrCapacityExceeded reports a full location or an exhausted daily
	// usage cap.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrUnavailable reports equipment that is offline or under
	// maintenance, or a location closed outside working hours.
	ErrUnavailable = errors.New("unavailable")

	// ErrAssignmentTimeout reports that no doctor became available within
	// the caller's patience. Returned by the coord polling helper.
	ErrAssignmentTimeout = errors.New("assignment timed out")
)
