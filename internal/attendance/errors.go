package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyMarked means a record already exists for this person and
	// schedule entry. Raised by the storage layer's unique constraint, so
	// concurrent retries can never double-mark.
	ErrAlreadyMarked = errors.New("attendance already marked for this class")

	// ErrNoActiveSession means no schedule entry is active for the caller's
	// department right now.
	ErrNoActiveSession = errors.New("no active class at this time")

	// ErrForbidden means the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")
)

// OutOfRangeError is returned when the observed coordinate falls outside the
// venue's geofence. It carries the computed distance and the allowed radius
// so callers can surface both.
type OutOfRangeError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("outside venue geofence: %.1fm away, %.0fm allowed", e.DistanceMeters, e.RadiusMeters)
}
