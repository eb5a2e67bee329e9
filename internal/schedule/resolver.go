// Package schedule resolves which class slot is active for a department at a
// given wall-clock instant.
package schedule

import (
	"context"
	"time"

	"geoattend/internal/roster"
)

// EntrySource yields enabled schedule entries for a department on a weekday,
// ordered by (day_of_week, start_time, id).
type EntrySource interface {
	EnabledEntriesFor(ctx context.Context, departmentID string, dayOfWeek int) ([]roster.ScheduleEntry, error)
}

// Resolver finds the active schedule entry for a department.
type Resolver struct {
	entries EntrySource
}

// NewResolver creates a resolver over a catalog source.
func NewResolver(entries EntrySource) *Resolver {
	return &Resolver{entries: entries}
}

// ResolveActive returns the schedule entry whose weekly window contains `at`
// for the given department, or nil when no class is active. When windows
// overlap the first entry in (day_of_week, start_time, id) order wins; the
// catalog owner is expected to keep windows disjoint.
func (r *Resolver) ResolveActive(ctx context.Context, departmentID string, at time.Time) (*roster.ScheduleEntry, error) {
	entries, err := r.entries.EnabledEntriesFor(ctx, departmentID, roster.Weekday(at))
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ActiveAt(at) {
			return &entries[i], nil
		}
	}
	return nil, nil
}
