package attendance

import (
	"context"
	"time"

	"geoattend/internal/geo"
	"geoattend/internal/roster"
)

// Status is the lifecycle state of an attendance record.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusVoided  Status = "voided"
)

// Record is one person's attendance at one weekly class slot. MarkedAt is
// assigned by the database and never changes; only the session auditor may
// change Status afterwards.
type Record struct {
	ID              string    `json:"id"`
	PersonID        string    `json:"person_id"`
	CourseID        string    `json:"course_id"`
	ScheduleEntryID string    `json:"schedule_entry_id"`
	MarkedAt        time.Time `json:"marked_at"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	Status          Status    `json:"status"`
}

// RecordStore is the persistence the ledger needs.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	VoidByEntry(ctx context.Context, entryID string) (int64, error)
	ListByPerson(ctx context.Context, personID, courseID string) ([]Record, error)
	ListByCourse(ctx context.Context, courseID string) ([]Record, error)
}

// VenueSource looks venues up in the catalog.
type VenueSource interface {
	GetVenue(ctx context.Context, id string) (roster.Venue, error)
}

// Service is the attendance ledger: it guards the mark-attendance write path
// and owns record transitions.
type Service struct {
	records RecordStore
	venues  VenueSource
}

// NewService creates a ledger over a record store and the venue catalog.
func NewService(records RecordStore, venues VenueSource) *Service {
	return &Service{records: records, venues: venues}
}

// MarkPresent records that person attended the given schedule entry from the
// observed coordinate. The entry must be the one currently active for the
// person's department; the caller resolves it and passes nil when nothing is
// active. All validation happens before any write.
func (s *Service) MarkPresent(ctx context.Context, person roster.Person, entry *roster.ScheduleEntry, observed geo.Coordinate) (Record, error) {
	if person.Role != roster.RoleAttendee {
		return Record{}, ErrForbidden
	}
	if entry == nil {
		return Record{}, ErrNoActiveSession
	}

	venue, err := s.venues.GetVenue(ctx, entry.VenueID)
	if err != nil {
		return Record{}, err
	}
	res, err := geo.Evaluate(geo.Coordinate{Lat: venue.Latitude, Lon: venue.Longitude}, observed, venue.RadiusMeters)
	if err != nil {
		return Record{}, err
	}
	if !res.Inside {
		return Record{}, &OutOfRangeError{DistanceMeters: res.DistanceMeters, RadiusMeters: venue.RadiusMeters}
	}

	lat, lon := observed.Lat, observed.Lon
	return s.records.Insert(ctx, Record{
		PersonID:        person.ID,
		CourseID:        entry.CourseID,
		ScheduleEntryID: entry.ID,
		Latitude:        &lat,
		Longitude:       &lon,
		Status:          StatusPresent,
	})
}

// VoidRecordsFor invalidates every record of a schedule entry. Idempotent:
// re-voiding returns 0. Only the session auditor calls this.
func (s *Service) VoidRecordsFor(ctx context.Context, entryID string) (int64, error) {
	return s.records.VoidByEntry(ctx, entryID)
}

// RecordsForPerson returns a person's records, optionally limited to a
// course.
func (s *Service) RecordsForPerson(ctx context.Context, personID, courseID string) ([]Record, error) {
	return s.records.ListByPerson(ctx, personID, courseID)
}

// RecordsForCourse returns every record for a course.
func (s *Service) RecordsForCourse(ctx context.Context, courseID string) ([]Record, error) {
	return s.records.ListByCourse(ctx, courseID)
}
