package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/geo"
	"geoattend/internal/roster"
)

// memStore mimics the Postgres repo: unique (person, entry), voiding skips
// already-voided rows.
type memStore struct {
	mu      sync.Mutex
	records []Record
}

func (m *memStore) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.PersonID == rec.PersonID && r.ScheduleEntryID == rec.ScheduleEntryID {
			return Record{}, ErrAlreadyMarked
		}
	}
	rec.ID = "rec-" + rec.PersonID + "-" + rec.ScheduleEntryID
	rec.MarkedAt = time.Now().UTC()
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memStore) VoidByEntry(_ context.Context, entryID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.records {
		if m.records[i].ScheduleEntryID == entryID && m.records[i].Status != StatusVoided {
			m.records[i].Status = StatusVoided
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListByPerson(_ context.Context, personID, courseID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if r.PersonID == personID && (courseID == "" || r.CourseID == courseID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListByCourse(_ context.Context, courseID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if r.CourseID == courseID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memVenues map[string]roster.Venue

func (m memVenues) GetVenue(_ context.Context, id string) (roster.Venue, error) {
	v, ok := m[id]
	if !ok {
		return roster.Venue{}, roster.ErrNotFound
	}
	return v, nil
}

var (
	hall = roster.Venue{ID: "v1", Name: "LT1", Building: "Science Block", Latitude: 6.5244, Longitude: 3.3792, RadiusMeters: 100}

	student = roster.Person{ID: "p1", MatricNumber: "20/1234", Role: roster.RoleAttendee, DepartmentID: "d1", Level: 200}

	mondayEntry = roster.ScheduleEntry{
		ID: "e1", CourseID: "c1", PresenterID: "lec1", DayOfWeek: 0,
		StartTime: "08:00:00", EndTime: "10:00:00", VenueID: "v1", Enabled: true, Term: "2026/1",
	}
)

func newTestService() (*Service, *memStore) {
	store := &memStore{}
	return NewService(store, memVenues{"v1": hall}), store
}

func TestMarkPresentInsideFence(t *testing.T) {
	svc, _ := newTestService()

	// ~50m north of the hall.
	inside := geo.Coordinate{Lat: hall.Latitude + 0.00044966, Lon: hall.Longitude}
	rec, err := svc.MarkPresent(context.Background(), student, &mondayEntry, inside)
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.Equal(t, student.ID, rec.PersonID)
	assert.Equal(t, mondayEntry.ID, rec.ScheduleEntryID)
	assert.Equal(t, mondayEntry.CourseID, rec.CourseID)
	require.NotNil(t, rec.Latitude)
	assert.Equal(t, inside.Lat, *rec.Latitude)

	// Retry for the same class is rejected.
	_, err = svc.MarkPresent(context.Background(), student, &mondayEntry, inside)
	assert.ErrorIs(t, err, ErrAlreadyMarked)
}

func TestMarkPresentOutsideFence(t *testing.T) {
	svc, store := newTestService()

	// ~250m north of the hall.
	outside := geo.Coordinate{Lat: hall.Latitude + 0.00224830, Lon: hall.Longitude}
	_, err := svc.MarkPresent(context.Background(), student, &mondayEntry, outside)

	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.InDelta(t, 250, oor.DistanceMeters, 1)
	assert.Equal(t, float64(100), oor.RadiusMeters)
	assert.Empty(t, store.records, "rejection must not write anything")
}

func TestMarkPresentPreconditions(t *testing.T) {
	svc, _ := newTestService()
	at := geo.Coordinate{Lat: hall.Latitude, Lon: hall.Longitude}

	t.Run("no active session", func(t *testing.T) {
		_, err := svc.MarkPresent(context.Background(), student, nil, at)
		assert.ErrorIs(t, err, ErrNoActiveSession)
	})

	t.Run("presenter cannot mark", func(t *testing.T) {
		lecturer := student
		lecturer.Role = roster.RolePresenter
		_, err := svc.MarkPresent(context.Background(), lecturer, &mondayEntry, at)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		_, err := svc.MarkPresent(context.Background(), student, &mondayEntry, geo.Coordinate{Lat: 123, Lon: 3})
		assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	})

	t.Run("unknown venue", func(t *testing.T) {
		entry := mondayEntry
		entry.VenueID = "nope"
		_, err := svc.MarkPresent(context.Background(), student, &entry, at)
		assert.ErrorIs(t, err, roster.ErrNotFound)
	})
}

func TestMarkPresentConcurrentDuplicates(t *testing.T) {
	svc, store := newTestService()
	at := geo.Coordinate{Lat: hall.Latitude, Lon: hall.Longitude}

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MarkPresent(context.Background(), student, &mondayEntry, at)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrAlreadyMarked):
			dup++
		}
	}
	assert.Equal(t, 1, ok, "exactly one mark must win")
	assert.Equal(t, callers-1, dup)
	assert.Len(t, store.records, 1)
}

func TestVoidRecordsForIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	at := geo.Coordinate{Lat: hall.Latitude, Lon: hall.Longitude}

	other := student
	other.ID = "p2"
	_, err := svc.MarkPresent(context.Background(), student, &mondayEntry, at)
	require.NoError(t, err)
	_, err = svc.MarkPresent(context.Background(), other, &mondayEntry, at)
	require.NoError(t, err)

	n, err := svc.VoidRecordsFor(context.Background(), mondayEntry.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = svc.VoidRecordsFor(context.Background(), mondayEntry.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	recs, err := svc.RecordsForPerson(context.Background(), student.ID, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusVoided, recs[0].Status)
}
