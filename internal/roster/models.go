package roster

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced person, course, venue or schedule
// entry does not exist.
var ErrNotFound = errors.New("not found")

// Role classifies a person within the institution.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RolePresenter Role = "presenter"
	RoleAdmin     Role = "admin"
)

// Person is a member of the institution. Only attendees may appear as the
// attending party on an attendance record.
type Person struct {
	ID           string    `json:"id"`
	MatricNumber string    `json:"matric_number"`
	FullName     string    `json:"full_name"`
	Email        *string   `json:"email,omitempty"`
	Role         Role      `json:"role"`
	DepartmentID string    `json:"department_id"`
	Level        int       `json:"level"`
	CreatedAt    time.Time `json:"created_at"`
}

// Department groups persons and courses.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Course is a taught unit owned by a department at a given level.
type Course struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Title        string `json:"title"`
	DepartmentID string `json:"department_id"`
	Level        int    `json:"level"`
}

// Venue is a physical location with a circular geofence around it.
// Mutating a venue never rewrites past attendance records.
type Venue struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Building     string  `json:"building"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// ScheduleEntry is a recurring weekly class slot, not a dated occurrence.
// (course, day_of_week, start_time, term) is unique within the catalog.
type ScheduleEntry struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	PresenterID string `json:"presenter_id"`
	DayOfWeek   int    `json:"day_of_week"` // 0 = Monday .. 6 = Sunday
	StartTime   string `json:"start_time"`  // "08:00:00"
	EndTime     string `json:"end_time"`
	VenueID     string `json:"venue_id"`
	Enabled     bool   `json:"enabled"`
	Term        string `json:"term"`
}

// ActiveAt reports whether the entry's weekly window contains the given
// wall-clock instant.
func (e ScheduleEntry) ActiveAt(at time.Time) bool {
	if !e.Enabled || e.DayOfWeek != Weekday(at) {
		return false
	}
	sec := at.Hour()*3600 + at.Minute()*60 + at.Second()
	start, err := parseClock(e.StartTime)
	if err != nil {
		return false
	}
	end, err := parseClock(e.EndTime)
	if err != nil {
		return false
	}
	return start <= sec && sec <= end
}

// Window renders the entry's time range, e.g. "08:00-10:00".
func (e ScheduleEntry) Window() string {
	if len(e.StartTime) >= 5 && len(e.EndTime) >= 5 {
		return e.StartTime[:5] + "-" + e.EndTime[:5]
	}
	return e.StartTime + "-" + e.EndTime
}

// Weekday maps Go's Sunday-first weekday onto the catalog's Monday-first
// numbering.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ClockString formats the time-of-day of t as "15:04:05" for comparison
// against catalog TIME columns.
func ClockString(t time.Time) string {
	return t.Format("15:04:05")
}

// parseClock converts "HH:MM:SS" (or "HH:MM") to seconds since midnight.
func parseClock(s string) (int, error) {
	layout := "15:04:05"
	if len(s) == 5 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
