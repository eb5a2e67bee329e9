package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository reads the catalog (persons, courses, venues, schedule entries)
// from Postgres. The catalog is owned by the admin tooling; this repository
// only references it.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a catalog repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const personColumns = `id, matric_number, full_name, email, role, department_id, level, created_at`

func scanPerson(row *sql.Row) (Person, error) {
	var p Person
	err := row.Scan(&p.ID, &p.MatricNumber, &p.FullName, &p.Email, &p.Role, &p.DepartmentID, &p.Level, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Person{}, ErrNotFound
	}
	return p, err
}

// GetPerson returns a person by id.
func (r *Repository) GetPerson(ctx context.Context, id string) (Person, error) {
	return scanPerson(r.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM persons WHERE id = $1
	`, id))
}

// GetPersonByMatric returns a person by matric number (the login handle for
// attendees).
func (r *Repository) GetPersonByMatric(ctx context.Context, matric string) (Person, error) {
	return scanPerson(r.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM persons WHERE matric_number = $1
	`, matric))
}

// GetPersonByEmail returns a person by email (the login handle for
// presenters).
func (r *Repository) GetPersonByEmail(ctx context.Context, email string) (Person, error) {
	return scanPerson(r.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM persons WHERE email = $1
	`, email))
}

// UpdateLastLoginLocation stores the coordinates a person last logged in
// from. Best effort; records are never derived from it.
func (r *Repository) UpdateLastLoginLocation(ctx context.Context, personID string, lat, lon float64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE persons SET last_login_lat = $2, last_login_lon = $3, last_login_at = $4
		WHERE id = $1
	`, personID, lat, lon, at)
	return err
}

// Attendees lists attendee-role persons in a department at a level. This is
// the expected cohort for a course with the same department and level.
func (r *Repository) Attendees(ctx context.Context, departmentID string, level int) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+personColumns+` FROM persons
		WHERE role = $1 AND department_id = $2 AND level = $3
		ORDER BY matric_number
	`, RoleAttendee, departmentID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.MatricNumber, &p.FullName, &p.Email, &p.Role, &p.DepartmentID, &p.Level, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountAttendees returns the cohort size for a department and level.
func (r *Repository) CountAttendees(ctx context.Context, departmentID string, level int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM persons WHERE role = $1 AND department_id = $2 AND level = $3
	`, RoleAttendee, departmentID, level).Scan(&n)
	return n, err
}

// GetCourse returns a course by id.
func (r *Repository) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, title, department_id, level FROM courses WHERE id = $1
	`, id).Scan(&c.ID, &c.Code, &c.Title, &c.DepartmentID, &c.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	return c, err
}

// Teaches reports whether a presenter is assigned to a course.
func (r *Repository) Teaches(ctx context.Context, presenterID, courseID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM course_presenters WHERE presenter_id = $1 AND course_id = $2
	`, presenterID, courseID).Scan(&n)
	return n > 0, err
}

// GetVenue returns a venue by id.
func (r *Repository) GetVenue(ctx context.Context, id string) (Venue, error) {
	var v Venue
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, building, latitude, longitude, radius_meters FROM venues WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.Building, &v.Latitude, &v.Longitude, &v.RadiusMeters)
	if errors.Is(err, sql.ErrNoRows) {
		return Venue{}, ErrNotFound
	}
	return v, err
}

const entryColumns = `id, course_id, presenter_id, day_of_week, start_time::text, end_time::text, venue_id, enabled, term`

func scanEntries(rows *sql.Rows) ([]ScheduleEntry, error) {
	defer rows.Close()
	var out []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.ID, &e.CourseID, &e.PresenterID, &e.DayOfWeek, &e.StartTime, &e.EndTime, &e.VenueID, &e.Enabled, &e.Term); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEntry returns a schedule entry by id.
func (r *Repository) GetEntry(ctx context.Context, id string) (ScheduleEntry, error) {
	var e ScheduleEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM schedule_entries WHERE id = $1
	`, id).Scan(&e.ID, &e.CourseID, &e.PresenterID, &e.DayOfWeek, &e.StartTime, &e.EndTime, &e.VenueID, &e.Enabled, &e.Term)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduleEntry{}, ErrNotFound
	}
	return e, err
}

// EnabledEntriesFor lists enabled entries for a department on a weekday,
// ordered by (day_of_week, start_time, id) so resolution is stable when
// windows overlap.
func (r *Repository) EnabledEntriesFor(ctx context.Context, departmentID string, dayOfWeek int) ([]ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.course_id, e.presenter_id, e.day_of_week, e.start_time::text, e.end_time::text, e.venue_id, e.enabled, e.term
		FROM schedule_entries e
		JOIN courses c ON c.id = e.course_id
		WHERE e.enabled AND e.day_of_week = $1 AND c.department_id = $2
		ORDER BY e.day_of_week, e.start_time, e.id
	`, dayOfWeek, departmentID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// EntriesEndingBetween lists enabled entries on a weekday whose end time
// falls inside [from, to] (both "15:04:05" clock strings). Used by the
// session auditor's lookback.
func (r *Repository) EntriesEndingBetween(ctx context.Context, dayOfWeek int, from, to string) ([]ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM schedule_entries
		WHERE enabled AND day_of_week = $1 AND end_time >= $2::time AND end_time <= $3::time
		ORDER BY end_time, id
	`, dayOfWeek, from, to)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// CountEntriesForCourse returns how many schedule entries a course has; the
// denominator of attendance percentages.
func (r *Repository) CountEntriesForCourse(ctx context.Context, courseID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM schedule_entries WHERE course_id = $1 AND enabled
	`, courseID).Scan(&n)
	return n, err
}
