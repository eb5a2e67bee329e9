package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE Postgres reports when an insert breaks a
// unique index.
const pgUniqueViolation = "23505"

// Repository persists attendance records in Postgres. Records are inserted
// once, transitioned to voided by the auditor, and never deleted.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, person_id, course_id, schedule_entry_id, marked_at, latitude, longitude, status`

// Insert writes a new record. marked_at is assigned by the database. A
// unique index on (person_id, schedule_entry_id) makes the duplicate check
// atomic; violations come back as ErrAlreadyMarked.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, person_id, course_id, schedule_entry_id, latitude, longitude, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING marked_at
	`, rec.ID, rec.PersonID, rec.CourseID, rec.ScheduleEntryID, rec.Latitude, rec.Longitude, rec.Status)
	if err := row.Scan(&rec.MarkedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Record{}, ErrAlreadyMarked
		}
		return Record{}, err
	}
	return rec, nil
}

// VoidByEntry transitions every present/absent record of a schedule entry to
// voided and reports how many rows changed. Already-voided rows are left
// untouched, so re-running is a no-op.
func (r *Repository) VoidByEntry(ctx context.Context, entryID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records SET status = $2
		WHERE schedule_entry_id = $1 AND status <> $2
	`, entryID, StatusVoided)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByEntry counts records for a schedule entry regardless of status.
func (r *Repository) CountByEntry(ctx context.Context, entryID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records WHERE schedule_entry_id = $1
	`, entryID).Scan(&n)
	return n, err
}

// CountPresent counts present records for a person in a course.
func (r *Repository) CountPresent(ctx context.Context, personID, courseID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE person_id = $1 AND course_id = $2 AND status = $3
	`, personID, courseID, StatusPresent).Scan(&n)
	return n, err
}

// PresentCountsByCourse returns present-record counts per person for a
// course, for cohort reports.
func (r *Repository) PresentCountsByCourse(ctx context.Context, courseID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT person_id, COUNT(*) FROM attendance_records
		WHERE course_id = $1 AND status = $2
		GROUP BY person_id
	`, courseID, StatusPresent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var personID string
		var n int
		if err := rows.Scan(&personID, &n); err != nil {
			return nil, err
		}
		counts[personID] = n
	}
	return counts, rows.Err()
}

// ListByPerson returns a person's records, newest first, optionally filtered
// to one course.
func (r *Repository) ListByPerson(ctx context.Context, personID, courseID string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE person_id = $1`
	args := []any{personID}
	if courseID != "" {
		query += ` AND course_id = $2`
		args = append(args, courseID)
	}
	query += ` ORDER BY marked_at DESC`
	return r.list(ctx, query, args...)
}

// ListByCourse returns all records for a course, newest first.
func (r *Repository) ListByCourse(ctx context.Context, courseID string) ([]Record, error) {
	return r.list(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE course_id = $1 ORDER BY marked_at DESC
	`, courseID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rec.CourseID, &rec.ScheduleEntryID, &rec.MarkedAt, &rec.Latitude, &rec.Longitude, &rec.Status); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
