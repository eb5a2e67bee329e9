// Package audit implements the post-session integrity check: sessions where
// almost nobody marked attendance are assumed spoofed and voided wholesale.
package audit

import (
	"context"
	"log"
	"time"

	"geoattend/internal/roster"
)

// EntrySource yields recently ended schedule entries and cohort sizes from
// the catalog.
type EntrySource interface {
	EntriesEndingBetween(ctx context.Context, dayOfWeek int, from, to string) ([]roster.ScheduleEntry, error)
	GetCourse(ctx context.Context, id string) (roster.Course, error)
	CountAttendees(ctx context.Context, departmentID string, level int) (int, error)
}

// Ledger is the slice of the attendance ledger the auditor needs.
type Ledger interface {
	CountByEntry(ctx context.Context, entryID string) (int, error)
	VoidByEntry(ctx context.Context, entryID string) (int64, error)
}

// Summary reports one audit run.
type Summary struct {
	SessionsExamined int   `json:"sessions_examined"`
	SessionsVoided   int   `json:"sessions_voided"`
	RecordsVoided    int64 `json:"records_voided"`
}

// Auditor voids the records of sessions whose turnout fell below the
// configured share of the expected cohort. Voiding is all or nothing per
// session.
type Auditor struct {
	catalog    EntrySource
	ledger     Ledger
	minTurnout float64       // e.g. 0.10
	lookback   time.Duration // e.g. 1h
	now        func() time.Time
}

// New creates an auditor. now may be nil, in which case time.Now is used.
func New(catalog EntrySource, ledger Ledger, minTurnout float64, lookback time.Duration, now func() time.Time) *Auditor {
	if now == nil {
		now = time.Now
	}
	return &Auditor{catalog: catalog, ledger: ledger, minTurnout: minTurnout, lookback: lookback, now: now}
}

// Run examines every enabled entry that ended within the lookback window on
// the current weekday. A malformed entry is logged and skipped rather than
// aborting the batch; re-running is safe because voiding is idempotent.
func (a *Auditor) Run(ctx context.Context) (Summary, error) {
	now := a.now()
	from := roster.ClockString(now.Add(-a.lookback))
	to := roster.ClockString(now)

	entries, err := a.catalog.EntriesEndingBetween(ctx, roster.Weekday(now), from, to)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, entry := range entries {
		sum.SessionsExamined++

		course, err := a.catalog.GetCourse(ctx, entry.CourseID)
		if err != nil {
			log.Printf("audit: entry %s references unknown course %s: %v", entry.ID, entry.CourseID, err)
			continue
		}
		cohort, err := a.catalog.CountAttendees(ctx, course.DepartmentID, course.Level)
		if err != nil {
			log.Printf("audit: cohort count for entry %s failed: %v", entry.ID, err)
			continue
		}
		if cohort == 0 {
			// Nobody was expected; nothing to judge.
			continue
		}
		marked, err := a.ledger.CountByEntry(ctx, entry.ID)
		if err != nil {
			log.Printf("audit: record count for entry %s failed: %v", entry.ID, err)
			continue
		}
		if float64(marked)/float64(cohort) >= a.minTurnout {
			continue
		}

		voided, err := a.ledger.VoidByEntry(ctx, entry.ID)
		if err != nil {
			log.Printf("audit: voiding entry %s failed: %v", entry.ID, err)
			continue
		}
		sum.SessionsVoided++
		sum.RecordsVoided += voided
		log.Printf("audit: voided %d record(s) for entry %s (%d/%d marked)", voided, entry.ID, marked, cohort)
	}
	return sum, nil
}
