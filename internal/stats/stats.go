// Package stats derives attendance statistics from the ledger. Nothing here
// is persisted; every figure is recomputed on read.
package stats

import (
	"context"

	"geoattend/internal/roster"
)

// Percentage is the share of a course's schedule entries a person was marked
// present for, 0 when the course has no entries.
func Percentage(present, totalEntries int) float64 {
	if totalEntries <= 0 {
		return 0
	}
	return float64(present) / float64(totalEntries) * 100
}

// Quartile buckets a percentage into one of six ordinal bands. 0% and 100%
// are singleton buckets; the middle bands are quarters with an upper-bound
// rule, so 25.01 already lands in band 2.
func Quartile(pct float64) int {
	switch {
	case pct == 0:
		return 0
	case pct <= 25:
		return 1
	case pct <= 50:
		return 2
	case pct <= 75:
		return 3
	case pct < 100:
		return 4
	default:
		return 5
	}
}

// feedbackMessages maps each quartile to its fixed feedback line.
var feedbackMessages = [6]string{
	"You have not attended a single class. Show up!",
	"Attendance is critically low. Start coming to class.",
	"You are missing too many classes.",
	"Decent, but do not slip below this.",
	"Solid attendance. Keep it up!",
	"Perfect attendance. Well done!",
}

// Feedback returns the message for a quartile; empty for anything outside
// the six known buckets.
func Feedback(quartile int) string {
	if quartile < 0 || quartile >= len(feedbackMessages) {
		return ""
	}
	return feedbackMessages[quartile]
}

// RecordCounts is the slice of the ledger the engine reads.
type RecordCounts interface {
	CountPresent(ctx context.Context, personID, courseID string) (int, error)
	PresentCountsByCourse(ctx context.Context, courseID string) (map[string]int, error)
}

// Catalog is the slice of the course catalog the engine reads.
type Catalog interface {
	GetCourse(ctx context.Context, id string) (roster.Course, error)
	CountEntriesForCourse(ctx context.Context, courseID string) (int, error)
	Attendees(ctx context.Context, departmentID string, level int) ([]roster.Person, error)
}

// Engine assembles attendance reports.
type Engine struct {
	records RecordCounts
	catalog Catalog
}

// NewEngine creates a statistics engine.
func NewEngine(records RecordCounts, catalog Catalog) *Engine {
	return &Engine{records: records, catalog: catalog}
}

// Report is the (percentage, quartile, feedback) triple for one person in
// one course.
type Report struct {
	PersonID     string  `json:"person_id"`
	MatricNumber string  `json:"matric_number,omitempty"`
	FullName     string  `json:"full_name,omitempty"`
	Attended     int     `json:"attended_classes"`
	TotalClasses int     `json:"total_classes"`
	Percentage   float64 `json:"percentage"`
	Quartile     int     `json:"quartile"`
	Feedback     string  `json:"feedback"`
}

func buildReport(personID string, attended, total int) Report {
	pct := Percentage(attended, total)
	q := Quartile(pct)
	return Report{
		PersonID:     personID,
		Attended:     attended,
		TotalClasses: total,
		Percentage:   pct,
		Quartile:     q,
		Feedback:     Feedback(q),
	}
}

// PersonReport computes the triple for a single person and course.
func (e *Engine) PersonReport(ctx context.Context, personID, courseID string) (Report, error) {
	total, err := e.catalog.CountEntriesForCourse(ctx, courseID)
	if err != nil {
		return Report{}, err
	}
	attended, err := e.records.CountPresent(ctx, personID, courseID)
	if err != nil {
		return Report{}, err
	}
	return buildReport(personID, attended, total), nil
}

// CohortReport computes the triple for every attendee in the course's cohort
// (same department and level), including those with no records at all.
func (e *Engine) CohortReport(ctx context.Context, courseID string) ([]Report, error) {
	course, err := e.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	cohort, err := e.catalog.Attendees(ctx, course.DepartmentID, course.Level)
	if err != nil {
		return nil, err
	}
	total, err := e.catalog.CountEntriesForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	counts, err := e.records.PresentCountsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(cohort))
	for _, p := range cohort {
		rep := buildReport(p.ID, counts[p.ID], total)
		rep.MatricNumber = p.MatricNumber
		rep.FullName = p.FullName
		reports = append(reports, rep)
	}
	return reports, nil
}
