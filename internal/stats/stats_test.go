package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/roster"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0), "zero denominator yields 0, not NaN")
	assert.Equal(t, 0.0, Percentage(3, 0))
	assert.Equal(t, 75.0, Percentage(3, 4))
	assert.Equal(t, 100.0, Percentage(4, 4))
	assert.InDelta(t, 33.333, Percentage(1, 3), 0.001)
}

func TestQuartileBoundaries(t *testing.T) {
	tests := []struct {
		pct  float64
		want int
	}{
		{0, 0},
		{0.01, 1},
		{25, 1},
		{25.01, 2},
		{50, 2},
		{50.01, 3},
		{75, 3},
		{75.01, 4},
		{99.99, 4},
		{100, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quartile(tt.pct), "quartile(%v)", tt.pct)
	}
}

func TestFeedbackArity(t *testing.T) {
	seen := map[string]bool{}
	for q := 0; q <= 5; q++ {
		msg := Feedback(q)
		assert.NotEmpty(t, msg, "quartile %d must have a message", q)
		seen[msg] = true
	}
	assert.Len(t, seen, 6, "each bucket has its own message")
	assert.Empty(t, Feedback(-1))
	assert.Empty(t, Feedback(6))
}

type fakeCounts struct {
	present map[string]map[string]int // personID -> courseID -> n
}

func (f *fakeCounts) CountPresent(_ context.Context, personID, courseID string) (int, error) {
	return f.present[personID][courseID], nil
}

func (f *fakeCounts) PresentCountsByCourse(_ context.Context, courseID string) (map[string]int, error) {
	out := map[string]int{}
	for personID, byCourse := range f.present {
		if n := byCourse[courseID]; n > 0 {
			out[personID] = n
		}
	}
	return out, nil
}

type fakeCatalog struct {
	course  roster.Course
	entries int
	cohort  []roster.Person
}

func (f *fakeCatalog) GetCourse(_ context.Context, id string) (roster.Course, error) {
	if id != f.course.ID {
		return roster.Course{}, roster.ErrNotFound
	}
	return f.course, nil
}

func (f *fakeCatalog) CountEntriesForCourse(_ context.Context, _ string) (int, error) {
	return f.entries, nil
}

func (f *fakeCatalog) Attendees(_ context.Context, _ string, _ int) ([]roster.Person, error) {
	return f.cohort, nil
}

func TestPersonReport(t *testing.T) {
	engine := NewEngine(
		&fakeCounts{present: map[string]map[string]int{"p1": {"c1": 3}}},
		&fakeCatalog{course: roster.Course{ID: "c1"}, entries: 4},
	)

	rep, err := engine.PersonReport(context.Background(), "p1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Attended)
	assert.Equal(t, 4, rep.TotalClasses)
	assert.Equal(t, 75.0, rep.Percentage)
	assert.Equal(t, 3, rep.Quartile)
	assert.Equal(t, Feedback(3), rep.Feedback)
}

func TestCohortReport(t *testing.T) {
	engine := NewEngine(
		&fakeCounts{present: map[string]map[string]int{
			"p1": {"c1": 4},
			"p2": {"c1": 1},
		}},
		&fakeCatalog{
			course:  roster.Course{ID: "c1", DepartmentID: "d1", Level: 200},
			entries: 4,
			cohort: []roster.Person{
				{ID: "p1", MatricNumber: "20/0001", FullName: "Ada"},
				{ID: "p2", MatricNumber: "20/0002", FullName: "Bola"},
				{ID: "p3", MatricNumber: "20/0003", FullName: "Chidi"},
			},
		},
	)

	reports, err := engine.CohortReport(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, reports, 3, "cohort members with no records still appear")

	assert.Equal(t, 5, reports[0].Quartile)
	assert.Equal(t, 100.0, reports[0].Percentage)
	assert.Equal(t, 1, reports[1].Quartile)
	assert.Equal(t, 0, reports[2].Quartile)
	assert.Equal(t, "20/0003", reports[2].MatricNumber)
}

func TestCohortReportUnknownCourse(t *testing.T) {
	engine := NewEngine(&fakeCounts{}, &fakeCatalog{course: roster.Course{ID: "c1"}})
	_, err := engine.CohortReport(context.Background(), "missing")
	assert.ErrorIs(t, err, roster.ErrNotFound)
}
