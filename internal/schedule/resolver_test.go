package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/roster"
)

type fakeEntrySource struct {
	entries []roster.ScheduleEntry
}

func (f *fakeEntrySource) EnabledEntriesFor(_ context.Context, departmentID string, dayOfWeek int) ([]roster.ScheduleEntry, error) {
	var out []roster.ScheduleEntry
	for _, e := range f.entries {
		if e.Enabled && e.DayOfWeek == dayOfWeek {
			out = append(out, e)
		}
	}
	return out, nil
}

// 2026-08-17 is a Monday.
func monday(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-08-17 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolveActive(t *testing.T) {
	src := &fakeEntrySource{entries: []roster.ScheduleEntry{
		{ID: "e1", CourseID: "c1", DayOfWeek: 0, StartTime: "08:00:00", EndTime: "10:00:00", Enabled: true},
		{ID: "e2", CourseID: "c2", DayOfWeek: 0, StartTime: "10:00:00", EndTime: "12:00:00", Enabled: true},
		{ID: "e3", CourseID: "c3", DayOfWeek: 0, StartTime: "13:00:00", EndTime: "15:00:00", Enabled: false},
		{ID: "e4", CourseID: "c4", DayOfWeek: 2, StartTime: "08:00:00", EndTime: "10:00:00", Enabled: true},
	}}
	r := NewResolver(src)

	tests := []struct {
		name   string
		at     time.Time
		wantID string
	}{
		{name: "mid window", at: monday("09:00"), wantID: "e1"},
		{name: "window start is inclusive", at: monday("08:00"), wantID: "e1"},
		{name: "window end is inclusive", at: monday("10:00"), wantID: "e1"},
		{name: "just past first window", at: monday("10:01"), wantID: "e2"},
		{name: "no class before first window", at: monday("07:59")},
		{name: "no class in the evening", at: monday("18:00")},
		{name: "disabled entry never matches", at: monday("14:00")},
		{name: "other weekday", at: monday("09:00").AddDate(0, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveActive(context.Background(), "dep-1", tt.at)
			require.NoError(t, err)
			if tt.wantID == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolveActiveOverlapIsStable(t *testing.T) {
	// Two overlapping windows: first by (start_time, id) order wins.
	src := &fakeEntrySource{entries: []roster.ScheduleEntry{
		{ID: "a", DayOfWeek: 0, StartTime: "08:00:00", EndTime: "11:00:00", Enabled: true},
		{ID: "b", DayOfWeek: 0, StartTime: "09:00:00", EndTime: "12:00:00", Enabled: true},
	}}
	r := NewResolver(src)

	got, err := r.ResolveActive(context.Background(), "dep-1", monday("09:30"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)
}

func TestWeekdayMapping(t *testing.T) {
	assert.Equal(t, 0, roster.Weekday(monday("09:00")))
	assert.Equal(t, 6, roster.Weekday(monday("09:00").AddDate(0, 0, 6)))
}
