package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

func date(s string) time.Time {
	t, err := time.Parse(calendar.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRange(t *testing.T) {
	days := calendar.Range(date("2026-02-07"), date("2026-02-13"))
	require.Len(t, days, 7)
	assert.Equal(t, "2026-02-07", calendar.Format(days[0]))
	assert.Equal(t, "2026-02-13", calendar.Format(days[6]))

	assert.Nil(t, calendar.Range(date("2026-02-13"), date("2026-02-07")))
	assert.Len(t, calendar.Range(date("2026-02-28"), date("2026-03-01")), 2)
}

func TestWindow(t *testing.T) {
	days := calendar.Window(date("2026-12-30"), 3)
	require.Len(t, days, 3)
	assert.Equal(t, "2027-01-01", calendar.Format(days[2]))
	assert.Nil(t, calendar.Window(date("2026-12-30"), 0))
}

func TestDay_TruncatesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	got := calendar.Day(time.Date(2026, 5, 4, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), got)
}

func TestOrdinal(t *testing.T) {
	assert.Equal(t, 719163, calendar.Ordinal(date("1970-01-01")))
	assert.Equal(t, 1, calendar.Ordinal(date("1970-01-02"))-calendar.Ordinal(date("1970-01-01")))
	// 2024-01-01 is ordinal 738886.
	assert.Equal(t, 738886, calendar.Ordinal(date("2024-01-01")))
}

func TestSeason(t *testing.T) {
	assert.Equal(t, "winter", calendar.Season(time.January))
	assert.Equal(t, "winter", calendar.Season(time.December))
	assert.Equal(t, "spring", calendar.Season(time.April))
	assert.Equal(t, "summer", calendar.Season(time.August))
	assert.Equal(t, "autumn", calendar.Season(time.October))
}

func TestIsHoliday(t *testing.T) {
	holidays := []string{
		"2026-01-01", // New Year
		"2026-01-19", // MLK, third Monday
		"2026-02-16", // Presidents' Day
		"2026-07-04",
		"2026-09-07", // Labor Day
		"2026-10-12", // Columbus Day
		"2026-11-11",
		"2026-11-26", // Thanksgiving
		"2026-12-25",
	}
	for _, h := range holidays {
		assert.True(t, calendar.IsHoliday(date(h)), h)
	}

	for _, d := range []string{"2026-01-12", "2026-11-19", "2026-03-17"} {
		assert.False(t, calendar.IsHoliday(date(d)), d)
	}
}

func TestParse(t *testing.T) {
	got, err := calendar.Parse("2026-02-07")
	require.NoError(t, err)
	assert.Equal(t, date("2026-02-07"), got)

	_, err = calendar.Parse("07/02/2026")
	assert.Error(t, err)
}
