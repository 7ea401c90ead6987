package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/timeclock/attendance"
)

func TestDayFor_UsesTenantTimezone(t *testing.T) {
	saoPaulo, err := attendance.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 01:00 UTC on the 11th is still the evening of the 10th in São Paulo.
	instant := time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-11", attendance.DayFor(instant, time.UTC).Date)

	day := attendance.DayFor(instant, saoPaulo)
	assert.Equal(t, "2025-03-10", day.Date)
	assert.True(t, day.Contains(instant))
	assert.Equal(t, time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC), day.Start.UTC())
}

func TestDayFor_HalfOpen(t *testing.T) {
	day := attendance.DayFor(at(12, 0), time.UTC)

	assert.True(t, day.Contains(day.Start))
	assert.False(t, day.Contains(day.End))
	assert.Equal(t, 24*time.Hour, day.End.Sub(day.Start))
}

func TestDayFor_DSTDayIs23Hours(t *testing.T) {
	ny, err := attendance.LoadLocation("America/New_York")
	require.NoError(t, err)

	day := attendance.DayFor(time.Date(2025, 3, 9, 12, 0, 0, 0, ny), ny)
	assert.Equal(t, 23*time.Hour, day.End.Sub(day.Start))
}

func TestParseDay(t *testing.T) {
	day, err := attendance.ParseDay("2025-03-10", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, at(0, 0), day.Start)

	_, err = attendance.ParseDay("10/03/2025", time.UTC)
	assert.Error(t, err)

	_, err = attendance.LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)

	utc, err := attendance.LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, utc)
}
