package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/timeclock/attendance"
	"github.com/fieldops/timeclock/attendance/store"
)

func day() attendance.DayBoundary {
	return attendance.DayFor(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC)
}

func punchAt(t attendance.PunchType, hh int) attendance.Punch {
	ts := time.Date(2025, 3, 10, hh, 0, 0, 0, time.UTC)
	return attendance.Punch{
		ID:         attendance.PunchID(t.String()),
		TenantID:   "acme",
		EmployeeID: "emp-1",
		Type:       t,
		Timestamp:  ts,
		Location:   attendance.Location{Latitude: 1, Longitude: 2, CapturedAt: ts},
	}
}

func TestMemory_ConditionalAppend(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	// Out of turn: the day holds 0 punches, LunchOut needs 1.
	assert.ErrorIs(t, m.AppendPunch(ctx, "acme", "emp-1", day(), punchAt(attendance.LunchOut, 12)), attendance.ErrConcurrentPunch)

	require.NoError(t, m.AppendPunch(ctx, "acme", "emp-1", day(), punchAt(attendance.ClockIn, 8)))
	assert.ErrorIs(t, m.AppendPunch(ctx, "acme", "emp-1", day(), punchAt(attendance.ClockIn, 9)), attendance.ErrConcurrentPunch)
	require.NoError(t, m.AppendPunch(ctx, "acme", "emp-1", day(), punchAt(attendance.LunchOut, 12)))

	punches, err := m.GetTodaysPunches(ctx, "acme", "emp-1", day())
	require.NoError(t, err)
	require.Len(t, punches, 2)
	assert.Equal(t, attendance.ClockIn, punches[0].Type)

	// Other employees and tenants are isolated.
	other, err := m.GetTodaysPunches(ctx, "globex", "emp-1", day())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.AppendPunch(ctx, "acme", "emp-1", day(), punchAt(attendance.ClockIn, 8)))

	punches, _ := m.GetTodaysPunches(ctx, "acme", "emp-1", day())
	punches[0].Type = attendance.ClockOut

	again, _ := m.GetTodaysPunches(ctx, "acme", "emp-1", day())
	assert.Equal(t, attendance.ClockIn, again[0].Type)
}

func TestMemory_Policies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, found, err := m.TenantSettings(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, m.SaveTenantSettings(ctx, "acme", attendance.TenantSettings{Timezone: "Nowhere/Land"}), attendance.ErrInvalidSettings)
	require.NoError(t, m.SaveTenantSettings(ctx, "acme", attendance.TenantSettings{Timezone: "America/Sao_Paulo"}))

	s, found, err := m.TenantSettings(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "America/Sao_Paulo", s.Timezone)

	_, err = m.PayProfile(ctx, "acme", "emp-1")
	assert.ErrorIs(t, err, attendance.ErrEmployeeNotFound)

	require.NoError(t, m.SavePayProfile(ctx, attendance.PayProfile{TenantID: "acme", EmployeeID: "emp-1", BaseDailyWage: 15000, Currency: "BRL"}))
	p, err := m.PayProfile(ctx, "acme", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.Money(15000), p.BaseDailyWage)
}

func TestMemory_InvalidAttempts(t *testing.T) {
	m := store.NewMemory()
	require.NoError(t, m.RecordInvalidAttempt(context.Background(), attendance.InvalidAttempt{ID: "a-1", Reason: attendance.RejectStaleLocation}))

	attempts := m.InvalidAttempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, attendance.RejectStaleLocation, attempts[0].Reason)
}
