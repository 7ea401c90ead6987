package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/timeclock/attendance"
	"github.com/fieldops/timeclock/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var testDay = attendance.DayFor(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC)

func punchAt(pt attendance.PunchType, hh, mm int) attendance.Punch {
	ts := time.Date(2025, 3, 10, hh, mm, 0, 0, time.UTC)
	return attendance.Punch{
		ID:         attendance.PunchID(pt.String() + ts.Format("1504")),
		TenantID:   "acme",
		EmployeeID: "emp-1",
		Type:       pt,
		Timestamp:  ts,
		Location: attendance.Location{
			Latitude:   -23.5505,
			Longitude:  -46.6333,
			Address:    "Praça da Sé",
			CapturedAt: ts.Add(-30 * time.Second),
		},
	}
}

// =============================================================================
// CONNECTION TESTS
// =============================================================================

func TestSQLite_Ping(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Ping(context.Background()))

	// WHEN: The connection is gone
	require.NoError(t, store.Close())

	// THEN: Ping reports it
	assert.Error(t, store.Ping(context.Background()))
}

// =============================================================================
// PUNCH STORE TESTS
// =============================================================================

func TestSQLite_AppendAndRead(t *testing.T) {
	// GIVEN: A full day appended in order
	store := newTestStore(t)
	ctx := context.Background()
	in := []attendance.Punch{
		punchAt(attendance.ClockIn, 8, 0),
		punchAt(attendance.LunchOut, 12, 0),
		punchAt(attendance.LunchIn, 13, 0),
		punchAt(attendance.ClockOut, 17, 0),
	}
	for _, p := range in {
		require.NoError(t, store.AppendPunch(ctx, "acme", "emp-1", testDay, p))
	}

	// WHEN: Reading the day back
	got, err := store.GetTodaysPunches(ctx, "acme", "emp-1", testDay)

	// THEN: Same punches, same order, times round-trip exactly
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := range in {
		assert.Equal(t, in[i].ID, got[i].ID)
		assert.Equal(t, in[i].Type, got[i].Type)
		assert.True(t, in[i].Timestamp.Equal(got[i].Timestamp))
		assert.True(t, in[i].Location.CapturedAt.Equal(got[i].Location.CapturedAt))
		assert.Equal(t, in[i].Location.Address, got[i].Location.Address)
	}

	ledger, err := attendance.NewDayLedger(got)
	require.NoError(t, err)
	assert.True(t, ledger.IsClosed())
}

func TestSQLite_ConditionalAppend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// LunchOut needs exactly one punch before it.
	err := store.AppendPunch(ctx, "acme", "emp-1", testDay, punchAt(attendance.LunchOut, 12, 0))
	assert.ErrorIs(t, err, attendance.ErrConcurrentPunch)

	require.NoError(t, store.AppendPunch(ctx, "acme", "emp-1", testDay, punchAt(attendance.ClockIn, 8, 0)))

	// A second ClockIn is a lost race, not a generic failure.
	err = store.AppendPunch(ctx, "acme", "emp-1", testDay, punchAt(attendance.ClockIn, 8, 1))
	assert.ErrorIs(t, err, attendance.ErrConcurrentPunch)

	got, err := store.GetTodaysPunches(ctx, "acme", "emp-1", testDay)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLite_ConcurrentClockIn_OneWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.AppendPunch(ctx, "acme", "emp-1", testDay, punchAt(attendance.ClockIn, 8, i))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, attendance.ErrConcurrentPunch)
	}
	assert.Equal(t, 1, wins)
}

func TestSQLite_DaysAndTenantsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AppendPunch(ctx, "acme", "emp-1", testDay, punchAt(attendance.ClockIn, 8, 0)))

	nextDay := attendance.DayFor(testDay.End.Add(time.Hour), time.UTC)
	for _, tc := range []struct {
		tenant   attendance.TenantID
		employee attendance.EmployeeID
		day      attendance.DayBoundary
	}{
		{"globex", "emp-1", testDay},
		{"acme", "emp-2", testDay},
		{"acme", "emp-1", nextDay},
	} {
		got, err := store.GetTodaysPunches(ctx, tc.tenant, tc.employee, tc.day)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

// =============================================================================
// AUDIT LOG TESTS
// =============================================================================

func TestSQLite_InvalidAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	loc := &attendance.Location{Latitude: 1.5, Longitude: 2.5, CapturedAt: time.Date(2025, 3, 10, 11, 59, 0, 0, time.UTC)}

	require.NoError(t, store.RecordInvalidAttempt(ctx, attendance.InvalidAttempt{
		ID:            "a-1",
		TenantID:      "acme",
		EmployeeID:    "emp-1",
		AttemptedType: attendance.ClockOut,
		Reason:        attendance.RejectOutOfSequence,
		Message:       "you must go to lunch before you can clock out",
		Timestamp:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Location:      loc,
	}))
	require.NoError(t, store.RecordInvalidAttempt(ctx, attendance.InvalidAttempt{
		ID:            "a-2",
		TenantID:      "acme",
		EmployeeID:    "emp-1",
		AttemptedType: attendance.ClockIn,
		Reason:        attendance.RejectMissingLocation,
		Timestamp:     time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC),
	}))

	attempts, err := store.InvalidAttempts(ctx, "acme", "emp-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	assert.Equal(t, attendance.ClockOut, attempts[0].AttemptedType)
	assert.Equal(t, attendance.RejectOutOfSequence, attempts[0].Reason)
	require.NotNil(t, attempts[0].Location)
	assert.Equal(t, 1.5, attempts[0].Location.Latitude)
	assert.True(t, loc.CapturedAt.Equal(attempts[0].Location.CapturedAt))

	assert.Equal(t, attendance.RejectMissingLocation, attempts[1].Reason)
	assert.Nil(t, attempts[1].Location)
}

// =============================================================================
// POLICY STORE TESTS
// =============================================================================

func TestSQLite_TenantSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.TenantSettings(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, found)

	want := attendance.TenantSettings{
		Timezone:               "America/Sao_Paulo",
		LocationTolerance:      90 * time.Second,
		MinimumHoursForFullPay: 6,
		Lunch:                  &attendance.LunchPolicy{AutoDeduct: time.Hour},
	}
	require.NoError(t, store.SaveTenantSettings(ctx, "acme", want))

	got, found, err := store.TenantSettings(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	// Upsert
	want.MinimumHoursForFullPay = 7
	require.NoError(t, store.SaveTenantSettings(ctx, "acme", want))
	got, _, err = store.TenantSettings(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.MinimumHoursForFullPay)

	err = store.SaveTenantSettings(ctx, "acme", attendance.TenantSettings{MinimumHoursForFullPay: 30})
	assert.ErrorIs(t, err, attendance.ErrInvalidSettings)
}

func TestSQLite_PayProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PayProfile(ctx, "acme", "emp-1")
	assert.ErrorIs(t, err, attendance.ErrEmployeeNotFound)

	require.NoError(t, store.SavePayProfile(ctx, attendance.PayProfile{TenantID: "acme", EmployeeID: "emp-1", BaseDailyWage: 15000, Currency: "BRL"}))
	require.NoError(t, store.SavePayProfile(ctx, attendance.PayProfile{TenantID: "acme", EmployeeID: "emp-1", BaseDailyWage: 16000, Currency: "BRL"}))

	p, err := store.PayProfile(ctx, "acme", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.Money(16000), p.BaseDailyWage)
	assert.Equal(t, "BRL", p.Currency)
}

// =============================================================================
// END TO END WITH THE SERVICE
// =============================================================================

func TestSQLite_PunchServiceFullDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SavePayProfile(ctx, attendance.PayProfile{TenantID: "acme", EmployeeID: "emp-1", BaseDailyWage: 15000, Currency: "BRL"}))

	svc := &attendance.PunchService{Store: store, Policies: store, Defaults: attendance.TenantSettings{Timezone: "UTC"}}

	steps := []struct {
		pt attendance.PunchType
		hh int
	}{{attendance.ClockIn, 8}, {attendance.LunchOut, 12}, {attendance.LunchIn, 13}, {attendance.ClockOut, 15}}

	var res *attendance.PunchResult
	for _, s := range steps {
		now := time.Date(2025, 3, 10, s.hh, 0, 0, 0, time.UTC)
		var err error
		res, err = svc.RegisterPunch(ctx, "acme", "emp-1", s.pt,
			&attendance.Location{Latitude: 1, Longitude: 1, CapturedAt: now}, now)
		require.NoError(t, err)
		require.Equal(t, attendance.OutcomeAccepted, res.Outcome)
	}

	assert.InDelta(t, 6.0, res.Summary.HoursWorked, 1e-9)
	assert.Equal(t, attendance.Money(11250), res.Summary.AmountOwed)
	assert.True(t, res.Summary.Final)
}
