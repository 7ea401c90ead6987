package attendance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/timeclock/attendance"
)

func TestTenantSettings_WithDefaults(t *testing.T) {
	defaults := attendance.TenantSettings{
		Timezone:               "UTC",
		LocationTolerance:      2 * time.Minute,
		MinimumHoursForFullPay: 8,
		Lunch:                  &attendance.LunchPolicy{AutoDeduct: time.Hour},
	}

	t.Run("unset fields come from defaults", func(t *testing.T) {
		got := attendance.TenantSettings{Timezone: "America/Sao_Paulo"}.WithDefaults(defaults)

		assert.Equal(t, "America/Sao_Paulo", got.Timezone)
		assert.Equal(t, 2*time.Minute, got.LocationTolerance)
		assert.Equal(t, 8.0, got.MinimumHoursForFullPay)
		assert.Equal(t, time.Hour, got.EffectiveLunch().AutoDeduct)
	})

	t.Run("explicit zero lunch deduction survives", func(t *testing.T) {
		// GIVEN: A tenant that turned the deduction off
		tenant := attendance.TenantSettings{Lunch: &attendance.LunchPolicy{}}

		// WHEN: Merging with a non-zero default
		got := tenant.WithDefaults(defaults)

		// THEN: The tenant's choice wins
		assert.Equal(t, time.Duration(0), got.EffectiveLunch().AutoDeduct)
	})

	t.Run("defaults are copied, not shared", func(t *testing.T) {
		got := attendance.TenantSettings{}.WithDefaults(defaults)
		got.Lunch.AutoDeduct = 5 * time.Minute

		assert.Equal(t, time.Hour, defaults.Lunch.AutoDeduct)
	})
}

func TestTenantSettings_EffectiveLunchUnset(t *testing.T) {
	assert.Equal(t, attendance.LunchPolicy{}, attendance.TenantSettings{}.EffectiveLunch())
}

func TestParseTenantSettings_Lunch(t *testing.T) {
	// Rows written before lunch was configurable carry no lunch key.
	s, err := attendance.ParseTenantSettings(`{"timezone":"UTC","minimum_hours_for_full_pay":8}`)
	require.NoError(t, err)
	assert.Nil(t, s.Lunch)

	s, err = attendance.ParseTenantSettings(`{"timezone":"UTC","lunch":{"auto_deduct":0}}`)
	require.NoError(t, err)
	require.NotNil(t, s.Lunch)
	assert.Equal(t, time.Duration(0), s.Lunch.AutoDeduct)

	_, err = attendance.ParseTenantSettings(`{"timezone":"UTC","lunch":{"auto_deduct":-1}}`)
	assert.ErrorIs(t, err, attendance.ErrInvalidSettings)
}
