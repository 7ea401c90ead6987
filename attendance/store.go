/*
store.go - Persistence interfaces consumed by the attendance engine

PURPOSE:
  Defines the boundary between the engine and the document store it runs
  against. The engine only appends and reads punches; it never updates or
  deletes one.

KEY INTERFACES:
  Store:       Per-tenant, per-employee, per-day punch log (append + read)
  AuditLog:    Write-only sink for rejected attempts
  PolicyStore: Tenant settings and employee pay profiles

AT-MOST-ONE-WRITER:
  AppendPunch is conditional: it succeeds only if the day currently holds
  exactly punch.Type.Ordinal() punches. A concurrent writer that got there
  first makes it fail with ErrConcurrentPunch, which the service turns into
  an ordinary OutOfSequence rejection.

IMPLEMENTATIONS:
  - attendance/store/memory.go: In-memory for tests and development
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - service.go: Only caller of these interfaces
*/
package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// STORE - Append-only punch log
// =============================================================================

type Store interface {
	// GetTodaysPunches returns the punches of one local day, ordered by
	// timestamp ascending.
	GetTodaysPunches(ctx context.Context, tenantID TenantID, employeeID EmployeeID, day DayBoundary) ([]Punch, error)

	// AppendPunch appends p to its day. Returns ErrConcurrentPunch if the day
	// no longer holds exactly p.Type.Ordinal() punches.
	AppendPunch(ctx context.Context, tenantID TenantID, employeeID EmployeeID, day DayBoundary, p Punch) error
}

// =============================================================================
// AUDIT LOG - Rejected attempts, write-only for the engine
// =============================================================================

type InvalidAttempt struct {
	ID            string
	TenantID      TenantID
	EmployeeID    EmployeeID
	AttemptedType PunchType
	Reason        RejectReason
	Message       string
	Timestamp     time.Time
	Location      *Location
}

type AuditLog interface {
	RecordInvalidAttempt(ctx context.Context, attempt InvalidAttempt) error
}

// =============================================================================
// POLICY STORE - Tenant settings and pay profiles
// =============================================================================

// TenantSettings are the per-tenant knobs of the engine.
type TenantSettings struct {
	Timezone               string        `json:"timezone"`
	LocationTolerance      time.Duration `json:"location_tolerance"`
	MinimumHoursForFullPay float64       `json:"minimum_hours_for_full_pay"`
	// Lunch is nil when the tenant never chose a policy. A non-nil zero
	// policy explicitly disables the auto deduction.
	Lunch *LunchPolicy `json:"lunch,omitempty"`
}

// Validate checks the settings and resolves the timezone.
func (s TenantSettings) Validate() error {
	if _, err := LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.LocationTolerance < 0 {
		return fmt.Errorf("%w: location tolerance must not be negative", ErrInvalidSettings)
	}
	if s.MinimumHoursForFullPay < 0 || s.MinimumHoursForFullPay > maxHoursPerDay {
		return fmt.Errorf("%w: minimum hours for full pay must be within [0, 24]", ErrInvalidSettings)
	}
	if s.Lunch != nil && s.Lunch.AutoDeduct < 0 {
		return fmt.Errorf("%w: lunch auto deduct must not be negative", ErrInvalidSettings)
	}
	return nil
}

// WithDefaults fills zero fields from defaults. Lunch is taken from defaults
// only when unset.
func (s TenantSettings) WithDefaults(defaults TenantSettings) TenantSettings {
	if s.Timezone == "" {
		s.Timezone = defaults.Timezone
	}
	if s.LocationTolerance == 0 {
		s.LocationTolerance = defaults.LocationTolerance
	}
	if s.MinimumHoursForFullPay == 0 {
		s.MinimumHoursForFullPay = defaults.MinimumHoursForFullPay
	}
	if s.Lunch == nil && defaults.Lunch != nil {
		lunch := *defaults.Lunch
		s.Lunch = &lunch
	}
	return s
}

// EffectiveLunch returns the lunch policy, or the zero policy when unset.
func (s TenantSettings) EffectiveLunch() LunchPolicy {
	if s.Lunch == nil {
		return LunchPolicy{}
	}
	return *s.Lunch
}

// ParseTenantSettings decodes settings stored as JSON.
func ParseTenantSettings(data string) (TenantSettings, error) {
	var s TenantSettings
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return TenantSettings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return s, s.Validate()
}

// PayProfile is what an employee earns for a full day.
type PayProfile struct {
	TenantID      TenantID
	EmployeeID    EmployeeID
	BaseDailyWage Money
	Currency      string
}

type PolicyStore interface {
	// TenantSettings returns stored settings; found is false when the tenant
	// has none and defaults apply.
	TenantSettings(ctx context.Context, tenantID TenantID) (settings TenantSettings, found bool, err error)
	SaveTenantSettings(ctx context.Context, tenantID TenantID, settings TenantSettings) error

	// PayProfile returns ErrEmployeeNotFound when the employee has none.
	PayProfile(ctx context.Context, tenantID TenantID, employeeID EmployeeID) (PayProfile, error)
	SavePayProfile(ctx context.Context, profile PayProfile) error
}
