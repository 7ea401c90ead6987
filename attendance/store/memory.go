// Package store provides in-memory implementations of the attendance
// collaborator interfaces.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldops/timeclock/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements attendance.Store, attendance.AuditLog and
// attendance.PolicyStore.
type Memory struct {
	mu       sync.RWMutex
	punches  map[dayKey][]attendance.Punch
	attempts []attendance.InvalidAttempt
	settings map[attendance.TenantID]attendance.TenantSettings
	profiles map[profileKey]attendance.PayProfile
}

type dayKey struct {
	TenantID   attendance.TenantID
	EmployeeID attendance.EmployeeID
	Date       string
}

type profileKey struct {
	TenantID   attendance.TenantID
	EmployeeID attendance.EmployeeID
}

func NewMemory() *Memory {
	return &Memory{
		punches:  make(map[dayKey][]attendance.Punch),
		settings: make(map[attendance.TenantID]attendance.TenantSettings),
		profiles: make(map[profileKey]attendance.PayProfile),
	}
}

// GetTodaysPunches returns a copy of the day's punches, oldest first.
func (m *Memory) GetTodaysPunches(_ context.Context, tenantID attendance.TenantID, employeeID attendance.EmployeeID, day attendance.DayBoundary) ([]attendance.Punch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := dayKey{TenantID: tenantID, EmployeeID: employeeID, Date: day.Date}
	result := make([]attendance.Punch, len(m.punches[k]))
	copy(result, m.punches[k])
	return result, nil
}

// AppendPunch appends p if the day holds exactly p.Type.Ordinal() punches.
func (m *Memory) AppendPunch(_ context.Context, tenantID attendance.TenantID, employeeID attendance.EmployeeID, day attendance.DayBoundary, p attendance.Punch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := dayKey{TenantID: tenantID, EmployeeID: employeeID, Date: day.Date}
	existing := m.punches[k]
	if !p.Type.Valid() || len(existing) != p.Type.Ordinal() {
		return attendance.ErrConcurrentPunch
	}

	punches := append(existing, p)
	sort.SliceStable(punches, func(i, j int) bool {
		return punches[i].Timestamp.Before(punches[j].Timestamp)
	})
	m.punches[k] = punches
	return nil
}

// Seed inserts punches without any checks. Test fixtures only.
func (m *Memory) Seed(day attendance.DayBoundary, punches ...attendance.Punch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range punches {
		k := dayKey{TenantID: p.TenantID, EmployeeID: p.EmployeeID, Date: day.Date}
		m.punches[k] = append(m.punches[k], p)
	}
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) RecordInvalidAttempt(_ context.Context, attempt attendance.InvalidAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

// InvalidAttempts returns every recorded attempt, in recording order.
func (m *Memory) InvalidAttempts() []attendance.InvalidAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]attendance.InvalidAttempt, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// =============================================================================
// POLICY STORE
// =============================================================================

func (m *Memory) TenantSettings(_ context.Context, tenantID attendance.TenantID) (attendance.TenantSettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[tenantID]
	return s, ok, nil
}

func (m *Memory) SaveTenantSettings(_ context.Context, tenantID attendance.TenantID, settings attendance.TenantSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[tenantID] = settings
	return nil
}

func (m *Memory) PayProfile(_ context.Context, tenantID attendance.TenantID, employeeID attendance.EmployeeID) (attendance.PayProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[profileKey{TenantID: tenantID, EmployeeID: employeeID}]
	if !ok {
		return attendance.PayProfile{}, attendance.ErrEmployeeNotFound
	}
	return p, nil
}

func (m *Memory) SavePayProfile(_ context.Context, profile attendance.PayProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profileKey{TenantID: profile.TenantID, EmployeeID: profile.EmployeeID}] = profile
	return nil
}
