/*
Package sqlite provides a SQLite-backed implementation of the attendance
storage interfaces.

PURPOSE:
  Implements attendance.Store, attendance.AuditLog and attendance.PolicyStore
  on SQLite. The same patterns apply to any SQL database; only minor dialect
  differences.

INTERFACES IMPLEMENTED:
  attendance.Store:       Punch persistence (append + read)
  attendance.AuditLog:    Rejected attempts
  attendance.PolicyStore: Tenant settings and pay profiles

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on punches or invalid_attempts
  - Corrections are new records, never edits

KEY TABLES:
  punches:          Immutable punch facts, one row per punch
  invalid_attempts: Rejected attempts, write-only for the engine
  tenant_settings:  Per-tenant engine settings (JSON)
  pay_profiles:     Base daily wage per employee

AT-MOST-ONE-WRITER:
  AppendPunch counts the day's punches and inserts inside one database
  transaction, holding the store's write lock. The unique index
  idx_punches_unique_type backs this up: a day can never hold two punches
  of the same type, whatever the caller does.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  store, err := sqlite.New("./data/timeclock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - attendance/store.go: Interface definitions
  - attendance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldops/timeclock/attendance"
	"github.com/mattn/go-sqlite3"
)

const timeLayout = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Punches (append-only)
	CREATE TABLE IF NOT EXISTS punches (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		local_day TEXT NOT NULL,
		punch_type TEXT NOT NULL,
		punched_at TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		address TEXT,
		captured_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Day reads (hot path)
	CREATE INDEX IF NOT EXISTS idx_punches_tenant_employee_day
		ON punches(tenant_id, employee_id, local_day, punched_at);

	-- CRITICAL: at most one punch of each type per employee and day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_punches_unique_type
		ON punches(tenant_id, employee_id, local_day, punch_type);

	-- Rejected attempts (append-only, write-only for the engine)
	CREATE TABLE IF NOT EXISTS invalid_attempts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		attempted_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		message TEXT,
		attempted_at TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		address TEXT,
		captured_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invalid_attempts_tenant_employee
		ON invalid_attempts(tenant_id, employee_id, attempted_at);

	-- Tenant settings
	CREATE TABLE IF NOT EXISTS tenant_settings (
		tenant_id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Pay profiles
	CREATE TABLE IF NOT EXISTS pay_profiles (
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		base_daily_wage INTEGER NOT NULL,
		currency TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, employee_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PUNCH STORE (attendance.Store interface)
// =============================================================================

// GetTodaysPunches returns one local day's punches, oldest first.
func (s *Store) GetTodaysPunches(ctx context.Context, tenantID attendance.TenantID, employeeID attendance.EmployeeID, day attendance.DayBoundary) ([]attendance.Punch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, employee_id, punch_type, punched_at,
		       latitude, longitude, address, captured_at
		FROM punches
		WHERE tenant_id = ? AND employee_id = ? AND local_day = ?
		ORDER BY punched_at ASC
	`, tenantID, employeeID, day.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to query punches: %w", err)
	}
	defer rows.Close()

	var punches []attendance.Punch
	for rows.Next() {
		p, err := scanPunch(rows)
		if err != nil {
			return nil, err
		}
		punches = append(punches, p)
	}
	return punches, rows.Err()
}

// AppendPunch inserts p if the day holds exactly p.Type.Ordinal() punches.
func (s *Store) AppendPunch(ctx context.Context, tenantID attendance.TenantID, employeeID attendance.EmployeeID, day attendance.DayBoundary, p attendance.Punch) error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %d", attendance.ErrUnknownPunchType, uint8(p.Type))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var count int
	err = sqlTx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM punches WHERE tenant_id = ? AND employee_id = ? AND local_day = ?",
		tenantID, employeeID, day.Date,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count punches: %w", err)
	}
	if count != p.Type.Ordinal() {
		return attendance.ErrConcurrentPunch
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO punches
		(id, tenant_id, employee_id, local_day, punch_type, punched_at,
		 latitude, longitude, address, captured_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		tenantID,
		employeeID,
		day.Date,
		p.Type.String(),
		p.Timestamp.UTC().Format(timeLayout),
		p.Location.Latitude,
		p.Location.Longitude,
		nullString(p.Location.Address),
		p.Location.CapturedAt.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return attendance.ErrConcurrentPunch
		}
		return fmt.Errorf("failed to append punch: %w", err)
	}

	return sqlTx.Commit()
}

func scanPunch(rows *sql.Rows) (attendance.Punch, error) {
	var (
		p          attendance.Punch
		punchType  string
		punchedAt  string
		address    sql.NullString
		capturedAt string
	)

	err := rows.Scan(
		&p.ID, &p.TenantID, &p.EmployeeID, &punchType, &punchedAt,
		&p.Location.Latitude, &p.Location.Longitude, &address, &capturedAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan punch: %w", err)
	}

	if p.Type, err = attendance.ParsePunchType(punchType); err != nil {
		return p, err
	}
	if p.Timestamp, err = time.Parse(timeLayout, punchedAt); err != nil {
		return p, fmt.Errorf("failed to parse punched_at: %w", err)
	}
	if p.Location.CapturedAt, err = time.Parse(timeLayout, capturedAt); err != nil {
		return p, fmt.Errorf("failed to parse captured_at: %w", err)
	}
	p.Location.Address = address.String
	return p, nil
}

// =============================================================================
// AUDIT LOG (attendance.AuditLog interface)
// =============================================================================

func (s *Store) RecordInvalidAttempt(ctx context.Context, a attendance.InvalidAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		lat, lng   sql.NullFloat64
		address    sql.NullString
		capturedAt sql.NullString
	)
	if a.Location != nil {
		lat = sql.NullFloat64{Float64: a.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: a.Location.Longitude, Valid: true}
		address = nullString(a.Location.Address)
		if !a.Location.CapturedAt.IsZero() {
			capturedAt = nullString(a.Location.CapturedAt.UTC().Format(timeLayout))
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invalid_attempts
		(id, tenant_id, employee_id, attempted_type, reason, message, attempted_at,
		 latitude, longitude, address, captured_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.TenantID,
		a.EmployeeID,
		a.AttemptedType.String(),
		a.Reason,
		nullString(a.Message),
		a.Timestamp.UTC().Format(timeLayout),
		lat, lng, address, capturedAt,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record invalid attempt: %w", err)
	}
	return nil
}

// InvalidAttempts lists recorded attempts for one employee, oldest first.
// Compliance review only; the engine never reads them.
func (s *Store) InvalidAttempts(ctx context.Context, tenantID attendance.TenantID, employeeID attendance.EmployeeID) ([]attendance.InvalidAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, employee_id, attempted_type, reason, message, attempted_at,
		       latitude, longitude, address, captured_at
		FROM invalid_attempts
		WHERE tenant_id = ? AND employee_id = ?
		ORDER BY attempted_at ASC, created_at ASC
	`, tenantID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invalid attempts: %w", err)
	}
	defer rows.Close()

	var attempts []attendance.InvalidAttempt
	for rows.Next() {
		var (
			a           attendance.InvalidAttempt
			typ         string
			message     sql.NullString
			attemptedAt string
			lat, lng    sql.NullFloat64
			address     sql.NullString
			capturedAt  sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.EmployeeID, &typ, &a.Reason, &message,
			&attemptedAt, &lat, &lng, &address, &capturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invalid attempt: %w", err)
		}
		a.AttemptedType, _ = attendance.ParsePunchType(typ)
		a.Message = message.String
		a.Timestamp, _ = time.Parse(timeLayout, attemptedAt)
		if lat.Valid && lng.Valid {
			loc := &attendance.Location{Latitude: lat.Float64, Longitude: lng.Float64, Address: address.String}
			if capturedAt.Valid {
				loc.CapturedAt, _ = time.Parse(timeLayout, capturedAt.String)
			}
			a.Location = loc
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// =============================================================================
// POLICY STORE (attendance.PolicyStore interface)
// =============================================================================

func (s *Store) TenantSettings(ctx context.Context, tenantID attendance.TenantID) (attendance.TenantSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM tenant_settings WHERE tenant_id = ?", tenantID,
	).Scan(&configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.TenantSettings{}, false, nil
	}
	if err != nil {
		return attendance.TenantSettings{}, false, fmt.Errorf("failed to get tenant settings: %w", err)
	}

	settings, err := attendance.ParseTenantSettings(configJSON)
	if err != nil {
		return attendance.TenantSettings{}, false, err
	}
	return settings, true, nil
}

func (s *Store) SaveTenantSettings(ctx context.Context, tenantID attendance.TenantID, settings attendance.TenantSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	configJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode tenant settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, config_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at
	`, tenantID, string(configJSON), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save tenant settings: %w", err)
	}
	return nil
}

func (s *Store) PayProfile(ctx context.Context, tenantID attendance.TenantID, employeeID attendance.EmployeeID) (attendance.PayProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := attendance.PayProfile{TenantID: tenantID, EmployeeID: employeeID}
	err := s.db.QueryRowContext(ctx,
		"SELECT base_daily_wage, currency FROM pay_profiles WHERE tenant_id = ? AND employee_id = ?",
		tenantID, employeeID,
	).Scan(&p.BaseDailyWage, &p.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.PayProfile{}, attendance.ErrEmployeeNotFound
	}
	if err != nil {
		return attendance.PayProfile{}, fmt.Errorf("failed to get pay profile: %w", err)
	}
	return p, nil
}

func (s *Store) SavePayProfile(ctx context.Context, p attendance.PayProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pay_profiles (tenant_id, employee_id, base_daily_wage, currency, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, employee_id) DO UPDATE SET
			base_daily_wage = excluded.base_daily_wage,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`, p.TenantID, p.EmployeeID, p.BaseDailyWage, p.Currency, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save pay profile: %w", err)
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
