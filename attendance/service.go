/*
service.go - Punch orchestration

PURPOSE:
  PunchService composes the pure pieces (sequencer, validator, calculator)
  with the collaborators (Store, PolicyStore, Recorder) for one request.

REGISTER FLOW:
  ┌──────────────────────────────────────────────────────────────────────┐
  │ settings + pay profile ──▶ read day ledger ──▶ Validate              │
  │                                                  │                   │
  │                    ┌─────────── accept ──────────┴──── reject ──┐    │
  │                    ▼                                            ▼    │
  │      re-read ledger, AppendPunch (conditional)      Recorder.Record  │
  │                    │  conflict ──▶ reject OutOfSequence ───────▶ │   │
  │                    ▼                                            ▼    │
  │              status + hours + pay from the resulting ledger          │
  └──────────────────────────────────────────────────────────────────────┘

FAILURE SEMANTICS:
  - Rejections are returned in the result, err == nil.
  - Store read/write failures return a *StoreError (retryable). A failed
    write is never reported as success and is not recorded as an invalid
    attempt.
  - Recorder failures never reach the caller.
  - A stored ledger that breaks the day invariants is logged at Error and
    returned as ErrLedgerCorrupt.

CONCURRENCY:
  The service holds no per-request state. Two racing punches for the same
  employee and day are settled by the store's conditional append; the loser
  gets an ordinary OutOfSequence rejection.

SEE ALSO:
  - validator.go, hours.go, sequencer.go: Pure decision logic
  - store.go: Collaborator interfaces
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RESULTS
// =============================================================================

type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
)

// PunchResult is what RegisterPunch returns for both outcomes.
type PunchResult struct {
	Outcome   Outcome
	Punch     *Punch     // set when accepted
	Rejection *Rejection // set when rejected
	Summary   DaySummary
}

// DaySummary is the derived view of one employee's day.
type DaySummary struct {
	TenantID    TenantID
	EmployeeID  EmployeeID
	Day         DayBoundary
	Ledger      DayLedger
	Status      EmployeeDayStatus
	NextAllowed PunchType // zero once the day is closed
	HoursWorked float64
	AmountOwed  Money
	Currency    string
	// Final is true once ClockOut exists. Until then HoursWorked and
	// AmountOwed are live values and must not be persisted as final.
	Final bool
}

// =============================================================================
// PUNCH SERVICE
// =============================================================================

type PunchService struct {
	Store    Store
	Policies PolicyStore
	Recorder AttemptRecorder
	Logger   *slog.Logger

	// Defaults apply to tenants without stored settings and fill zero fields.
	Defaults TenantSettings

	// StoreTimeout bounds each individual store call. Zero means no bound
	// beyond the caller's context.
	StoreTimeout time.Duration

	NewID func() PunchID
}

func (s *PunchService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *PunchService) newID() PunchID {
	if s.NewID != nil {
		return s.NewID()
	}
	return PunchID(uuid.NewString())
}

// RegisterPunch validates candidate against the employee's day at now and
// appends it on acceptance. now must come from the server clock.
func (s *PunchService) RegisterPunch(
	ctx context.Context,
	tenantID TenantID,
	employeeID EmployeeID,
	candidate PunchType,
	loc *Location,
	now time.Time,
) (*PunchResult, error) {
	settings, tz, err := s.tenantSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	profile, err := s.payProfile(ctx, tenantID, employeeID)
	if err != nil {
		return nil, err
	}

	day := DayFor(now, tz)
	ledger, err := s.loadLedger(ctx, tenantID, employeeID, day)
	if err != nil {
		return nil, err
	}

	log := s.logger().With(
		slog.String("tenant_id", string(tenantID)),
		slog.String("employee_id", string(employeeID)),
		slog.String("day", day.Date),
		slog.String("candidate", candidate.String()),
	)

	validator := Validator{LocationTolerance: settings.LocationTolerance}
	decision := validator.Validate(ledger, candidate, loc, now)
	if !decision.Accepted {
		return s.rejected(log, tenantID, employeeID, decision.Rejection, loc, now, ledger, day, settings, profile), nil
	}

	punch := decision.Punch
	punch.ID = s.newID()
	punch.TenantID = tenantID
	punch.EmployeeID = employeeID

	// Optimistic check: if anything landed since the first read, lose the race.
	fresh, err := s.loadLedger(ctx, tenantID, employeeID, day)
	if err != nil {
		return nil, err
	}
	if fresh.Len() != ledger.Len() {
		return s.rejected(log, tenantID, employeeID, conflictRejection(fresh, candidate), loc, now, fresh, day, settings, profile), nil
	}

	if err := s.appendPunch(ctx, tenantID, employeeID, day, punch); err != nil {
		if !errors.Is(err, ErrConcurrentPunch) {
			log.Warn("punch append failed", slog.String("error", err.Error()))
			return nil, err
		}
		fresh, rerr := s.loadLedger(ctx, tenantID, employeeID, day)
		if rerr != nil {
			return nil, rerr
		}
		return s.rejected(log, tenantID, employeeID, conflictRejection(fresh, candidate), loc, now, fresh, day, settings, profile), nil
	}

	log.Info("punch accepted", slog.String("punch_id", string(punch.ID)))
	updated := ledger.With(punch)
	return &PunchResult{
		Outcome: OutcomeAccepted,
		Punch:   &punch,
		Summary: summarize(tenantID, employeeID, day, updated, now, settings, profile),
	}, nil
}

// GetDaySummary returns the ledger, status, hours and pay for one local day.
// An empty date means the day containing now in the tenant's timezone.
func (s *PunchService) GetDaySummary(
	ctx context.Context,
	tenantID TenantID,
	employeeID EmployeeID,
	date string,
	now time.Time,
) (*DaySummary, error) {
	settings, tz, err := s.tenantSettings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	profile, err := s.payProfile(ctx, tenantID, employeeID)
	if err != nil {
		return nil, err
	}

	day := DayFor(now, tz)
	if date != "" {
		day, err = ParseDay(date, tz)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
		}
	}

	ledger, err := s.loadLedger(ctx, tenantID, employeeID, day)
	if err != nil {
		return nil, err
	}
	summary := summarize(tenantID, employeeID, day, ledger, now, settings, profile)
	return &summary, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *PunchService) rejected(
	log *slog.Logger,
	tenantID TenantID,
	employeeID EmployeeID,
	rejection *Rejection,
	loc *Location,
	now time.Time,
	ledger DayLedger,
	day DayBoundary,
	settings TenantSettings,
	profile PayProfile,
) *PunchResult {
	log.Info("punch rejected",
		slog.String("reason", string(rejection.Reason)),
		slog.String("expected", rejection.Expected.String()),
	)

	if s.Recorder != nil {
		attempt := InvalidAttempt{
			ID:            uuid.NewString(),
			TenantID:      tenantID,
			EmployeeID:    employeeID,
			AttemptedType: rejection.Candidate,
			Reason:        rejection.Reason,
			Message:       rejection.Message,
			Timestamp:     now,
		}
		if loc != nil {
			l := *loc
			attempt.Location = &l
		}
		s.Recorder.Record(attempt)
	}

	return &PunchResult{
		Outcome:   OutcomeRejected,
		Rejection: rejection,
		Summary:   summarize(tenantID, employeeID, day, ledger, now, settings, profile),
	}
}

// conflictRejection explains a lost race against the ledger that won it.
func conflictRejection(fresh DayLedger, candidate PunchType) *Rejection {
	r := &Rejection{
		Reason:    RejectOutOfSequence,
		Candidate: candidate,
		Message:   "another punch was registered for you at the same time",
	}
	if next, open := NextAllowed(fresh); open {
		r.Expected = next
		if next != candidate {
			r.Message = sequenceMessage(candidate, next)
		}
	}
	return r
}

func summarize(
	tenantID TenantID,
	employeeID EmployeeID,
	day DayBoundary,
	ledger DayLedger,
	now time.Time,
	settings TenantSettings,
	profile PayProfile,
) DaySummary {
	asOf := now
	if asOf.After(day.End) {
		asOf = day.End
	}
	hours := ComputeHours(ledger, asOf, settings.EffectiveLunch())
	next, _ := NextAllowed(ledger)

	return DaySummary{
		TenantID:    tenantID,
		EmployeeID:  employeeID,
		Day:         day,
		Ledger:      ledger,
		Status:      StatusOf(ledger),
		NextAllowed: next,
		HoursWorked: hours,
		AmountOwed:  ComputeOwed(hours, profile.BaseDailyWage, settings.MinimumHoursForFullPay),
		Currency:    profile.Currency,
		Final:       ledger.IsClosed(),
	}
}

func (s *PunchService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.StoreTimeout)
}

func (s *PunchService) loadLedger(ctx context.Context, tenantID TenantID, employeeID EmployeeID, day DayBoundary) (DayLedger, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	punches, err := s.Store.GetTodaysPunches(ctx, tenantID, employeeID, day)
	if err != nil {
		return DayLedger{}, &StoreError{Op: "get punches", Err: err}
	}
	ledger, err := NewDayLedger(punches)
	if err != nil {
		s.logger().Error("stored day ledger violates invariants",
			slog.String("tenant_id", string(tenantID)),
			slog.String("employee_id", string(employeeID)),
			slog.String("day", day.Date),
			slog.String("error", err.Error()),
		)
		return DayLedger{}, err
	}
	return ledger, nil
}

func (s *PunchService) appendPunch(ctx context.Context, tenantID TenantID, employeeID EmployeeID, day DayBoundary, p Punch) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.Store.AppendPunch(ctx, tenantID, employeeID, day, p)
	if err == nil || errors.Is(err, ErrConcurrentPunch) {
		return err
	}
	return &StoreError{Op: "append punch", Err: err}
}

func (s *PunchService) tenantSettings(ctx context.Context, tenantID TenantID) (TenantSettings, *time.Location, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	settings, found, err := s.Policies.TenantSettings(ctx, tenantID)
	if err != nil {
		return TenantSettings{}, nil, &StoreError{Op: "get tenant settings", Err: err}
	}
	if !found {
		settings = s.Defaults
	}
	settings = settings.WithDefaults(s.Defaults)
	if settings.MinimumHoursForFullPay == 0 {
		settings.MinimumHoursForFullPay = DefaultMinimumHoursForFullPay
	}

	tz, err := LoadLocation(settings.Timezone)
	if err != nil {
		return TenantSettings{}, nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return settings, tz, nil
}

func (s *PunchService) payProfile(ctx context.Context, tenantID TenantID, employeeID EmployeeID) (PayProfile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	profile, err := s.Policies.PayProfile(ctx, tenantID, employeeID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return PayProfile{}, err
		}
		return PayProfile{}, &StoreError{Op: "get pay profile", Err: err}
	}
	return profile, nil
}
