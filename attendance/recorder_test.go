package attendance_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fieldops/timeclock/attendance"
)

// =============================================================================
// MOCKS
// =============================================================================

type mockAuditLog struct {
	mock.Mock
}

func (m *mockAuditLog) RecordInvalidAttempt(ctx context.Context, attempt attendance.InvalidAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func attempt(id string) attendance.InvalidAttempt {
	return attendance.InvalidAttempt{
		ID:            id,
		TenantID:      tenantID,
		EmployeeID:    employeeID,
		AttemptedType: attendance.ClockOut,
		Reason:        attendance.RejectOutOfSequence,
		Timestamp:     at(12, 0),
	}
}

func byID(id string) interface{} {
	return mock.MatchedBy(func(a attendance.InvalidAttempt) bool { return a.ID == id })
}

// =============================================================================
// RECORDER TESTS
// =============================================================================

func TestRecorder_WritesQueuedAttempts(t *testing.T) {
	sink := new(mockAuditLog)
	sink.On("RecordInvalidAttempt", mock.Anything, byID("a-1")).Return(nil).Once()
	sink.On("RecordInvalidAttempt", mock.Anything, byID("a-2")).Return(nil).Once()

	rec := attendance.NewRecorder(sink, quietLogger(), 8, time.Second)
	rec.Start()
	rec.Record(attempt("a-1"))
	rec.Record(attempt("a-2"))
	rec.Stop()

	sink.AssertExpectations(t)
}

func TestRecorder_SinkFailureIsAbsorbed(t *testing.T) {
	// GIVEN: A sink that fails the first write
	sink := new(mockAuditLog)
	sink.On("RecordInvalidAttempt", mock.Anything, byID("a-1")).Return(errors.New("audit db down")).Once()
	sink.On("RecordInvalidAttempt", mock.Anything, byID("a-2")).Return(nil).Once()

	rec := attendance.NewRecorder(sink, quietLogger(), 8, time.Second)
	rec.Start()

	// WHEN: Recording two attempts
	assert.NotPanics(t, func() {
		rec.Record(attempt("a-1"))
		rec.Record(attempt("a-2"))
	})
	rec.Stop()

	// THEN: The worker kept going after the failure
	sink.AssertExpectations(t)
}

func TestRecorder_WriteIsTimeoutBounded(t *testing.T) {
	sink := new(mockAuditLog)
	sink.On("RecordInvalidAttempt", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline
	}), mock.Anything).Return(nil).Once()

	rec := attendance.NewRecorder(sink, quietLogger(), 1, 50*time.Millisecond)
	rec.Start()
	rec.Record(attempt("a-1"))
	rec.Stop()

	sink.AssertExpectations(t)
}

func TestRecorder_FullQueueDrops(t *testing.T) {
	// GIVEN: A queue of one and no worker running yet
	sink := new(mockAuditLog)
	sink.On("RecordInvalidAttempt", mock.Anything, byID("a-1")).Return(nil).Once()

	rec := attendance.NewRecorder(sink, quietLogger(), 1, time.Second)

	// WHEN: Two attempts arrive
	rec.Record(attempt("a-1"))
	rec.Record(attempt("a-2"))
	rec.Start()
	rec.Stop()

	// THEN: Only the queued one is written
	sink.AssertExpectations(t)
	sink.AssertNotCalled(t, "RecordInvalidAttempt", mock.Anything, byID("a-2"))
}

func TestRecorder_RecordAfterStopIsDropped(t *testing.T) {
	sink := new(mockAuditLog)

	rec := attendance.NewRecorder(sink, quietLogger(), 8, time.Second)
	rec.Start()
	rec.Stop()
	rec.Stop() // idempotent

	assert.NotPanics(t, func() { rec.Record(attempt("late")) })
	sink.AssertNotCalled(t, "RecordInvalidAttempt", mock.Anything, mock.Anything)
}
