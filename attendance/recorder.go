/*
recorder.go - Fire-and-forget audit of rejected punch attempts

PURPOSE:
  Every rejected punch is handed to the Recorder, which queues it and writes
  it to the AuditLog from a background worker. The request that produced the
  rejection never waits for, or learns about, the outcome of that write.

DESIGN:
  - Record() never blocks: a full queue drops the attempt and logs it
  - Each sink write is bounded by Timeout
  - Sink failures are logged and absorbed
  - Stop() drains whatever is already queued, then returns

USAGE:
  rec := attendance.NewRecorder(store, logger, 256, 5*time.Second)
  rec.Start()
  defer rec.Stop()

SEE ALSO:
  - service.go: Calls Record on every rejection
  - store.go: AuditLog interface
*/
package attendance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AttemptRecorder accepts rejected attempts without blocking the caller.
type AttemptRecorder interface {
	Record(attempt InvalidAttempt)
}

type Recorder struct {
	Sink    AuditLog
	Timeout time.Duration
	Logger  *slog.Logger

	queue   chan InvalidAttempt
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	qmu     sync.RWMutex // guards stopped against in-flight Record calls
	stopped bool
}

// NewRecorder creates a recorder with a queue of bufferSize attempts.
func NewRecorder(sink AuditLog, logger *slog.Logger, bufferSize int, timeout time.Duration) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		Sink:    sink,
		Timeout: timeout,
		Logger:  logger.With(slog.String("component", "invalid_attempt_recorder")),
		queue:   make(chan InvalidAttempt, bufferSize),
		stop:    make(chan struct{}),
	}
}

// Start launches the worker. Calling it twice is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.run()
}

// Stop flushes queued attempts and stops the worker.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}
	r.qmu.Lock()
	if r.stopped {
		r.qmu.Unlock()
		return
	}
	r.stopped = true
	r.qmu.Unlock()

	close(r.stop)
	r.wg.Wait()
}

// Record queues attempt for writing. It never blocks.
func (r *Recorder) Record(attempt InvalidAttempt) {
	r.qmu.RLock()
	defer r.qmu.RUnlock()

	if r.stopped {
		r.drop(attempt, "recorder stopped")
		return
	}
	select {
	case r.queue <- attempt:
	default:
		r.drop(attempt, "queue full")
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case attempt := <-r.queue:
			r.write(attempt)
		case <-r.stop:
			for {
				select {
				case attempt := <-r.queue:
					r.write(attempt)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(attempt InvalidAttempt) {
	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	if err := r.Sink.RecordInvalidAttempt(ctx, attempt); err != nil {
		r.Logger.Error("failed to record invalid punch attempt",
			slog.String("tenant_id", string(attempt.TenantID)),
			slog.String("employee_id", string(attempt.EmployeeID)),
			slog.String("attempted_type", attempt.AttemptedType.String()),
			slog.String("reason", string(attempt.Reason)),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Recorder) drop(attempt InvalidAttempt, why string) {
	r.Logger.Warn("dropped invalid punch attempt",
		slog.String("why", why),
		slog.String("tenant_id", string(attempt.TenantID)),
		slog.String("employee_id", string(attempt.EmployeeID)),
		slog.String("attempted_type", attempt.AttemptedType.String()),
		slog.String("reason", string(attempt.Reason)),
	)
}
