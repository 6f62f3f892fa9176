// Package reporting moves taint reports from request handlers to the
// persistence sink without blocking application code. Reports flow through a
// bounded channel into a worker pool; when the channel is full the report is
// dropped, never the request.
package reporting

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/taintflow/api/schemas"
	"github.com/xkilldash9x/taintflow/internal/config"
)

// Sink persists a single taint report. Implementations must be thread-safe.
type Sink interface {
	Persist(ctx context.Context, report schemas.TaintReport) error
}

// Reporter is the asynchronous bridge between scopes and the sink.
type Reporter struct {
	sink    Sink
	logger  *zap.Logger
	reports chan schemas.TaintReport
	workers int

	group      *errgroup.Group
	workerCtx  context.Context
	cancel     context.CancelFunc
	intakeMu   sync.RWMutex
	accepting  bool
	shutdownMu sync.Mutex
	started    bool
}

// New creates a reporter with the configured queue size and worker count.
func New(sink Sink, logger *zap.Logger, cfg config.ReportingConfig) *Reporter {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queue := cfg.QueueSize
	if queue < 1 {
		queue = 1
	}
	return &Reporter{
		sink:    sink,
		logger:  logger.Named("reporter"),
		reports: make(chan schemas.TaintReport, queue),
		workers: workers,
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (r *Reporter) Start() {
	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()
	if r.started {
		return
	}
	r.started = true

	r.workerCtx, r.cancel = context.WithCancel(context.Background())
	r.group, _ = errgroup.WithContext(r.workerCtx)
	r.intakeMu.Lock()
	r.accepting = true
	r.intakeMu.Unlock()

	r.logger.Debug("Starting report workers.", zap.Int("workers", r.workers))
	for i := 0; i < r.workers; i++ {
		id := i
		r.group.Go(func() error {
			r.persistLoop(id)
			return nil
		})
	}
}

// persistLoop drains the report channel until it is closed.
func (r *Reporter) persistLoop(id int) {
	r.logger.Debug("Report worker started.", zap.Int("worker_id", id))
	for report := range r.reports {
		if err := r.sink.Persist(r.workerCtx, report); err != nil {
			r.logger.Error("Failed to persist taint report.",
				zap.String("report_id", report.ID),
				zap.String("scope_id", report.ScopeID),
				zap.Error(err),
			)
		}
	}
	r.logger.Debug("Report worker finished.", zap.Int("worker_id", id))
}

// Enqueue offers a report to the pool. It never blocks: if intake is closed
// or the queue is full, the report is dropped and false is returned. Dropping
// evidence under backpressure is preferable to stalling request handling.
func (r *Reporter) Enqueue(report schemas.TaintReport) bool {
	r.intakeMu.RLock()
	defer r.intakeMu.RUnlock()
	if !r.accepting {
		r.logger.Debug("Dropping report after shutdown.", zap.String("report_id", report.ID))
		return false
	}
	select {
	case r.reports <- report:
		return true
	default:
		r.logger.Warn("Report queue full, dropping report. Consider increasing reporting.queue_size.",
			zap.String("report_id", report.ID))
		return false
	}
}

// Shutdown stops intake, drains the queue, and waits for the workers. If ctx
// expires first the workers are cancelled mid-persist and the context error
// is returned.
func (r *Reporter) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()
	if !r.started {
		return nil
	}
	r.started = false

	// 1. Stop intake so no Enqueue can race the channel close.
	r.intakeMu.Lock()
	r.accepting = false
	r.intakeMu.Unlock()

	// 2. Close the channel; workers drain the remaining buffer and exit.
	close(r.reports)

	done := make(chan struct{})
	go func() {
		_ = r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Debug("All report workers have finished.")
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		r.logger.Warn("Reporter shutdown deadline exceeded; in-flight persists cancelled.")
		return ctx.Err()
	}
}
