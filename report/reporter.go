package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"blockdreamer/logger"
	"blockdreamer/types"
)

var ErrQueueFull = errors.New("report queue full, report dropped")

// Reporter delivers a finished slot report to a sink.
type Reporter interface {
	Report(ctx context.Context, report *types.SlotReport) error
}

// Multi fans a report out to every sink. A failing sink does not stop the others.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, report *types.SlotReport) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", r, err))
		}
	}
	return errors.Join(errs...)
}

// Async queues reports for a single background worker so that slow sinks never hold up the
// scheduler. Reports arriving while the queue is full are dropped.
type Async struct {
	next   Reporter
	queue  chan *types.SlotReport
	done   chan struct{}
	Logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Reporter, size int) *Async {
	if size <= 0 {
		size = 1
	}
	a := &Async{
		next:   next,
		queue:  make(chan *types.SlotReport, size),
		done:   make(chan struct{}),
		Logger: logger.ReportLogger,
	}
	go a.worker()
	return a
}

func (a *Async) Report(_ context.Context, report *types.SlotReport) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errors.New("reporter closed")
	}

	select {
	case a.queue <- report:
		return nil
	default:
		a.Logger.Warn("Report queue full, dropping report", "slot", report.Slot, "report_id", report.ID, "queue", cap(a.queue))
		return ErrQueueFull
	}
}

// Close stops accepting reports and waits until the queued ones are delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) worker() {
	defer close(a.done)
	for r := range a.queue {
		// Delivery outlives the scheduler context so that queued reports survive shutdown
		if err := a.next.Report(context.Background(), r); err != nil {
			a.Logger.Error("Failed to deliver slot report", "slot", r.Slot, "report_id", r.ID, "err", err)
		}
	}
}
