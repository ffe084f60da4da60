package dreamer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"blockdreamer/beacon"
	"blockdreamer/config"
	"blockdreamer/distance"
	"blockdreamer/logger"
	"blockdreamer/types"
	"blockdreamer/utils"
)

// Reporter receives one report per slot cycle. Report must not block for long, the scheduler
// calls it from the cycle goroutine.
type Reporter interface {
	Report(ctx context.Context, report *types.SlotReport) error
}

type Options struct {
	RequestTimeout time.Duration
	CycleDeadline  time.Duration
	RequestOffset  time.Duration // delay after the slot boundary before requesting
	MaxParallel    int           // concurrent requests per cycle, 0 means all nodes at once
}

func OptionsFromConfig(c config.SchedulerConfig) Options {
	return Options{
		RequestTimeout: c.RequestTimeout,
		CycleDeadline:  c.CycleDeadline,
		RequestOffset:  c.RequestOffset,
		MaxParallel:    c.MaxParallel,
	}
}

// Scheduler requests a block from every node at each slot boundary and scores the results.
type Scheduler struct {
	nodes    types.NodeEndpoints
	fetcher  beacon.Fetcher
	engine   *distance.Engine // nil disables distances
	reporter Reporter
	clock    *SlotClock
	opts     Options

	seen   *utils.SlotCache
	Logger *slog.Logger

	wg sync.WaitGroup
}

func New(nodes types.NodeEndpoints, fetcher beacon.Fetcher, engine *distance.Engine, reporter Reporter, clock *SlotClock, opts Options) (*Scheduler, error) {
	if clock == nil {
		return nil, errors.New("scheduler: no slot clock")
	}
	if len(nodes) == 0 {
		return nil, errors.New("scheduler: no nodes")
	}
	if fetcher == nil || reporter == nil {
		return nil, errors.New("scheduler: fetcher and reporter are required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = config.DEFAULT_REQUEST_TIMEOUT
	}
	if opts.CycleDeadline <= 0 {
		opts.CycleDeadline = config.DEFAULT_CYCLE_DEADLINE
	}
	if opts.MaxParallel <= 0 || opts.MaxParallel > len(nodes) {
		opts.MaxParallel = len(nodes)
	}

	return &Scheduler{
		nodes:    nodes,
		fetcher:  fetcher,
		engine:   engine,
		reporter: reporter,
		clock:    clock,
		opts:     opts,
		seen:     utils.NewSlotCache(config.SEEN_SLOT_CACHE_SIZE),
		Logger:   logger.DreamLogger,
	}, nil
}

// Run dispatches one cycle per slot until ctx is cancelled, then waits for in-flight cycles.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Logger.Info("Starting slot scheduler", "nodes", s.nodes.Names(), "slot_duration", s.clock.SlotDuration.String(),
		"request_timeout", s.opts.RequestTimeout.String(), "cycle_deadline", s.opts.CycleDeadline.String())
	defer s.wg.Wait()

	for {
		// First slot whose request time (boundary + offset) is still ahead
		slot, start := s.clock.NextSlot(time.Now().Add(-s.opts.RequestOffset))
		fireAt := start.Add(s.opts.RequestOffset)

		timer := time.NewTimer(time.Until(fireAt))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.Logger.Info("Slot scheduler stopped", "next_slot", slot)
			return nil
		case <-timer.C:
		}

		if !s.seen.Add(uint64(slot)) {
			s.Logger.Warn("Slot already dispatched, skipping", "slot", slot)
			continue
		}

		s.wg.Add(1)
		go func(slot types.Slot) {
			defer s.wg.Done()
			report := s.RunCycle(ctx, slot)
			if err := s.reporter.Report(ctx, report); err != nil {
				s.Logger.Error("Failed to report slot", "slot", slot, "err", err)
			}
		}(slot)
	}
}

// RunCycle fans a block request out to every node for slot and collects exactly one result per
// node. Requests still outstanding at the cycle deadline are abandoned and recorded as timeouts.
func (s *Scheduler) RunCycle(ctx context.Context, slot types.Slot) *types.SlotReport {
	report := &types.SlotReport{
		ID:        uuid.NewString(),
		Slot:      slot,
		StartedAt: time.Now(),
	}

	cycleCtx, cancel := context.WithTimeout(ctx, s.opts.CycleDeadline)
	defer cancel()

	// Each node writes only its own index
	results := make([]*types.FetchResult, len(s.nodes))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.opts.MaxParallel)

	for i, node := range s.nodes {
		wg.Add(1)
		go func(i int, node *types.NodeEndpoint) {
			defer wg.Done()
			results[i] = s.fetchOne(cycleCtx, sem, node, slot)
		}(i, node)
	}
	wg.Wait()
	report.Results = results

	for _, r := range results {
		if r.OK() {
			s.Logger.Info("Block received", "slot", slot, "node", r.Node, "latency", r.Latency.String(), "txs", r.Block.TxCount())
		} else {
			s.Logger.Warn("Block request failed", "slot", slot, "node", r.Node, "status", r.Status.String(), "http_status", r.HTTPStatus, "latency", r.Latency.String(), "err", r.Err)
		}
	}

	if s.engine == nil {
		report.DistanceSkipped = utils.DISTANCE_DISABLED
	} else {
		report.Distances, report.DistanceSkipped = s.engine.ComputePairs(results)
		for _, d := range report.Distances {
			d.Slot = slot
		}
	}
	report.Duration = time.Since(report.StartedAt)

	s.Logger.Info("Slot cycle done", "slot", slot, "nodes", len(results), "successes", len(report.Successes()),
		"pairs", len(report.Distances), "distance_skipped", report.DistanceSkipped, "duration", report.Duration.String())
	return report
}

func (s *Scheduler) fetchOne(ctx context.Context, sem chan struct{}, node *types.NodeEndpoint, slot types.Slot) *types.FetchResult {
	start := time.Now()

	select {
	case sem <- struct{}{}: // acquire
	case <-ctx.Done():
		return types.NewTimeout(node, slot, time.Since(start))
	}
	defer func() { <-sem }() // release

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	// Buffered so that an abandoned fetch can still complete and be garbage collected
	done := make(chan *types.FetchResult, 1)
	go func() {
		done <- s.fetcher.FetchBlock(reqCtx, node, slot)
	}()

	select {
	case r := <-done:
		if r == nil {
			return types.NewFailure(node, slot, types.FetchNetworkError, 0, errors.New("fetcher returned no result"), time.Since(start))
		}
		r.Node, r.Label, r.Slot = node.Name, node.Label, slot
		return r
	case <-reqCtx.Done():
		return types.NewTimeout(node, slot, time.Since(start))
	}
}
