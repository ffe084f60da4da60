package dreamer

import (
	"context"
	"fmt"
	"time"

	"blockdreamer/beacon"
	"blockdreamer/config"
	"blockdreamer/db"
	"blockdreamer/distance"
	"blockdreamer/logger"
	"blockdreamer/report"
)

func RunDreamCmd(ctx context.Context, genesisTimeout time.Duration) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	nodes := cfg.EnabledNodes()
	logger.DreamLogger.Info("Loaded config", "network", cfg.Network, "nodes", nodes.Names(), "post_endpoints", len(cfg.PostEndpoints))

	// Slot timing from config, or from the canonical beacon node
	genesis, secondsPerSlot := time.Unix(int64(cfg.GenesisTime), 0), cfg.SecondsPerSlot
	if cfg.GenesisTime == 0 || cfg.SecondsPerSlot == 0 {
		logger.DreamLogger.Info("Waiting for genesis from canonical beacon node", "url", cfg.CanonicalBN, "timeout", genesisTimeout.String())
		infoCtx, cancel := context.WithTimeout(ctx, genesisTimeout)
		info, err := beacon.GetChainInfo(infoCtx, cfg.CanonicalBN, logger.DreamLogger)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to get chain info: %w", err)
		}
		if cfg.GenesisTime == 0 {
			genesis = info.GenesisTime
		}
		if cfg.SecondsPerSlot == 0 {
			secondsPerSlot = info.SecondsPerSlot
		}
		logger.DreamLogger.Info("Chain info", "genesis", genesis, "seconds_per_slot", secondsPerSlot, "slots_per_epoch", info.SlotsPerEpoch)
	}
	clock, err := NewSlotClock(genesis, secondsPerSlot)
	if err != nil {
		return err
	}

	var engine *distance.Engine
	if cfg.Distance.Enabled {
		weights, err := distance.WeightsFromMap(cfg.Distance.Weights)
		if err != nil {
			return fmt.Errorf("invalid distance weights: %w", err)
		}
		engine = distance.NewEngine(weights, secondsPerSlot)
	}

	sinks := report.Multi{report.NewLogReporter()}
	if cfg.Clickhouse.Enabled {
		ch, err := openClickhouse(db.NewClickhouse, clock)
		if err != nil {
			return err
		}
		defer ch.Close()
		sinks = append(sinks, report.NewClickhouseReporter(ch))
	}
	for _, ep := range cfg.PostEndpoints {
		p, err := report.NewPostReporter(ep)
		if err != nil {
			return err
		}
		sinks = append(sinks, p)
	}

	async := report.NewAsync(sinks, cfg.Scheduler.ReportQueue)
	// Runs after the scheduler has waited for its cycles
	defer async.Close()

	sched, err := New(nodes, beacon.NewHTTPFetcher(), engine, async, clock, OptionsFromConfig(cfg.Scheduler))
	if err != nil {
		return err
	}
	return sched.Run(ctx)
}

// openClickhouse connects with the merged config and bootstraps the database and tables before
// anything is written.
func openClickhouse(open func() (db.Database, error), clock *SlotClock) (db.Database, error) {
	ch, err := open()
	if err != nil {
		return nil, err
	}
	logger.DreamLogger.Info("Ensuring database and tables exist", "database", db.DatabaseName())
	if err := db.Setup(ch); err != nil {
		ch.Close()
		return nil, err
	}

	if last, ok, err := ch.QueryLastSlot(); err != nil {
		logger.DreamLogger.Error("Failed to query last reported slot", "err", err)
	} else if ok {
		logger.DreamLogger.Info("Resuming after last reported slot", "last_slot", last, "current_slot", clock.SlotAt(time.Now()))
	}
	return ch, nil
}
