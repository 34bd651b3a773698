// Command tradeforge-replay wires configuration, logging, the exchange
// state, the matching loop and the replay driver into one runnable
// process: it reads a trade/depth archive through the merged timeline,
// drives the matching engine event by event at the configured clock
// pace, optionally checkpoints and archives as it goes, and optionally
// exposes the accounts/orders/book services over the boundary adapter.
// Only this package may call os.Exit — every other package reports
// failure through a returned error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/tradeforge/engine/internal/boundary"
	"github.com/tradeforge/engine/pkg/archive"
	"github.com/tradeforge/engine/pkg/book"
	"github.com/tradeforge/engine/pkg/checkpoint"
	"github.com/tradeforge/engine/pkg/config"
	"github.com/tradeforge/engine/pkg/feedreader"
	"github.com/tradeforge/engine/pkg/ids"
	"github.com/tradeforge/engine/pkg/logging"
	"github.com/tradeforge/engine/pkg/market"
	"github.com/tradeforge/engine/pkg/matching"
	"github.com/tradeforge/engine/pkg/orders"
	"github.com/tradeforge/engine/pkg/replay"
	"github.com/tradeforge/engine/pkg/state"
	"github.com/tradeforge/engine/pkg/timeline"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON config file (optional)")
	logFile := flag.String("log-file", "", "if set, also write JSON logs to this file")
	flag.Parse()

	if err := run(*configPath, *logFile); err != nil {
		log.Fatalf("tradeforge-replay: %v", err)
	}
}

func run(configPath, logFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(logFile)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := state.New(market.FeeSchedule{MakerBps: cfg.Fee.MakerBps, TakerBps: cfg.Fee.TakerBps})
	for _, sc := range cfg.Symbols {
		if err := st.Symbols.Register(sc.ToMarket()); err != nil {
			return fmt.Errorf("register symbol %s: %w", sc.Symbol, err)
		}
	}

	ordersSvc := orders.NewService(st)
	symbol := ids.SymbolId(cfg.Replay.Symbol)
	symCfg, err := st.Symbols.Get(symbol)
	if err != nil {
		return fmt.Errorf("replay symbol %s is not a registered symbol: %w", symbol, err)
	}

	mirror := book.New()
	books := map[ids.SymbolId]*book.Mirror{symbol: mirror}

	var archiveStore *archive.Store
	if cfg.Archive.Enabled {
		archiveStore, err = archive.Open(cfg.Archive.DbPath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer archiveStore.Close()
	}
	runId := uuid.New()
	var reportSeq uint64

	var boundarySrv *boundary.Server
	if cfg.Boundary.Enabled {
		boundarySrv = boundary.NewServer(st, ordersSvc, books, logger)
		go func() {
			if err := boundarySrv.Start(cfg.Boundary.Addr); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("boundary server stopped", zap.Error(err))
			}
		}()
	}

	var tradesCursor, depthCursor *feedreader.Cursor
	if cfg.Replay.Resume {
		if cp, err := checkpoint.LoadCheckpoint(cfg.Checkpoint.Path); err == nil {
			logger.Info("resuming from checkpoint", zap.String("path", cfg.Checkpoint.Path), zap.Int64("createdAtMs", cp.CreatedAtMs))
			restored, err := checkpoint.DeserializeExchangeState(cp.State)
			if err != nil {
				return fmt.Errorf("deserialize checkpoint state: %w", err)
			}
			st = restored
			ordersSvc = orders.NewService(st)
			if err := checkpoint.RestoreEngineFromSnapshot(ordersSvc, cp); err != nil {
				return fmt.Errorf("restore engine from checkpoint: %w", err)
			}
			tradesCursor = cp.Cursors.Trades
			depthCursor = cp.Cursors.Depth
		} else {
			logger.Info("no resumable checkpoint found, starting fresh", zap.String("path", cfg.Checkpoint.Path))
		}
	}

	tradeReader := feedreader.NewTradeReader(cfg.Replay.TradesPaths, symCfg.PriceScale, symCfg.QtyScale, feedreader.TimeFilter{}, tradesCursor, true)
	defer tradeReader.Close()
	depthReader := feedreader.NewDepthReader(cfg.Replay.DepthPaths, symCfg.PriceScale, symCfg.QtyScale, feedreader.TimeFilter{}, depthCursor, true)
	defer depthReader.Close()

	tradePuller := feedreader.NewTradePuller(tradeReader)
	depthPuller := feedreader.NewDepthPuller(depthReader)
	tradeChan, depthChan, wait := feedreader.RunProducers(ctx, tradePuller, depthPuller, cfg.Replay.QueueSize)
	merger := timeline.NewMerger(tradeChan, depthChan, cfg.Merge.PreferDepthOnEqualTs)

	engine := matching.NewEngine(ordersSvc, matching.Config{
		ParticipationFactor:      cfg.Matching.ParticipationFactor,
		TreatLimitAsMaker:        cfg.Matching.TreatLimitAsMaker,
		UseAggressorForLiquidity: cfg.Matching.UseAggressorForLiquidity,
	})

	clock, err := buildClock(cfg.Replay)
	if err != nil {
		return fmt.Errorf("build replay clock: %w", err)
	}
	controller := replay.NewController()

	onEvent := func(ev timeline.Event) {
		switch ev.Kind {
		case timeline.KindDepth:
			diff := book.Diff{Ts: ev.Ts, Seq: ev.Seq, Bids: ev.DepthEv.Bids, Asks: ev.DepthEv.Asks}
			if err := mirror.ApplyDiff(diff); err != nil {
				logger.Warn("rejected depth diff", zap.Error(err))
				return
			}
			if boundarySrv != nil {
				boundarySrv.BroadcastOrderbook(symbol, mirror.GetSnapshot(0))
			}
		case timeline.KindTrade:
			mirror.NotifyTrade(book.TradePrint{Ts: ev.Ts, Price: ev.Trade.Price, Qty: ev.Trade.Qty})
			reports := engine.OnTrade(matching.TradeEvent{
				Ts: ev.Ts, Symbol: symbol, Price: ev.Trade.Price, Qty: ev.Trade.Qty,
				Aggressor: ev.Trade.Aggressor, HasAggressor: ev.Trade.HasAggressor,
			})
			for _, rep := range reports {
				if archiveStore != nil {
					reportSeq++
					if err := archiveStore.SaveReport(runId, symbol, reportSeq, rep); err != nil {
						logger.Warn("failed to archive report", zap.Error(err))
					}
				}
				if boundarySrv != nil {
					boundarySrv.BroadcastReport(symbol, boundary.ReportEvent{
						Type: "report", Ts: rep.Ts, Kind: string(rep.Kind), OrderId: string(rep.OrderId), Symbol: string(symbol),
					})
				}
			}
		}
	}

	autoCheckpoint := &replay.AutoCheckpoint{
		IntervalEvents: cfg.Checkpoint.IntervalEvents,
		IntervalWallMs: cfg.Checkpoint.IntervalWallMs,
		Build: func() (any, error) {
			tc := tradeReader.CurrentCursor()
			dc := depthReader.CurrentCursor()
			return checkpoint.MakeCheckpointV1(checkpoint.BuildInput{
				CreatedAtMs: clock.Now(),
				Symbol:      symbol,
				State:       st,
				Orders:      ordersSvc,
				Cursors:     checkpoint.Cursors{Trades: &tc, Depth: &dc},
			}), nil
		},
		Save: func(cp any) error {
			return checkpoint.SaveCheckpoint(cfg.Checkpoint.Path, cp.(checkpoint.V1))
		},
		OnError: func(err error) { logger.Error("checkpoint failed", zap.Error(err)) },
	}

	stats, runErr := replay.Run(ctx, replay.Input{
		Timeline: merger,
		Clock:    clock,
		Limits: replay.Limits{
			MaxEvents:     cfg.Replay.MaxEvents,
			MaxSimTimeMs:  cfg.Replay.MaxSimTimeMs,
			MaxWallTimeMs: cfg.Replay.MaxWallTimeMs,
		},
		Controller: controller,
		OnEvent:    onEvent,
		AutoCp:     autoCheckpoint,
	})
	if err := wait(); err != nil {
		logger.Warn("feed producers reported an error", zap.Error(err))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("replay run: %w", runErr)
	}

	logger.Info("replay finished",
		zap.Int64("eventsOut", stats.EventsOut),
		zap.Int64("simStartTs", stats.SimStartTs),
		zap.Int64("simLastTs", stats.SimLastTs),
	)

	tc := tradeReader.CurrentCursor()
	dc := depthReader.CurrentCursor()
	final := checkpoint.MakeCheckpointV1(checkpoint.BuildInput{
		CreatedAtMs: clock.Now(),
		Symbol:      symbol,
		State:       st,
		Orders:      ordersSvc,
		Cursors:     checkpoint.Cursors{Trades: &tc, Depth: &dc},
	})
	if err := checkpoint.SaveCheckpoint(cfg.Checkpoint.Path, final); err != nil {
		return fmt.Errorf("save final checkpoint: %w", err)
	}
	return nil
}

func buildLogger(logFile string) (*zap.Logger, error) {
	if logFile != "" {
		return logging.NewFile(logFile, logging.ParseLevel("info"))
	}
	return logging.New(logging.ParseLevel("info"))
}

func buildClock(cfg config.ReplayConfig) (replay.Clock, error) {
	switch cfg.Clock {
	case config.ClockLogical, "":
		return replay.NewLogicalClock(), nil
	case config.ClockWall:
		return replay.NewWallClock(), nil
	case config.ClockAccelerated:
		speed := cfg.Speed
		if speed <= 0 {
			speed = 1
		}
		return replay.NewAcceleratedClock(speed), nil
	default:
		return nil, fmt.Errorf("unknown replay clock kind %q", cfg.Clock)
	}
}
