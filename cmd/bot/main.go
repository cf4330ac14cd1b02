package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sigtrader/internal/backtest"
	"sigtrader/internal/broker"
	"sigtrader/internal/config"
	"sigtrader/internal/engine"
	"sigtrader/internal/logging"
	"sigtrader/internal/md"
	"sigtrader/internal/metrics"
	"sigtrader/internal/report"
	"sigtrader/internal/risk"
	"sigtrader/internal/state"
	"sigtrader/internal/strategy"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		log.Fatalf("logging error: %v", err)
	}

	kind, err := strategy.ParseKind(cfg.Strategy)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	strat, err := strategy.New(kind, cfg.Params)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	switch cfg.Mode {
	case config.ModeBacktest:
		err = runBacktest(ctx, cfg, strat)
		if err != nil {
			stop()
			log.Fatalf("backtest failed: %v", err)
		}
	case config.ModeLive:
		err = runLive(ctx, cfg, strat)
		if err != nil {
			stop()
			log.Fatalf("live trading stopped: %v", err)
		}
	}
	slog.Info("bot shutdown complete")
}

func runBacktest(ctx context.Context, cfg config.Config, strat strategy.Strategy) error {
	var provider md.HistoricalProvider
	if cfg.DataCSV != "" {
		provider = md.CSVSource{Path: cfg.DataCSV}
	} else {
		data, err := md.NewAlpacaData(cfg.APIKey, cfg.APISecret, cfg.Feed, cfg.TimeFrame)
		if err != nil {
			return err
		}
		provider = data
	}
	exposure, err := backtest.ParseExposure(cfg.Exposure)
	if err != nil {
		return err
	}

	slog.Info("starting backtest", "symbol", cfg.Symbol, "strategy", strat.Kind(), "start", cfg.StartDate, "end", cfg.EndDate, "exposure", exposure)
	result, err := backtest.Run(ctx, provider, backtest.Request{
		Symbol:   cfg.Symbol,
		Start:    cfg.Start(),
		End:      cfg.End(),
		Strategy: strat,
		Exposure: exposure,
	})
	if err != nil {
		return err
	}

	report.Print(os.Stdout, result)
	if cfg.ReportCSV != "" {
		if err := report.WriteCSVFile(cfg.ReportCSV, result); err != nil {
			return err
		}
		slog.Info("wrote backtest curves", "path", cfg.ReportCSV)
	}
	if cfg.ReportSVG != "" {
		if err := report.WriteSVGFile(cfg.ReportSVG, result); err != nil {
			return err
		}
		slog.Info("wrote backtest chart", "path", cfg.ReportSVG)
	}
	return nil
}

func runLive(ctx context.Context, cfg config.Config, strat strategy.Strategy) error {
	runID := generateRunID()
	var decisions *engine.DecisionLogger
	if cfg.DecisionsPath != "" {
		d, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
		if err != nil {
			return fmt.Errorf("decision logger: %w", err)
		}
		decisions = d
		defer func() {
			if err := decisions.Close(); err != nil {
				slog.Error("failed to close decision logger", "error", err)
			}
		}()
	}

	store := state.NewStore(cfg.Symbol)
	if cfg.CheckpointPath != "" {
		if err := store.Load(cfg.CheckpointPath); err == nil {
			slog.Info("loaded checkpoint", "path", cfg.CheckpointPath, "is_open", store.Trade().IsOpen)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checkpoint: %w", err)
		}
	}

	brokerClient := broker.New(cfg.APIKey, cfg.APISecret, cfg.PaperBaseURL)
	logBrokerState(ctx, brokerClient, cfg.Symbol, store.Trade())

	orderType, err := broker.ParseOrderType(cfg.OrderType)
	if err != nil {
		return err
	}
	tif, err := broker.ParseTimeInForce(cfg.TimeInForce)
	if err != nil {
		return err
	}
	machine := engine.NewMachine(engine.MachineConfig{
		Symbol:      cfg.Symbol,
		Qty:         cfg.OrderQty,
		OrderType:   orderType,
		TimeInForce: tif,
		StopLoss:    cfg.StopLoss,
		Gate:        risk.Gate{KillSwitch: cfg.KillSwitch, MaxNotional: cfg.MaxNotional},
		RunID:       runID,
	}, brokerClient, store)

	data, err := md.NewAlpacaData(cfg.APIKey, cfg.APISecret, cfg.Feed, cfg.TimeFrame)
	if err != nil {
		return err
	}
	var live md.LiveProvider = data
	if cfg.LiveSource == config.SourceStream {
		feed := md.NewStreamFeed(cfg.APIKey, cfg.APISecret, cfg.Feed)
		if err := feed.Start(ctx, cfg.Symbol); err != nil {
			return err
		}
		live = feed
	}

	loop := engine.NewLoop(engine.LoopConfig{
		Symbol:         cfg.Symbol,
		Interval:       cfg.Interval,
		RetryDelay:     cfg.RetryDelay,
		HistoryBars:    cfg.HistoryBars,
		CheckpointPath: cfg.CheckpointPath,
	}, strat, live, machine, store, decisions)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -cfg.SeedDays)
	if err := loop.Seed(ctx, data, start, end); err != nil {
		return err
	}
	metrics.SetPosition(cfg.Symbol, store.Trade().IsOpen)

	slog.Info("starting live trading", "run_id", runID, "symbol", cfg.Symbol, "strategy", strat.Kind(), "source", cfg.LiveSource, "history", loop.HistoryLen())
	err = loop.Run(ctx)
	if cfg.CheckpointPath != "" {
		if saveErr := store.Save(cfg.CheckpointPath); saveErr != nil {
			slog.Error("failed to save checkpoint", "path", cfg.CheckpointPath, "error", saveErr)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logBrokerState reports account and position at startup. A broker position
// that disagrees with the checkpoint is only warned about.
func logBrokerState(ctx context.Context, client *broker.Client, symbol string, trade state.TradeState) {
	if acct, err := client.Account(ctx); err != nil {
		slog.Warn("failed to fetch account", "error", err)
	} else {
		slog.Info("account", "equity", acct.Equity.StringFixed(2), "buying_power", acct.BuyingPower.StringFixed(2))
	}
	pos, err := client.Position(ctx, symbol)
	if err != nil {
		slog.Warn("failed to fetch position", "symbol", symbol, "error", err)
		return
	}
	if pos.Qty.IsPositive() != trade.IsOpen {
		slog.Warn("broker position disagrees with local state", "symbol", symbol, "broker_qty", pos.Qty.String(), "is_open", trade.IsOpen)
	}
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return timestamp + "-" + uuid.NewString()[:8]
}
