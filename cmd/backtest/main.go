// Package main provides the entry point for running one backtest from the
// command line: loads configuration, runs the simulation loop, and
// prints the resulting BacktestResult as JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/juanpimr2/intraday-engine/internal/config"
	"github.com/juanpimr2/intraday-engine/internal/simulation"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/juanpimr2/intraday-engine/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to a backtest config file")
	dataDir := flag.String("data", "./data", "Historical bar data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	logger.Info("Starting backtest run",
		zap.String("config", *configPath),
		zap.String("dataDir", *dataDir),
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling run")
		cancel()
	}()

	source := newFileBarSource(*dataDir)
	runner := simulation.NewRunner(cfg, source, simulation.NoopSink{})

	resultCh := make(chan types.BacktestResult, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := runner.Run()
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	select {
	case <-ctx.Done():
		logger.Warn("Backtest cancelled before completion")
		os.Exit(1)
	case err := <-errCh:
		logger.Fatal("Backtest run failed", zap.Error(err))
	case result := <-resultCh:
		for _, d := range runner.Diagnostics() {
			logger.Warn("Per-epic diagnostic", zap.String("epic", d.Epic), zap.Error(d.Err))
		}
		logger.Info("Backtest completed",
			zap.String("id", result.ID),
			zap.Int("trades", result.Trades.TotalTrades),
			zap.String("totalReturnPct", result.Capital.TotalReturnPercent.String()),
			zap.String("finalEquity", utils.FormatMoney(result.Capital.Final, "EUR")),
		)
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			logger.Error("Failed to encode result", zap.Error(err))
		}
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// fileBarSource reads per-epic bar series from <dataDir>/<epic>.json, each
// a JSON array of types.Bar. A thin stand-in for the broker/store
// collaborator spec §6 leaves external to the core.
type fileBarSource struct {
	dataDir string
}

func newFileBarSource(dataDir string) *fileBarSource {
	return &fileBarSource{dataDir: dataDir}
}

func (f *fileBarSource) Fetch(epic string, resolution string, maxPoints int) ([]types.Bar, error) {
	path := f.dataDir + "/" + epic + ".json"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bars []types.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, err
	}
	if maxPoints > 0 && len(bars) > maxPoints {
		bars = bars[len(bars)-maxPoints:]
	}
	return bars, nil
}
