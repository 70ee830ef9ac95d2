// Package main provides the entry point for the live trading loop: loads
// configuration, starts the API/dashboard adapter paused, and drives the
// wall-clock loop until a shutdown signal arrives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juanpimr2/intraday-engine/internal/api"
	"github.com/juanpimr2/intraday-engine/internal/config"
	"github.com/juanpimr2/intraday-engine/internal/liveloop"
	"github.com/juanpimr2/intraday-engine/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to a live-loop config file")
	dataDir := flag.String("data", "./data", "Seed bar data directory, used by the stand-in broker feed")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	host := flag.String("host", "0.0.0.0", "API server bind host")
	port := flag.Int("port", 8080, "API server bind port")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

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
		logger.Info("Shutdown signal received, stopping live loop")
		cancel()
	}()

	source := newSeededLiveSource(*dataDir)
	loop := liveloop.NewLoop(cfg, source, nil, liveloop.DefaultTradingHours(), cfg.InitialCapital)

	serverConfig := &types.ServerConfig{
		Host:          *host,
		Port:          *port,
		WebSocketPath: "/ws",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		EnableMetrics: true,
	}
	server := api.NewServer(logger, serverConfig, newBacktestBarSource(source), loop)
	loop.SetSink(api.NewBroadcastSink(server))

	go func() {
		if err := server.Start(); err != nil {
			logger.Warn("API server stopped", zap.Error(err))
		}
	}()

	logger.Info("Live loop starting, bot is paused until /api/v1/bot/start",
		zap.Strings("epics", cfg.Universe.Epics),
		zap.Duration("scanInterval", cfg.Universe.ScanInterval),
	)

	loop.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("API server shutdown error", zap.Error(err))
	}
	logger.Info("Live loop stopped")
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

// seededLiveSource replays a fixed seed file's trailing bars as "latest"
// on every call, standing in for the broker's fetch_latest feed. This
// setup has no paired AccountSource/OrderRouter broker client, so
// loop.SetAccountSource/SetOrderRouter are left uncalled and the loop
// fills and reconciles cash locally, same as a backtest run.
type seededLiveSource struct {
	dataDir string
}

func newSeededLiveSource(dataDir string) *seededLiveSource {
	return &seededLiveSource{dataDir: dataDir}
}

func (s *seededLiveSource) FetchLatest(epic string, resolution string) ([]types.Bar, error) {
	path := s.dataDir + "/" + epic + ".json"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bars []types.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, err
	}
	const tailWindow = 200
	if len(bars) > tailWindow {
		bars = bars[len(bars)-tailWindow:]
	}
	return bars, nil
}

// backtestBarSource adapts seededLiveSource to simulation.BarSource so
// the same API server can also accept on-demand backtest runs against
// the seed data.
type backtestBarSource struct {
	source *seededLiveSource
}

func newBacktestBarSource(source *seededLiveSource) *backtestBarSource {
	return &backtestBarSource{source: source}
}

func (b *backtestBarSource) Fetch(epic string, resolution string, maxPoints int) ([]types.Bar, error) {
	bars, err := b.source.FetchLatest(epic, resolution)
	if err != nil {
		return nil, err
	}
	if maxPoints > 0 && len(bars) > maxPoints {
		bars = bars[len(bars)-maxPoints:]
	}
	return bars, nil
}
