package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workout-recommender/internal/cfg"
	"workout-recommender/internal/metrics"
	"workout-recommender/internal/ml"
	"workout-recommender/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: recommender <command> [flags]

commands:
  train       train a model from a data source and publish it
  predict     recommend workout plans for one or more profiles
  importance  print feature importance of the current model
  versions    list registered model versions
  rollback    reactivate the previous model version
  runs        list recorded training runs
  export      export stored examples to CSV
`

type command func(ctx context.Context, c cfg.Settings, m *metrics.Metrics, args []string) error

var commands = map[string]command{
	"train":      runTrain,
	"predict":    runPredict,
	"importance": runImportance,
	"versions":   runVersions,
	"rollback":   runRollback,
	"runs":       runRuns,
	"export":     runExport,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	m := metrics.New()
	if c.MetricsPort > 0 {
		startMetricsServer(ctx, c)
	}

	err = cmd(ctx, c, m, os.Args[2:])
	stop()
	if err != nil {
		m.ErrorsTotal.Inc()
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(exitCode(err))
	}
}

// Exit codes: 1 for failures of the engine or its inputs and outputs,
// 3 when a profile or example was rejected.
const (
	exitFailure      = 1
	exitInvalidInput = 3
)

func exitCode(err error) int {
	if ml.IsValidationError(err) {
		return exitInvalidInput
	}
	return exitFailure
}

func setupLogging(c cfg.Settings) {
	zerolog.SetGlobalLevel(c.Level())
	zerolog.TimeFieldFormat = time.RFC3339
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// startMetricsServer serves /metrics and /health until ctx is done.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Int("port", c.MetricsPort).Msg("metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// openStore opens the bbolt store under DATA_PATH, creating the directory.
func openStore(c cfg.Settings) (*storage.Store, error) {
	if c.DataPath == "" {
		return nil, fmt.Errorf("DATA_PATH is not set")
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}
	return storage.New(c.DataPath)
}
