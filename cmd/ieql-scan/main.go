// Command ieql-scan is a minimal driver program: it loads a group of
// compiled queries and a stream of documents, runs them through the
// scanner driver, and prints emitted responses as JSON lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ieql/engine/internal/common/config"
	"github.com/ieql/engine/internal/logging"
	"github.com/ieql/engine/internal/metrics"
	"github.com/ieql/engine/internal/scan"
	"github.com/ieql/engine/pkg/fusion"
)

func main() {
	configPath := flag.String("c", "configs/example/ieql-scan.yaml", "path to ieql-scan configuration file")
	queriesPath := flag.String("queries", "", "path to a JSON file containing the query group")
	documentsPath := flag.String("documents", "", "path to a JSON-lines file of documents, or '-' for stdin")
	flag.Parse()

	bootLogger := logging.Bootstrap()
	bootLogger.Info("starting ieql-scan", zap.String("config_path", *configPath))

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	scanLogger, err := logging.New(cfg.Log)
	if err != nil {
		bootLogger.Fatal("failed to create configured logger", zap.Error(err))
	}
	defer scanLogger.Sync()
	zapLogger := scanLogger.Logger

	queriesData, err := os.ReadFile(*queriesPath)
	if err != nil {
		zapLogger.Fatal("failed to read queries file", zap.Error(err))
	}
	queries, err := LoadQueries(queriesData)
	if err != nil {
		zapLogger.Fatal("failed to load queries", zap.Error(err))
	}
	zapLogger.Info("loaded queries", zap.Int("count", len(queries)))

	compiled := make([]fusion.CompilingQuery, 0, len(queries))
	for i := range queries {
		cq, err := fusion.CompileSingle(&queries[i])
		if err != nil {
			zapLogger.Fatal("failed to compile query", zap.String("query_id", queries[i].ID), zap.Error(err))
		}
		compiled = append(compiled, cq)
	}

	group, err := fusion.Build(compiled)
	if err != nil {
		zapLogger.Fatal("failed to build compiled query group", zap.Error(err))
	}
	defer group.Close()

	scanMetrics := metrics.NewScanMetrics(cfg.Metrics.Namespace, zapLogger)
	metricsServer, err := scanMetrics.StartServer(cfg.Metrics, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to start metrics server", zap.Error(err))
	}

	driverConfig := scan.Config{
		WorkerCount:              cfg.Group.WorkerCount,
		InputQueueCapacity:       cfg.Group.InputQueueCapacity,
		OutputQueueCapacity:      cfg.Group.OutputQueueCapacity,
		ExcerptWindowBytes:       cfg.Group.ExcerptWindowBytes,
		AllowPartialTextFallback: *cfg.Group.AllowPartialTextFallback,
	}
	if cfg.Group.DocumentTimeout != nil {
		driverConfig.DocumentTimeout = cfg.Group.DocumentTimeout.ToDuration()
	}

	driver := scan.New(group, driverConfig, scanMetrics, zapLogger)
	driver.Start()

	scanLogger.ApplyConfiguredLevel()

	documentsSource := os.Stdin
	if *documentsPath != "" && *documentsPath != "-" {
		f, err := os.Open(*documentsPath)
		if err != nil {
			zapLogger.Fatal("failed to open documents file", zap.Error(err))
		}
		defer f.Close()
		documentsSource = f
	}
	docScanner := NewDocumentScanner(documentsSource)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	submitDone := make(chan struct{})
	go func() {
		defer close(submitDone)
		for {
			doc, err := docScanner.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				zapLogger.Error("failed to read document", zap.Error(err))
				return
			}
			if err := driver.Submit(doc); err != nil {
				zapLogger.Warn("stopped submitting documents", zap.Error(err))
				return
			}
		}
	}()

	encoder := json.NewEncoder(os.Stdout)
	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		for r := range driver.Results() {
			if err := encoder.Encode(toWireResponse(r)); err != nil {
				zapLogger.Error("failed to encode response", zap.Error(err))
			}
		}
	}()

	select {
	case <-submitDone:
		zapLogger.Info("all documents submitted")
	case <-quit:
		zapLogger.Info("received shutdown signal")
	}

	scanLogger.RaiseForShutdown()
	zapLogger.Info("shutting down ieql-scan")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := driver.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("driver shutdown did not complete cleanly", zap.Error(err))
	}
	<-resultsDone

	if metricsServer != nil {
		metricsShutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := metricsServer.ShutdownWithContext(metricsShutdownCtx); err != nil {
			zapLogger.Error("failed to shut down metrics server", zap.Error(err))
		}
	}

	zapLogger.Info("ieql-scan stopped")
}
