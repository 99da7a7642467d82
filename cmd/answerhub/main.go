// AnswerHub Engine Server
//
// Standalone question-answering engine exposing a gRPC health surface
// and a Prometheus metrics endpoint. Documents are loaded from a JSON
// corpus file at startup.
//
// Usage:
//
//	go run ./cmd/answerhub                          # Default :50051
//	go run ./cmd/answerhub -grpc-addr :8080         # Custom port
//	go run ./cmd/answerhub -corpus docs.json -query "what is kubernetes"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeeves-cluster-organization/answerhub/agentcomm"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/backends"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/config"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
	grpcserver "github.com/jeeves-cluster-organization/answerhub/coreengine/grpc"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/observability"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/pipeline"
)

// stdLogger implements agentcomm.Logger using standard library log.
type stdLogger struct {
	fields []any
}

func (l *stdLogger) log(level, msg string, keysAndValues []any) {
	if len(l.fields) > 0 {
		keysAndValues = append(append([]any{}, l.fields...), keysAndValues...)
	}
	log.Printf("[%s] %s %v", level, msg, keysAndValues)
}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	l.log("DEBUG", msg, keysAndValues)
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	l.log("INFO", msg, keysAndValues)
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	l.log("WARN", msg, keysAndValues)
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	l.log("ERROR", msg, keysAndValues)
}

func (l *stdLogger) Bind(fields ...any) agentcomm.Logger {
	bound := append(append([]any{}, l.fields...), fields...)
	return &stdLogger{fields: bound}
}

func loadCorpus(path string) ([]envelope.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var docs []envelope.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	return docs, nil
}

func main() {
	// Parse command-line flags
	grpcAddr := flag.String("grpc-addr", "", "gRPC health server address (overrides ANSWERHUB_GRPC_ADDR)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics address (overrides ANSWERHUB_METRICS_ADDR)")
	corpusPath := flag.String("corpus", "", "Path to JSON document corpus")
	query := flag.String("query", "", "Run a single query and exit")
	otlpEndpoint := flag.String("otlp-endpoint", os.Getenv("ANSWERHUB_OTLP_ENDPOINT"), "OTLP trace collector endpoint (empty disables export)")
	flag.Parse()

	logger := &stdLogger{}

	cfg := config.FromEnv()
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Info("answerhub_starting", "version", "1.0.0", "grpc_addr", cfg.GRPCAddr, "metrics_addr", cfg.MetricsAddr)

	// Trace export stays disabled unless an OTLP endpoint is configured.
	shutdownTracer := func(context.Context) error { return nil }
	if *otlpEndpoint != "" {
		shutdown, err := observability.InitTracer("answerhub", *otlpEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		shutdownTracer = shutdown
		logger.Info("tracing_enabled", "endpoint", *otlpEndpoint)
	}

	var docs []envelope.Document
	if *corpusPath != "" {
		loaded, err := loadCorpus(*corpusPath)
		if err != nil {
			log.Fatalf("Failed to load corpus: %v", err)
		}
		docs = loaded
		logger.Info("corpus_loaded", "path", *corpusPath, "documents", len(docs))
	}

	controller, err := pipeline.NewController(cfg, pipeline.Backends{
		Analyzer:    backends.NewHeuristicAnalyzer(),
		Searcher:    backends.NewMemorySearcher(docs),
		Generator:   backends.NewTemplateSynthesizer(),
		Categorizer: backends.NewKeywordCategorizer(),
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	controller.Start()
	logger.Info("controller_started", "workers", len(envelope.WorkerRoles()))

	// One-shot mode: run the query, print the result, exit.
	if *query != "" {
		result, err := controller.Process(context.Background(), *query)
		if err != nil {
			controller.Stop()
			log.Fatalf("Query failed: %v", err)
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		controller.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
		return
	}

	healthServer := grpcserver.NewHealthServer(logger)
	monitor := pipeline.NewHealthMonitor(controller, cfg.HealthPollPeriod(), logger)
	monitor.OnServingChange(healthServer.SetServing)
	if err := healthServer.Start(cfg.GRPCAddr); err != nil {
		log.Fatalf("Failed to start gRPC server: %v", err)
	}
	healthServer.SetOverall(true)
	monitor.Start()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("answerhub_ready", "grpc_addr", healthServer.Addr(), "metrics_addr", cfg.MetricsAddr)
	fmt.Printf("\nAnswerHub Engine running on %s (metrics on %s)\n", healthServer.Addr(), cfg.MetricsAddr)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	// Graceful shutdown: stop health reporting first, then the servers,
	// then the workers.
	monitor.Stop()
	healthServer.SetOverall(false)
	healthServer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	controller.Stop()
	_ = shutdownTracer(shutdownCtx)
	logger.Info("answerhub_stopped")
}
