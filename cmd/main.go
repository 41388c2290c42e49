package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/proxy-bench/internal/api"
	"github.com/proxy-bench/internal/bench"
	"github.com/proxy-bench/internal/config"
	"github.com/proxy-bench/internal/executor"
	"github.com/proxy-bench/internal/metrics"
	"github.com/proxy-bench/internal/progress"
	"github.com/proxy-bench/internal/proxy"
	"github.com/proxy-bench/internal/report"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const version = "1.0.0"

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageLine)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("proxy-bench v%s\n", version)
		return
	}

	cfg := opts.config
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	target, _ := cfg.Bench.TargetURL()

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsCollector := metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	proxies, err := proxy.Load(ctx, cfg.Proxies)
	if err != nil {
		log.Fatalf("Failed to load proxies: %v", err)
	}
	source := proxy.NewSource(proxies)
	if cfg.Proxies.Path != "" {
		metricsCollector.SetProxiesLoaded(source.Len())
	}

	exec := executor.New(cfg.Bench)
	defer exec.Close()

	reporter := progress.NewReporter(int64(cfg.Bench.Quantity), metricsCollector.SetProgress)

	var apiServer *api.Server
	if cfg.API.Addr != "" {
		apiServer = api.NewServer(cfg.API, cfg.Metrics, reporter, metricsCollector, prometheus.DefaultGatherer)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Errorf("Status API failed: %v", err)
			}
		}()
	}

	progressCtx, stopProgress := context.WithCancel(ctx)
	if !cfg.Bench.Trace {
		go reporter.Run(progressCtx, cfg.Bench.ProgressInterval())
	}

	runner := bench.NewRunner(bench.Options{
		Target:        target,
		Quantity:      cfg.Bench.Quantity,
		Concurrency:   cfg.Bench.Concurrency,
		Source:        source,
		Executor:      exec,
		Reporter:      reporter,
		Metrics:       metricsCollector,
		RatePerSecond: cfg.Bench.RatePerSecond,
		// Percentiles are only printed in verbose and JSON output.
		Percentiles:    cfg.Bench.Trace || cfg.Bench.OutputFormat == "json",
		LatencyCeiling: cfg.Bench.Timeout() + time.Second,
	})

	start := time.Now()
	result, runErr := runner.Run(ctx)
	wall := time.Since(start)
	stopProgress()

	err = report.Render(os.Stdout, result, report.Options{
		Format:   cfg.Bench.OutputFormat,
		Verbose:  cfg.Bench.Trace,
		Expected: int64(cfg.Bench.Quantity),
		Wall:     wall,
	})
	if err != nil {
		log.Errorf("Failed to write report: %v", err)
	}

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Status API shutdown error: %v", err)
		}
		cancel()
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warnf("Run interrupted after %d of %d requests", result.TotalCount, cfg.Bench.Quantity)
		} else {
			log.Errorf("Run failed: %v", runErr)
		}
		stop()
		exec.Close()
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	log.SetLevel(log.InfoLevel)
	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, using info", cfg.Logging.Level)
	}
	if cfg.Bench.Trace {
		log.SetLevel(log.DebugLevel)
	}

	if log.GetLevel() >= log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
}
