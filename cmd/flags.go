package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/proxy-bench/internal/config"
	"github.com/spf13/pflag"
)

const usageLine = "Usage: proxy-bench [flags] URL QUANTITY CONCURRENCY [PROXY_LIST]"

type options struct {
	config      *config.Config
	showVersion bool
}

// parseArgs builds the run configuration: the optional JSON file first,
// then flags, then positional arguments. The result is not validated.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := pflag.NewFlagSet("proxy-bench", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usageLine)
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	configPath := fs.StringP("config", "c", "", "JSON config file")
	timeoutMs := fs.Int("timeout-ms", 0, "per-request timeout in milliseconds (default 2000)")
	insecure := fs.BoolP("insecure", "k", false, "skip TLS certificate verification")
	trace := fs.BoolP("trace", "v", false, "log every request and print the verbose report")
	ratePerSecond := fs.Float64("rate", 0, "global request rate limit per second (0 = unlimited)")
	keepAlive := fs.Bool("keepalive", false, "reuse connections between requests")
	format := fs.StringP("format", "f", "", "report format: text or json")
	listen := fs.String("listen", "", "address of the live status API, e.g. :8080")
	store := fs.String("proxy-store", "", "proxy source: list, json, sqlite or redis")
	prefilter := fs.Bool("prefilter", false, "drop proxies that refuse a TCP connect before the run")
	logLevel := fs.String("log-level", "", "log level (default info)")
	logFormat := fs.String("log-format", "", "log format: text or json")
	metricsOn := fs.Bool("metrics", false, "expose Prometheus metrics on the status API")
	showVersion := fs.Bool("version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if fs.Changed("timeout-ms") {
		cfg.Bench.TimeoutMs = *timeoutMs
	}
	if fs.Changed("insecure") {
		cfg.Bench.InsecureSkipVerify = *insecure
	}
	if fs.Changed("trace") {
		cfg.Bench.Trace = *trace
	}
	if fs.Changed("rate") {
		cfg.Bench.RatePerSecond = *ratePerSecond
	}
	if fs.Changed("keepalive") {
		cfg.Bench.KeepAlive = *keepAlive
	}
	if fs.Changed("format") {
		cfg.Bench.OutputFormat = *format
	}
	if fs.Changed("listen") {
		cfg.API.Addr = *listen
	}
	if fs.Changed("proxy-store") {
		cfg.Proxies.Store = *store
	}
	if fs.Changed("prefilter") {
		cfg.Proxies.Prefilter = *prefilter
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = *logLevel
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = *logFormat
	}
	if fs.Changed("metrics") {
		cfg.Metrics.Enabled = *metricsOn
	}

	if err := applyPositional(cfg, fs.Args()); err != nil {
		return nil, err
	}

	return &options{config: cfg, showVersion: *showVersion}, nil
}

func applyPositional(cfg *config.Config, args []string) error {
	switch len(args) {
	case 0:
		// Everything comes from the config file.
		return nil
	case 3, 4:
	default:
		return fmt.Errorf("expected URL QUANTITY CONCURRENCY [PROXY_LIST], got %d arguments", len(args))
	}

	quantity, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("parse quantity %q: %w", args[1], err)
	}
	concurrency, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("parse concurrency %q: %w", args[2], err)
	}

	cfg.Bench.Target = args[0]
	cfg.Bench.Quantity = quantity
	cfg.Bench.Concurrency = concurrency
	if len(args) == 4 {
		cfg.Proxies.Path = args[3]
	}
	return nil
}
