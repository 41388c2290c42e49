package bench

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/proxy-bench/internal/executor"
	"github.com/proxy-bench/internal/metrics"
	"github.com/proxy-bench/internal/plan"
	"github.com/proxy-bench/internal/progress"
	"github.com/proxy-bench/internal/proxy"
	"github.com/proxy-bench/internal/stats"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Executor performs one timed attempt.
type Executor interface {
	Execute(ctx context.Context, target *url.URL, p proxy.Descriptor) executor.Outcome
}

// Runner drives a fixed number of attempts across a pool of workers.
type Runner struct {
	target      *url.URL
	quantity    int
	concurrency int

	source   *proxy.Source
	executor Executor
	reporter *progress.Reporter
	metrics  *metrics.Collector
	limiter  *rate.Limiter

	// Zero keeps no latency histograms.
	latencyCeiling time.Duration
}

// Options configures a Runner. Reporter, Metrics, RatePerSecond and
// Percentiles are optional. LatencyCeiling bounds the percentile histograms
// and defaults to a minute.
type Options struct {
	Target        *url.URL
	Quantity      int
	Concurrency   int
	Source        *proxy.Source
	Executor      Executor
	Reporter      *progress.Reporter
	Metrics       *metrics.Collector
	RatePerSecond float64

	Percentiles    bool
	LatencyCeiling time.Duration
}

const defaultLatencyCeiling = time.Minute

func NewRunner(opts Options) *Runner {
	r := &Runner{
		target:      opts.Target,
		quantity:    opts.Quantity,
		concurrency: opts.Concurrency,
		source:      opts.Source,
		executor:    opts.Executor,
		reporter:    opts.Reporter,
		metrics:     opts.Metrics,
	}
	if r.source == nil {
		r.source = proxy.NewSource(nil)
	}
	if r.reporter == nil {
		r.reporter = progress.NewReporter(int64(opts.Quantity), nil)
	}
	if opts.Percentiles {
		r.latencyCeiling = opts.LatencyCeiling
		if r.latencyCeiling <= 0 {
			r.latencyCeiling = defaultLatencyCeiling
		}
	}
	if opts.RatePerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return r
}

// Reporter returns the progress counter shared by the workers.
func (r *Runner) Reporter() *progress.Reporter {
	return r.reporter
}

// Run executes the plan and returns the merged report. When ctx is canceled
// workers stop before their next attempt and Run returns the partial report
// together with ctx.Err().
func (r *Runner) Run(ctx context.Context) (stats.Report, error) {
	if r.target == nil || r.executor == nil {
		return stats.Report{}, fmt.Errorf("run benchmark: target and executor are required")
	}

	quotas, err := plan.Split(r.quantity, r.concurrency)
	if err != nil {
		return stats.Report{}, fmt.Errorf("run benchmark: %w", err)
	}
	threshold := progress.Threshold(r.quantity, r.concurrency)

	log.Infof("Starting %d requests to %s with %d workers (%d proxies)",
		r.quantity, r.target.Redacted(), r.concurrency, r.source.Len())

	start := time.Now()
	results := make(chan stats.Aggregate, len(quotas))

	var wg sync.WaitGroup
	for i, quota := range quotas {
		wg.Add(1)
		go func(id, quota int) {
			defer wg.Done()
			results <- r.work(ctx, id, quota, threshold)
		}(i, quota)
	}

	wg.Wait()
	close(results)

	merger := stats.NewMerger()
	for agg := range results {
		merger.Add(agg)
	}
	report := merger.Report()

	log.Infof("Finished %d requests in %v", report.TotalCount, time.Since(start))

	return report, ctx.Err()
}

func (r *Runner) work(ctx context.Context, id, quota, threshold int) stats.Aggregate {
	if r.metrics != nil {
		r.metrics.WorkerStarted()
		defer r.metrics.WorkerFinished()
	}

	recorder := stats.NewRecorder()
	if r.latencyCeiling > 0 {
		recorder = stats.NewLatencyRecorder(r.latencyCeiling)
	}
	batch := r.reporter.NewBatch(threshold)
	defer batch.Flush()

	for i := 0; i < quota; i++ {
		if ctx.Err() != nil {
			log.Debugf("Worker %d stopped after %d of %d requests", id, i, quota)
			break
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				break
			}
		}

		out := r.executor.Execute(ctx, r.target, r.source.Pick())
		recorder.Record(out.Key, out.Elapsed)

		if r.metrics != nil {
			r.metrics.RecordRequest(out.Key, out.Elapsed.Seconds())
			if out.Failed() {
				r.metrics.RecordFailure(out.Reason)
			}
		}

		batch.Add(1)
	}

	return recorder.Aggregate()
}
