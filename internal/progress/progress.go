package progress

import (
	"context"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Observer is notified with the new counter value after every flush.
type Observer func(done, total int64)

// Reporter is the shared progress counter for a run.
type Reporter struct {
	mu       sync.Mutex
	done     int64
	total    int64
	observer Observer
}

func NewReporter(total int64, observer Observer) *Reporter {
	return &Reporter{total: total, observer: observer}
}

// Advance adds by to the counter.
func (r *Reporter) Advance(by int64) {
	if by <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.done += by
	if r.observer != nil {
		r.observer(r.done, r.total)
	}
}

// Snapshot returns the current and expected counts.
func (r *Reporter) Snapshot() (done, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done, r.total
}

// Threshold is the per-worker batch size: one flush per twentieth of a
// worker's share, capped at 10.
func Threshold(total, workers int) int {
	if workers < 1 {
		return 0
	}
	return min(10, total/(workers*20))
}

// Batch buffers one worker's increments. Not safe for concurrent use.
type Batch struct {
	reporter  *Reporter
	threshold int
	pending   int
}

func (r *Reporter) NewBatch(threshold int) *Batch {
	return &Batch{reporter: r, threshold: threshold}
}

// Add buffers n increments and flushes once more than threshold are pending.
func (b *Batch) Add(n int) {
	b.pending += n
	if b.pending > b.threshold {
		b.Flush()
	}
}

// Flush pushes any pending increments to the reporter.
func (b *Batch) Flush() {
	if b.pending == 0 {
		return
	}
	b.reporter.Advance(int64(b.pending))
	b.pending = 0
}

// Run logs progress every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			done, total := r.Snapshot()
			percent := 0.0
			if total > 0 {
				percent = float64(done) / float64(total) * 100.0
			}
			log.Infof("Progress: %d/%d (%.1f%%), goroutines=%d",
				done, total, percent, runtime.NumGoroutine())
		}
	}
}
