package stats

import (
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram precision. Two significant figures keep p50/p90/p99 within 1%.
const (
	histMinMicros = 1
	histSigFigs   = 2
)

// OutcomeStats is the running summary for one outcome key. The latency
// histogram is present only when the recorder was built with a ceiling.
type OutcomeStats struct {
	Count int64
	Total time.Duration
	Max   time.Duration
	Min   time.Duration

	hist *hdrhistogram.Histogram
}

// newOutcomeStats returns a summary with a histogram bounded by ceiling, or
// without one when ceiling is zero.
func newOutcomeStats(ceiling time.Duration) *OutcomeStats {
	if ceiling <= 0 {
		return &OutcomeStats{}
	}
	maxMicros := max(ceiling.Microseconds(), 2*histMinMicros)
	return &OutcomeStats{hist: hdrhistogram.New(histMinMicros, maxMicros, histSigFigs)}
}

func (s *OutcomeStats) observe(elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}

	s.Count++
	s.Total += elapsed
	if elapsed > s.Max {
		s.Max = elapsed
	}
	if s.Count == 1 || elapsed < s.Min {
		s.Min = elapsed
	}

	if s.hist == nil {
		return
	}
	us := elapsed.Microseconds()
	if us < histMinMicros {
		us = histMinMicros
	}
	if highest := s.hist.HighestTrackableValue(); us > highest {
		us = highest
	}
	// Values are clamped into the trackable range, so RecordValue cannot fail.
	_ = s.hist.RecordValue(us)
}

// combine folds other into s.
func (s *OutcomeStats) combine(other *OutcomeStats) {
	if other.Count == 0 {
		return
	}

	if s.Count == 0 || other.Min < s.Min {
		s.Min = other.Min
	}
	if other.Max > s.Max {
		s.Max = other.Max
	}
	s.Count += other.Count
	s.Total += other.Total

	if other.hist != nil {
		if s.hist == nil {
			s.hist = emptyLike(other.hist)
		}
		s.hist.Merge(other.hist)
	}
}

func (s *OutcomeStats) clone() *OutcomeStats {
	c := *s
	if s.hist != nil {
		c.hist = emptyLike(s.hist)
		c.hist.Merge(s.hist)
	}
	return &c
}

func emptyLike(h *hdrhistogram.Histogram) *hdrhistogram.Histogram {
	return hdrhistogram.New(h.LowestTrackableValue(), h.HighestTrackableValue(), int(h.SignificantFigures()))
}

// Average returns Total/Count, or zero for an empty summary.
func (s *OutcomeStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Percentile returns the latency at quantile q (0-100) from the recorded
// samples, or zero when no histogram was kept.
func (s *OutcomeStats) Percentile(q float64) time.Duration {
	if s.hist == nil || s.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(s.hist.ValueAtQuantile(q)) * time.Microsecond
}

// Aggregate maps outcome keys to their summaries.
type Aggregate map[string]*OutcomeStats

// Keys returns the keys in lexicographic order.
func (a Aggregate) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Recorder accumulates the outcomes of a single worker. It is not safe for
// concurrent use; each worker owns exactly one.
type Recorder struct {
	agg     Aggregate
	ceiling time.Duration
}

// NewRecorder keeps count, total, min and max per key.
func NewRecorder() *Recorder {
	return &Recorder{agg: make(Aggregate)}
}

// NewLatencyRecorder also keeps a percentile histogram per key. Samples above
// ceiling are recorded as ceiling; pass the request timeout plus some slack.
func NewLatencyRecorder(ceiling time.Duration) *Recorder {
	return &Recorder{agg: make(Aggregate), ceiling: ceiling}
}

// Record adds one timed outcome under key.
func (r *Recorder) Record(key string, elapsed time.Duration) {
	s, ok := r.agg[key]
	if !ok {
		s = newOutcomeStats(r.ceiling)
		r.agg[key] = s
	}
	s.observe(elapsed)
}

// Aggregate hands the accumulated summaries off. The recorder must not be
// used afterwards.
func (r *Recorder) Aggregate() Aggregate {
	agg := r.agg
	r.agg = nil
	return agg
}
