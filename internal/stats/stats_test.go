package stats

import (
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestRecorderTracksMinMaxTotal(t *testing.T) {
	r := NewRecorder()
	for _, d := range []time.Duration{ms(30), ms(10), ms(50), ms(20)} {
		r.Record("200", d)
	}
	r.Record("Failed", ms(2000))

	agg := r.Aggregate()
	ok := agg["200"]
	if ok.Count != 4 || ok.Total != ms(110) || ok.Min != ms(10) || ok.Max != ms(50) {
		t.Fatalf("unexpected 200 stats: %+v", *ok)
	}
	if ok.Average() != ms(27)+500*time.Microsecond {
		t.Errorf("average = %v", ok.Average())
	}

	failed := agg["Failed"]
	if failed.Count != 1 || failed.Min != ms(2000) || failed.Max != ms(2000) {
		t.Errorf("unexpected Failed stats: %+v", *failed)
	}
}

func TestRecorderZeroElapsed(t *testing.T) {
	r := NewRecorder()
	r.Record("200", 0)
	r.Record("200", ms(5))

	s := r.Aggregate()["200"]
	if s.Min != 0 || s.Max != ms(5) {
		t.Errorf("min/max = %v/%v, want 0/5ms", s.Min, s.Max)
	}
}

func TestMergeMixedOutcomes(t *testing.T) {
	w1 := NewRecorder()
	for i := 0; i < 4; i++ {
		w1.Record("200", ms(10+i))
	}
	w1.Record("404", ms(3))

	w2 := NewRecorder()
	for i := 0; i < 3; i++ {
		w2.Record("200", ms(20+i))
	}
	w2.Record("Failed", ms(2000))

	w3 := NewRecorder()
	w3.Record("404", ms(7))

	report := Merge(w1.Aggregate(), w2.Aggregate(), w3.Aggregate())

	want := map[string]int64{"200": 7, "404": 2, "Failed": 1}
	for key, count := range want {
		if got := report.PerKey[key].Count; got != count {
			t.Errorf("count(%s) = %d, want %d", key, got, count)
		}
	}
	if report.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", report.TotalCount)
	}
	if got := report.PerKey["200"]; got.Min != ms(10) || got.Max != ms(22) {
		t.Errorf("200 min/max = %v/%v", got.Min, got.Max)
	}
	if !reflect.DeepEqual(report.PerKey.Keys(), []string{"200", "404", "Failed"}) {
		t.Errorf("keys = %v", report.PerKey.Keys())
	}
}

func TestMergeIsPartitionIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]time.Duration, 500)
	var lo, hi, total time.Duration
	for i := range samples {
		samples[i] = time.Duration(rng.Intn(5000)+1) * time.Microsecond
		if i == 0 || samples[i] < lo {
			lo = samples[i]
		}
		if samples[i] > hi {
			hi = samples[i]
		}
		total += samples[i]
	}

	for _, parts := range []int{1, 2, 3, 7, 50} {
		recorders := make([]*Recorder, parts)
		for i := range recorders {
			recorders[i] = NewRecorder()
		}
		for _, d := range samples {
			recorders[rng.Intn(parts)].Record("200", d)
		}

		aggs := make([]Aggregate, parts)
		for i, r := range recorders {
			aggs[i] = r.Aggregate()
		}
		rng.Shuffle(len(aggs), func(i, j int) { aggs[i], aggs[j] = aggs[j], aggs[i] })

		incremental := NewMerger()
		for _, a := range aggs {
			incremental.Add(a)
		}
		batch := Merge(aggs...)

		for _, report := range []Report{incremental.Report(), batch} {
			s := report.PerKey["200"]
			if s.Count != int64(len(samples)) || s.Total != total || s.Min != lo || s.Max != hi {
				t.Fatalf("parts=%d: got %+v, want count=%d total=%v min=%v max=%v",
					parts, *s, len(samples), total, lo, hi)
			}
			if avg := s.Average(); avg < s.Min || avg > s.Max {
				t.Errorf("parts=%d: average %v outside [%v, %v]", parts, avg, s.Min, s.Max)
			}
		}
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	r := NewRecorder()
	r.Record("200", ms(5))
	agg := r.Aggregate()

	m := NewMerger()
	m.Add(agg)
	m.Add(agg)

	if agg["200"].Count != 1 {
		t.Errorf("input aggregate was mutated: count=%d", agg["200"].Count)
	}
	if got := m.Report().PerKey["200"].Count; got != 2 {
		t.Errorf("merged count = %d, want 2", got)
	}
}

func TestMergeEmpty(t *testing.T) {
	report := Merge()
	if report.TotalCount != 0 || report.TotalTime != 0 || len(report.PerKey) != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Average() != 0 {
		t.Errorf("average of empty report = %v", report.Average())
	}
}

func TestPercentilesSurviveMerge(t *testing.T) {
	a, b := NewLatencyRecorder(time.Second), NewLatencyRecorder(time.Second)
	for i := 1; i <= 50; i++ {
		a.Record("200", ms(i))
		b.Record("200", ms(50+i))
	}

	s := Merge(a.Aggregate(), b.Aggregate()).PerKey["200"]
	p50 := s.Percentile(50)
	if p50 < ms(49) || p50 > ms(51) {
		t.Errorf("p50 = %v, want ~50ms", p50)
	}
	if p99 := s.Percentile(99); p99 < ms(98) || p99 > ms(100)+ms(1) {
		t.Errorf("p99 = %v, want ~99ms", p99)
	}
}

func TestPlainRecorderKeepsNoHistogram(t *testing.T) {
	r := NewRecorder()
	r.Record("200", ms(5))

	s := Merge(r.Aggregate()).PerKey["200"]
	if s.hist != nil {
		t.Error("plain recorder allocated a histogram")
	}
	if p := s.Percentile(50); p != 0 {
		t.Errorf("p50 without histogram = %v, want 0", p)
	}
}

func TestHistogramSizeIsBounded(t *testing.T) {
	tests := []struct {
		ceiling time.Duration
		limit   int
	}{
		{3 * time.Second, 32 << 10},
		{10 * time.Minute, 64 << 10},
	}
	for _, tt := range tests {
		r := NewLatencyRecorder(tt.ceiling)
		r.Record("200", ms(10))
		r.Record("Failed", tt.ceiling)

		agg := r.Aggregate()
		for _, key := range agg.Keys() {
			if size := agg[key].hist.ByteSize(); size > tt.limit {
				t.Errorf("ceiling %v, key %s: histogram is %d bytes, want <= %d", tt.ceiling, key, size, tt.limit)
			}
		}

		merged := Merge(agg)
		if size := merged.PerKey["200"].hist.ByteSize(); size > tt.limit {
			t.Errorf("ceiling %v: merged histogram is %d bytes, want <= %d", tt.ceiling, size, tt.limit)
		}
	}
}

func TestLatencyAboveCeilingIsClamped(t *testing.T) {
	r := NewLatencyRecorder(100 * time.Millisecond)
	r.Record("Failed", 5*time.Second)

	s := r.Aggregate()["Failed"]
	if s.Max != 5*time.Second || s.Total != 5*time.Second {
		t.Errorf("exact stats changed by clamping: %+v", s)
	}
	if got := s.hist.TotalCount(); got != 1 {
		t.Fatalf("histogram count = %d, want 1", got)
	}
	if p := s.Percentile(100); p < 99*time.Millisecond || p > 101*time.Millisecond {
		t.Errorf("p100 = %v, want about the 100ms ceiling", p)
	}
}

func TestReportIsNotChangedByLaterAdds(t *testing.T) {
	r := NewLatencyRecorder(time.Second)
	r.Record("200", ms(5))
	agg := r.Aggregate()

	m := NewMerger()
	m.Add(agg)
	first := m.Report()

	m.Add(agg)
	m.Add(Aggregate{"404": agg["200"]})

	if first.TotalCount != 1 || len(first.PerKey) != 1 || first.PerKey["200"].Count != 1 {
		t.Errorf("earlier report changed: total=%d keys=%v", first.TotalCount, first.PerKey.Keys())
	}
	if got := first.PerKey["200"].hist.TotalCount(); got != 1 {
		t.Errorf("earlier report histogram count = %d, want 1", got)
	}
	if second := m.Report(); second.TotalCount != 3 || second.PerKey["200"].Count != 2 {
		t.Errorf("later report = total %d, 200 count %d", second.TotalCount, second.PerKey["200"].Count)
	}
}
