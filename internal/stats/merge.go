package stats

import "time"

// Report is the merged result of a run.
type Report struct {
	PerKey     Aggregate
	TotalTime  time.Duration
	TotalCount int64
}

// Average returns the mean time over every recorded outcome.
func (r Report) Average() time.Duration {
	if r.TotalCount == 0 {
		return 0
	}
	return r.TotalTime / time.Duration(r.TotalCount)
}

// Merger folds worker aggregates into a Report. Inputs are copied, never
// aliased, so Add may be called as workers finish or all at once.
type Merger struct {
	report Report
}

func NewMerger() *Merger {
	return &Merger{report: Report{PerKey: make(Aggregate)}}
}

// Add folds one aggregate into the running report.
func (m *Merger) Add(agg Aggregate) {
	for key, s := range agg {
		if existing, ok := m.report.PerKey[key]; ok {
			existing.combine(s)
		} else {
			m.report.PerKey[key] = s.clone()
		}
		m.report.TotalTime += s.Total
		m.report.TotalCount += s.Count
	}
}

// Report returns a copy of the merged report; later Adds do not change it.
func (m *Merger) Report() Report {
	r := m.report
	r.PerKey = make(Aggregate, len(m.report.PerKey))
	for key, s := range m.report.PerKey {
		r.PerKey[key] = s.clone()
	}
	return r
}

// Merge combines aggregates in one pass.
func Merge(aggs ...Aggregate) Report {
	m := NewMerger()
	for _, agg := range aggs {
		m.Add(agg)
	}
	return m.Report()
}
