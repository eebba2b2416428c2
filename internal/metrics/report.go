package metrics

import "time"

// Outcome is what a successful iteration produced.
type Outcome struct {
	Bytes uint64 // payload bytes moved by the iteration
	Items uint64 // rows (or other units) processed by the iteration
}

// IterationReport describes one finished iteration. It is created by the
// worker that ran the iteration and handed to the Collector by value.
type IterationReport struct {
	Worker    int
	Seq       uint64 // per-worker sequence number, starting at 1
	StartedAt time.Time
	Duration  time.Duration
	Bytes     uint64
	Items     uint64
	Err       error
	Warmup    bool
}

// NewIterationReport folds an outcome and its error into a report. A failed
// iteration never carries bytes or items.
func NewIterationReport(worker int, seq uint64, startedAt time.Time, duration time.Duration, outcome Outcome, err error, warmup bool) IterationReport {
	r := IterationReport{
		Worker:    worker,
		Seq:       seq,
		StartedAt: startedAt,
		Duration:  duration,
		Err:       err,
		Warmup:    warmup,
	}
	if err == nil {
		r.Bytes = outcome.Bytes
		r.Items = outcome.Items
	}
	return r
}

// Success reports whether the iteration completed without error.
func (r IterationReport) Success() bool {
	return r.Err == nil
}
