package feeder

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Record represents a single row of data with named fields.
type Record map[string]string

// Feeder provides per-iteration row data from a dataset with deterministic
// round-robin selection. Implementations must be safe for concurrent use.
type Feeder interface {
	// Next returns the next record, wrapping to the first record once the
	// dataset has been consumed.
	Next(ctx context.Context) (Record, error)

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of records in the dataset.
	Len() int
}

// New opens the dataset at path using the named format ("csv" or "json").
func New(path, format string) (Feeder, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return NewCSVFeeder(path)
	case "json":
		return NewJSONFeeder(path)
	default:
		return nil, fmt.Errorf("unsupported feeder type %q", format)
	}
}

// roundRobin hands out records in order and rewinds at the end.
type roundRobin struct {
	records []Record
	index   int
	mu      sync.Mutex
}

func (r *roundRobin) Next(ctx context.Context) (Record, error) {
	// Check context cancellation first
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record := r.records[r.index]
	r.index = (r.index + 1) % len(r.records)
	return record, nil
}

// Close releases resources. Records are held in memory, so this is a no-op.
func (r *roundRobin) Close() error {
	return nil
}

// Len returns the total number of records in the dataset.
func (r *roundRobin) Len() int {
	return len(r.records)
}
