// Package worker provides background job processing for Airwaycast.
package worker

import (
	"time"
)

// PrecomputeConfig holds configuration for the prediction precompute job.
type PrecomputeConfig struct {
	// Concurrency is the number of batches scored in parallel.
	// Default: 4
	Concurrency int

	// BatchSize is the number of users per pipeline run.
	// Default: 25
	BatchSize int

	// Days is the forecast window length.
	// Default: 7
	Days int

	// Timeout bounds each batch.
	// Default: 2 minutes
	Timeout time.Duration

	// BackfillDays is how many past days the environment backfill covers.
	// Default: 14
	BackfillDays int
}

// DefaultPrecomputeConfig returns the default precompute configuration.
func DefaultPrecomputeConfig() PrecomputeConfig {
	return PrecomputeConfig{
		Concurrency:  4,
		BatchSize:    25,
		Days:         7,
		Timeout:      2 * time.Minute,
		BackfillDays: 14,
	}
}

func (c PrecomputeConfig) withDefaults() PrecomputeConfig {
	d := DefaultPrecomputeConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Days <= 0 {
		c.Days = d.Days
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.BackfillDays <= 0 {
		c.BackfillDays = d.BackfillDays
	}
	return c
}

// Batches splits ids into consecutive groups of at most size.
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
