package engine

import (
	"fmt"
	"sync"

	tdigest "github.com/caio/go-tdigest/v4"
)

// sizeRatioSketch accumulates per-file output/input size ratios in a
// t-digest so the batch summary can report quantiles without keeping
// every sample.
type sizeRatioSketch struct {
	mu sync.Mutex
	td *tdigest.TDigest
}

func newSizeRatioSketch() (*sizeRatioSketch, error) {
	td, err := tdigest.New()
	if err != nil {
		return nil, fmt.Errorf("tdigest.New failed: %w", err)
	}
	return &sizeRatioSketch{td: td}, nil
}

func (s *sizeRatioSketch) Add(ratio float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// AddWeighted only fails on NaN weight or value; callers feed
	// finite ratios.
	_ = s.td.AddWeighted(ratio, 1)
}

// Snapshot folds the sketch into the fixed quantiles the batch summary
// carries.
func (s *sizeRatioSketch) Snapshot() SizeRatioStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.td.Count() == 0 {
		return SizeRatioStats{}
	}
	return SizeRatioStats{
		Count:  s.td.Count(),
		Median: s.td.Quantile(0.5),
		P90:    s.td.Quantile(0.9),
	}
}

// SizeRatioStats summarizes the output/input size ratios of the
// succeeded files. A median of 0.4 means the typical file shrank to
// 40% of its original size.
type SizeRatioStats struct {
	Count  uint64
	Median float64
	P90    float64
}
