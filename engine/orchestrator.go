package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/INLOpen/regionpress/core"
)

// Job is one input region file, as supplied by the external directory
// enumeration.
type Job struct {
	Path string
	Pos  core.RegionPos
}

// Outcome classifies a file's fate.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileResult is the per-file outcome reported to the caller.
type FileResult struct {
	Job     Job
	Outcome Outcome
	Report  FileReport
	Err     error
}

// Options configures a batch run.
type Options struct {
	// OutputDir receives one output file per input, same base name.
	OutputDir string
	// Workers bounds concurrent files in flight. Peak memory is
	// O(Workers x max file size), independent of batch length.
	Workers int
	// QueueFactor sizes the pending-work queue as a multiple of
	// Workers. The producer blocks when it is full; this bound, not
	// the input count, caps buffered work.
	QueueFactor int
	// SkipExisting leaves already-present output files alone.
	SkipExisting bool
	Transform    Transform
	Logger       *slog.Logger
}

// BatchResult aggregates a completed batch.
type BatchResult struct {
	Succeeded uint64
	Skipped   uint64
	Failed    uint64
	Results   []FileResult
	SizeRatio SizeRatioStats
}

// Orchestrator maps the rewrite pipeline over many input files with a
// fixed worker pool. Files are independent: no state is shared across
// them beyond the aggregate counters and the ratio sketch.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger

	succeeded atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64

	mu      sync.Mutex
	results []FileResult
	sketch  *sizeRatioSketch
}

// NewOrchestrator validates options and builds an orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", opts.Workers)
	}
	if opts.QueueFactor <= 0 {
		opts.QueueFactor = 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	sketch, err := newSizeRatioSketch()
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		opts:   opts,
		logger: opts.Logger.With("component", "orchestrator"),
		sketch: sketch,
	}, nil
}

// Run processes the jobs and blocks until the batch completes or the
// context is cancelled. One file's failure never aborts the batch; if
// any file failed, the returned error is a *PartialBatchError and the
// BatchResult still describes every file. Cancellation lets in-flight
// files finish their commit or abandon cleanly, then drains the queue
// counting the remainder as skipped.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) (BatchResult, error) {
	queue := make(chan Job, o.opts.Workers*o.opts.QueueFactor)

	var g errgroup.Group
	g.Go(func() error {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < o.opts.Workers; w++ {
		g.Go(func() error {
			for job := range queue {
				if ctx.Err() != nil {
					o.record(FileResult{Job: job, Outcome: OutcomeSkipped, Err: ctx.Err()})
					continue
				}
				o.processOne(ctx, job)
			}
			return nil
		})
	}

	// Workers only report through the counters; the group never errors.
	_ = g.Wait()

	result := BatchResult{
		Succeeded: o.succeeded.Load(),
		Skipped:   o.skipped.Load(),
		Failed:    o.failed.Load(),
		Results:   o.results,
		SizeRatio: o.sketch.Snapshot(),
	}
	o.logger.Info("batch finished",
		"total", len(jobs),
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed)

	if result.Failed > 0 {
		return result, &PartialBatchError{Failed: int(result.Failed), Total: len(jobs)}
	}
	return result, nil
}

func (o *Orchestrator) processOne(ctx context.Context, job Job) {
	outPath := filepath.Join(o.opts.OutputDir, filepath.Base(job.Path))

	if o.opts.SkipExisting {
		if _, err := os.Stat(outPath); err == nil {
			o.logger.Debug("output exists, skipping", "file", job.Path)
			o.record(FileResult{Job: job, Outcome: OutcomeSkipped})
			return
		}
	}

	// Read-only pass over the input; it is never opened for writing.
	data, err := os.ReadFile(job.Path)
	if err != nil {
		o.fail(job, FileReport{}, fmt.Errorf("read input: %w", err))
		return
	}

	out, report, err := RewriteFile(ctx, data, o.opts.Transform)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.record(FileResult{Job: job, Outcome: OutcomeSkipped, Report: report, Err: err})
			return
		}
		o.fail(job, report, err)
		return
	}

	if err := WriteFileAtomic(outPath, out, 0o644); err != nil {
		o.fail(job, report, err)
		return
	}

	if report.InSize > 0 {
		o.sketch.Add(float64(report.OutSize) / float64(report.InSize))
	}
	o.logger.Debug("file rewritten",
		"file", job.Path,
		"in_bytes", report.InSize,
		"out_bytes", report.OutSize,
		"chunks_rewritten", report.ChunksRewritten,
		"subtrees_pruned", report.SubtreesPruned)
	o.record(FileResult{Job: job, Outcome: OutcomeSucceeded, Report: report})
}

func (o *Orchestrator) fail(job Job, report FileReport, err error) {
	o.logger.Warn("file failed", "file", job.Path, "error", err)
	o.record(FileResult{Job: job, Outcome: OutcomeFailed, Report: report, Err: err})
}

func (o *Orchestrator) record(r FileResult) {
	switch r.Outcome {
	case OutcomeSucceeded:
		o.succeeded.Add(1)
	case OutcomeSkipped:
		o.skipped.Add(1)
	case OutcomeFailed:
		o.failed.Add(1)
	}
	o.mu.Lock()
	o.results = append(o.results, r)
	o.mu.Unlock()
}
