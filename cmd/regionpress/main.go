package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/INLOpen/regionpress/archive"
	"github.com/INLOpen/regionpress/config"
	"github.com/INLOpen/regionpress/core"
	"github.com/INLOpen/regionpress/engine"
	"github.com/INLOpen/regionpress/nbt"
)

// createLogger creates a slog.Logger based on the provided configuration.
func createLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		// Logs go to stderr so that `pack -out -` can own stdout.
		output = os.Stderr
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file // The file handle is the closer.
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// collectJobs enumerates the region files in dir, sorted by name so
// batches enumerate in a stable order.
func collectJobs(dir string) ([]engine.Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}
	var jobs []engine.Job
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pos, err := core.ParseRegionName(entry.Name())
		if err != nil {
			continue // not a region file
		}
		jobs = append(jobs, engine.Job{Path: filepath.Join(dir, entry.Name()), Pos: pos})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Path < jobs[j].Path })
	return jobs, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  strip    Rewrite region files into an output directory, pruning
           derivable chunk data and optionally recompressing.
  pack     Write the chunks of a region directory into a tar archive.
  unpack   Rebuild region files from a tar archive.

Run "%s <command> -h" for command flags.
`, filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "strip":
		err = runStrip(ctx, os.Args[2:])
	case "pack":
		err = runPack(ctx, os.Args[2:])
	case "unpack":
		err = runUnpack(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runStrip(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("strip", flag.ExitOnError)
	configPath := fs.String("config", "regionpress.yaml", "Path to the configuration file")
	inDir := fs.String("in", "", "Input region directory (overrides config)")
	outDir := fs.String("out", "", "Output region directory (overrides config)")
	workers := fs.Int("workers", -1, "Worker count, 0 = auto (overrides config)")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *inDir != "" {
		cfg.InputDir = *inDir
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *workers >= 0 {
		cfg.Batch.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser, err := createLogger(cfg.Logging)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	transform, err := cfg.Transform()
	if err != nil {
		return err
	}
	jobs, err := collectJobs(cfg.InputDir)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		logger.Warn("No region files found", "dir", cfg.InputDir)
		return nil
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	workerCount := cfg.Workers()
	logger.Info("Starting batch rewrite",
		"files", len(jobs),
		"workers", workerCount,
		"prune", transform.Prune,
		"recompress", transform.Recompress,
		"slot_error_policy", transform.OnSlotError.String())

	orch, err := engine.NewOrchestrator(engine.Options{
		OutputDir:    cfg.OutputDir,
		Workers:      workerCount,
		QueueFactor:  cfg.Batch.QueueFactor,
		SkipExisting: cfg.Batch.SkipExisting,
		Transform:    transform,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	result, runErr := orch.Run(ctx, jobs)

	var inSize, outSize, pruned uint64
	for _, r := range result.Results {
		inSize += uint64(r.Report.InSize)
		outSize += uint64(r.Report.OutSize)
		pruned += uint64(r.Report.SubtreesPruned)
	}
	logger.Info("Batch finished",
		"succeeded", result.Succeeded,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"bytes_in", inSize,
		"bytes_out", outSize,
		"subtrees_pruned", pruned)
	if result.SizeRatio.Count > 0 {
		logger.Info("Size ratio distribution",
			"files", result.SizeRatio.Count,
			"median", fmt.Sprintf("%.3f", result.SizeRatio.Median),
			"p90", fmt.Sprintf("%.3f", result.SizeRatio.P90))
	}
	return runErr
}

func runPack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	configPath := fs.String("config", "regionpress.yaml", "Path to the configuration file")
	inDir := fs.String("in", "", "Input region directory (overrides config)")
	outPath := fs.String("out", "-", "Archive path, '-' for stdout")
	strip := fs.Bool("strip", false, "Prune derivable chunk data while packing")
	noCompress := fs.Bool("no-compress", false, "Skip the zstd frame around the archive")
	level := fs.Int("level", 3, "zstd level for the archive frame")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *inDir != "" {
		cfg.InputDir = *inDir
	}

	logger, logCloser, err := createLogger(cfg.Logging)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	var w io.Writer
	if *outPath == "-" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("refusing to write archive to a terminal; redirect stdout or pass -out")
		}
		w = os.Stdout
	} else {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("failed to create archive %s: %w", *outPath, err)
		}
		defer f.Close()
		w = f
	}

	jobs, err := collectJobs(cfg.InputDir)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no region files found in %s", cfg.InputDir)
	}

	opts := archive.PackOptions{
		Strip:    *strip,
		Compress: !*noCompress,
		Level:    *level,
		Logger:   logger,
	}
	if *strip {
		if len(cfg.Pruning.Rules) > 0 {
			rules, err := nbt.ParseRules(cfg.Pruning.Rules)
			if err != nil {
				return err
			}
			opts.Rules = rules
		} else {
			opts.Rules = nbt.DefaultRules()
		}
	}

	logger.Info("Packing archive", "files", len(jobs), "strip", *strip, "compress", opts.Compress)
	return archive.Pack(ctx, w, jobs, opts)
}

func runUnpack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	configPath := fs.String("config", "regionpress.yaml", "Path to the configuration file")
	inPath := fs.String("in", "-", "Archive path, '-' for stdin")
	outDir := fs.String("out", "", "Output region directory (overrides config)")
	scheme := fs.String("scheme", "zlib", "Chunk compression scheme for rebuilt regions")
	level := fs.Int("level", 0, "Compression level, 0 = codec default")
	noCompress := fs.Bool("no-compress", false, "Archive has no zstd frame")
	fs.Parse(args)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	logger, logCloser, err := createLogger(cfg.Logging)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	ct, ok := core.ParseCompressionType(*scheme)
	if !ok {
		return fmt.Errorf("unknown compression scheme %q", *scheme)
	}

	var r io.Reader
	if *inPath == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(*inPath)
		if err != nil {
			return fmt.Errorf("failed to open archive %s: %w", *inPath, err)
		}
		defer f.Close()
		r = f
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.Info("Unpacking archive", "out", cfg.OutputDir, "scheme", ct.String())
	return archive.Unpack(ctx, r, cfg.OutputDir, archive.UnpackOptions{
		Compressed: !*noCompress,
		Scheme:     ct,
		Level:      *level,
		Logger:     logger,
	})
}
