// Package archive streams the chunks of many region files into a
// single tar archive of decompressed tag trees, and rebuilds region
// files from such an archive. Packing with stripping enabled is the
// long-term storage mode: one solid stream compresses far better than
// per-chunk deflate.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/INLOpen/regionpress/compressors"
	"github.com/INLOpen/regionpress/core"
	"github.com/INLOpen/regionpress/engine"
	"github.com/INLOpen/regionpress/nbt"
	"github.com/INLOpen/regionpress/region"
)

// PackOptions configures Pack.
type PackOptions struct {
	// Strip prunes the rule set's subtrees from every chunk before
	// archiving.
	Strip bool
	Rules nbt.RuleSet
	// Compress wraps the tar stream in a zstd frame at Level
	// (zstd scale, 1..22).
	Compress bool
	Level    int
	Logger   *slog.Logger
}

// Pack streams every occupied chunk of the given region files into w
// as "r.<x>.<z>/c.<cx>.<cz>.nbt" tar entries holding the decompressed
// tag tree. Unlike the batch rewrite, packing shares one output
// stream, so the first failure aborts with an error; nothing written
// so far is rolled back.
func Pack(ctx context.Context, w io.Writer, jobs []engine.Job, opts PackOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := w
	var zw *zstd.Encoder
	if opts.Compress {
		level := opts.Level
		if level <= 0 {
			level = 3
		}
		var err error
		zw, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return fmt.Errorf("create zstd stream: %w", err)
		}
		out = zw
	}

	tw := tar.NewWriter(out)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := packRegion(tw, job, opts); err != nil {
			return fmt.Errorf("pack %s: %w", job.Path, err)
		}
		logger.Debug("region packed", "file", job.Path)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar stream: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("finalize zstd stream: %w", err)
		}
	}
	return nil
}

func packRegion(tw *tar.Writer, job engine.Job, opts PackOptions) error {
	data, err := os.ReadFile(job.Path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	f, err := regionDecodeStrict(data)
	if err != nil {
		return err
	}

	for i := range f.Slots {
		slot := &f.Slots[i]
		if !slot.Occupied() {
			continue
		}

		codec, err := compressors.GetCompressor(slot.Scheme)
		if err != nil {
			return &core.SlotError{Index: i, Err: err}
		}
		rc, err := codec.Decompress(slot.Payload)
		if err != nil {
			return &core.SlotError{Index: i, Err: err}
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return &core.SlotError{Index: i, Err: err}
		}

		if opts.Strip {
			name, root, err := nbt.Decode(raw)
			if err != nil {
				return &core.SlotError{Index: i, Err: err}
			}
			nbt.Prune(root, opts.Rules)
			raw, err = nbt.Encode(name, root)
			if err != nil {
				return &core.SlotError{Index: i, Err: err}
			}
		}

		hdr := &tar.Header{
			Name:    entryName(job.Pos, i),
			Mode:    0o644,
			Size:    int64(len(raw)),
			ModTime: time.Unix(int64(slot.Timestamp), 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write(raw); err != nil {
			return fmt.Errorf("write tar entry: %w", err)
		}
	}
	return nil
}

func entryName(pos core.RegionPos, slot int) string {
	return fmt.Sprintf("r.%d.%d/c.%d.%d.nbt", pos.X, pos.Z, slot%32, slot/32)
}

// regionDecodeStrict decodes a container and promotes any slot defect
// to a failure. Archives must be complete; there is no pass-through for
// a chunk that cannot be read.
func regionDecodeStrict(data []byte) (*region.File, error) {
	f, err := region.Decode(data)
	if err != nil {
		return nil, err
	}
	if errs := f.SlotErrors(); len(errs) > 0 {
		return nil, errs[0]
	}
	return f, nil
}
