package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/INLOpen/regionpress/compressors"
	"github.com/INLOpen/regionpress/core"
	"github.com/INLOpen/regionpress/engine"
	"github.com/INLOpen/regionpress/nbt"
	"github.com/INLOpen/regionpress/region"
)

// UnpackOptions configures Unpack.
type UnpackOptions struct {
	// Compressed marks the input as a zstd-wrapped tar stream.
	Compressed bool
	// Scheme and Level select the codec for the rebuilt chunk records.
	// Zero values mean zlib at best compression, matching what the game
	// itself writes.
	Scheme core.CompressionType
	Level  int
	Logger *slog.Logger
}

// regionBuilderCacheSize bounds how many partially rebuilt regions stay
// in memory. Packed streams group chunks by region, so a small cache
// suffices; an evicted region that reappears is read back from its
// committed file and extended.
const regionBuilderCacheSize = 8

// Unpack rebuilds region files under outDir from a stream produced by
// Pack. Each rebuilt file is committed atomically.
func Unpack(ctx context.Context, r io.Reader, outDir string, opts UnpackOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scheme := opts.Scheme
	if scheme == 0 {
		scheme = core.CompressionZlib
	}
	level := opts.Level
	if level <= 0 && (scheme == core.CompressionZlib || scheme == core.CompressionGZip) {
		level = 9
	}
	codec, err := compressors.GetCompressorLevel(scheme, level)
	if err != nil {
		return err
	}

	in := r
	if opts.Compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		in = zr
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	cache := newBuilderCache(outDir)
	tr := tar.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar stream: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		pos, slot, err := parseEntryName(hdr.Name)
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
		}
		// Validate before compressing; a damaged archive should fail
		// here, not when the game loads the chunk.
		if _, _, err := nbt.Decode(raw); err != nil {
			return fmt.Errorf("entry %s: %w", hdr.Name, err)
		}

		compressed, err := codec.Compress(raw)
		if err != nil {
			return fmt.Errorf("compress entry %s: %w", hdr.Name, err)
		}

		f, err := cache.get(pos)
		if err != nil {
			return err
		}
		f.Slots[slot] = region.Slot{
			Timestamp: uint32(hdr.ModTime.Unix()),
			Scheme:    codec.Type(),
			Payload:   compressed,
		}
		logger.Debug("chunk restored", "region", pos, "slot", slot)
	}

	return cache.flushAll()
}

// parseEntryName splits "r.<x>.<z>/c.<cx>.<cz>.nbt" into the region
// position and slot index.
func parseEntryName(name string) (core.RegionPos, int, error) {
	dir, file := filepath.Split(filepath.ToSlash(name))
	dir = strings.TrimSuffix(dir, "/")

	pos, err := parseDotted(dir, "r.", "")
	if err != nil {
		return core.RegionPos{}, 0, fmt.Errorf("tar entry %q: %w", name, err)
	}
	chunk, err := parseDotted(file, "c.", ".nbt")
	if err != nil {
		return core.RegionPos{}, 0, fmt.Errorf("tar entry %q: %w", name, err)
	}
	if chunk.X < 0 || chunk.X > 31 || chunk.Z < 0 || chunk.Z > 31 {
		return core.RegionPos{}, 0, fmt.Errorf("tar entry %q: chunk %s outside region grid", name, chunk)
	}
	return pos, core.SlotIndex(chunk.X, chunk.Z), nil
}

func parseDotted(s, prefix, suffix string) (core.RegionPos, error) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) {
		return core.RegionPos{}, fmt.Errorf("segment %q does not match %s<x>.<z>%s", s, prefix, suffix)
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(s, prefix), suffix)
	parts := strings.Split(trimmed, ".")
	if len(parts) != 2 {
		return core.RegionPos{}, fmt.Errorf("segment %q does not encode coordinates", s)
	}
	x, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return core.RegionPos{}, fmt.Errorf("segment %q: %w", s, err)
	}
	z, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return core.RegionPos{}, fmt.Errorf("segment %q: %w", s, err)
	}
	return core.RegionPos{X: int32(x), Z: int32(z)}, nil
}

// builderCache is a small LRU of in-progress region files keyed by
// position. Evicted regions are committed; re-requested ones are read
// back from their committed file.
type builderCache struct {
	outDir string
	order  []core.RegionPos
	open   map[core.RegionPos]*region.File
}

func newBuilderCache(outDir string) *builderCache {
	return &builderCache{
		outDir: outDir,
		open:   make(map[core.RegionPos]*region.File),
	}
}

func (c *builderCache) get(pos core.RegionPos) (*region.File, error) {
	if f, ok := c.open[pos]; ok {
		c.touch(pos)
		return f, nil
	}
	if len(c.open) >= regionBuilderCacheSize {
		oldest := c.order[0]
		if err := c.flush(oldest); err != nil {
			return nil, err
		}
	}

	f := &region.File{}
	// A previously evicted region picks up where it left off.
	path := filepath.Join(c.outDir, core.FormatRegionName(pos))
	if data, err := os.ReadFile(path); err == nil {
		existing, err := region.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("reopen %s: %w", path, err)
		}
		f = existing
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reopen %s: %w", path, err)
	}

	c.open[pos] = f
	c.order = append(c.order, pos)
	return f, nil
}

func (c *builderCache) touch(pos core.RegionPos) {
	for i, p := range c.order {
		if p == pos {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), pos)
			return
		}
	}
}

func (c *builderCache) flush(pos core.RegionPos) error {
	f, ok := c.open[pos]
	if !ok {
		return nil
	}
	data, err := region.Encode(f)
	if err != nil {
		return fmt.Errorf("encode region %s: %w", pos, err)
	}
	path := filepath.Join(c.outDir, core.FormatRegionName(pos))
	if err := engine.WriteFileAtomic(path, data, 0o644); err != nil {
		return err
	}
	delete(c.open, pos)
	for i, p := range c.order {
		if p == pos {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *builderCache) flushAll() error {
	for len(c.order) > 0 {
		if err := c.flush(c.order[0]); err != nil {
			return err
		}
	}
	return nil
}
