// Package engine turns decoded region containers into rewritten ones
// and maps that pipeline over batches of files with bounded
// concurrency. All processing is out-of-place: input files are read
// once and never opened for writing.
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/INLOpen/regionpress/compressors"
	"github.com/INLOpen/regionpress/core"
	"github.com/INLOpen/regionpress/nbt"
	"github.com/INLOpen/regionpress/region"
)

// SlotErrorPolicy decides what happens to a slot whose chunk cannot be
// decoded (truncated record, unknown scheme, corrupt compression,
// malformed tree).
type SlotErrorPolicy int

const (
	// SlotErrorAbort fails the whole file. The conservative default:
	// partial corruption risk outweighs partial salvage.
	SlotErrorAbort SlotErrorPolicy = iota
	// SlotErrorPassThrough copies the slot's stored bytes and scheme
	// into the output unchanged. A slot whose stored bytes could not
	// even be located degrades to a drop.
	SlotErrorPassThrough
	// SlotErrorDrop writes the slot out as empty.
	SlotErrorDrop
)

func (p SlotErrorPolicy) String() string {
	switch p {
	case SlotErrorAbort:
		return "abort"
	case SlotErrorPassThrough:
		return "pass_through"
	case SlotErrorDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// ParseSlotErrorPolicy maps a config string to a policy.
func ParseSlotErrorPolicy(s string) (SlotErrorPolicy, error) {
	switch s {
	case "", "abort":
		return SlotErrorAbort, nil
	case "pass_through":
		return SlotErrorPassThrough, nil
	case "drop":
		return SlotErrorDrop, nil
	default:
		return 0, fmt.Errorf("unknown slot error policy %q", s)
	}
}

// Transform configures the per-chunk rewrite. Pruning and
// recompression toggle independently; with both disabled the pipeline
// degenerates to a layout-normalizing copy.
type Transform struct {
	Prune      bool
	Rules      nbt.RuleSet
	Recompress bool
	// Scheme and Level select the output codec when Recompress is set.
	Scheme core.CompressionType
	Level  int

	OnSlotError SlotErrorPolicy
}

// active reports whether any chunk-content transform is enabled.
func (t Transform) active() bool {
	return t.Prune || t.Recompress
}

// FileReport summarizes one file's rewrite.
type FileReport struct {
	InSize          int64
	OutSize         int64
	ChunksRewritten int
	ChunksCopied    int
	ChunksDropped   int
	SubtreesPruned  int
	SlotErrors      []*core.SlotError
}

// RewriteFile runs the rewrite pipeline over one container image and
// returns the rewritten container. It is a pure function of its
// input bytes and the transform; it shares no state across calls, so
// results are independent of batch ordering and concurrency.
func RewriteFile(ctx context.Context, data []byte, t Transform) ([]byte, FileReport, error) {
	report := FileReport{InSize: int64(len(data))}

	f, err := region.Decode(data)
	if err != nil {
		return nil, report, err
	}

	var outCodec core.Compressor
	if t.Recompress {
		outCodec, err = compressors.GetCompressorLevel(t.Scheme, t.Level)
		if err != nil {
			return nil, report, fmt.Errorf("output scheme: %w", err)
		}
	}

	for i := range f.Slots {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		slot := &f.Slots[i]
		if !slot.Occupied() {
			continue
		}

		if slot.Err == nil {
			if !t.active() {
				report.ChunksCopied++
				continue
			}
			if err := rewriteSlot(slot, t, outCodec, &report); err == nil {
				report.ChunksRewritten++
				continue
			} else {
				slot.Err = err
			}
		}

		slotErr := &core.SlotError{Index: i, Err: slot.Err}
		report.SlotErrors = append(report.SlotErrors, slotErr)
		switch t.OnSlotError {
		case SlotErrorAbort:
			return nil, report, slotErr
		case SlotErrorPassThrough:
			if slot.Payload != nil {
				report.ChunksCopied++
				continue
			}
			// Nothing readable to pass through.
			slot.Clear()
			report.ChunksDropped++
		case SlotErrorDrop:
			slot.Clear()
			report.ChunksDropped++
		}
	}

	out, err := region.Encode(f)
	if err != nil {
		return nil, report, err
	}
	report.OutSize = int64(len(out))
	return out, report, nil
}

// rewriteSlot decompresses, parses, prunes and re-encodes a single
// chunk in place. On error the slot is left untouched for the
// pass-through policy.
func rewriteSlot(slot *region.Slot, t Transform, outCodec core.Compressor, report *FileReport) error {
	inCodec, err := compressors.GetCompressor(slot.Scheme)
	if err != nil {
		return err
	}
	rc, err := inCodec.Decompress(slot.Payload)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}

	name, root, err := nbt.Decode(raw)
	if err != nil {
		return err
	}

	if t.Prune {
		report.SubtreesPruned += nbt.Prune(root, t.Rules)
	}

	// Without recompression the chunk keeps its original scheme.
	codec := outCodec
	if codec == nil {
		codec = inCodec
	}

	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	if err := nbt.EncodeTo(buf, name, root); err != nil {
		return fmt.Errorf("reserialize: %w", err)
	}
	compressed, err := codec.Compress(buf.Bytes())
	if err != nil {
		return fmt.Errorf("recompress: %w", err)
	}
	if codec.Type() == core.CompressionNone {
		// The none codec returns its input, which aliases the pooled buffer.
		compressed = append([]byte(nil), compressed...)
	}

	slot.Payload = compressed
	slot.Scheme = codec.Type()
	return nil
}
