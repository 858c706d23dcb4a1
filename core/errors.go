package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the rewrite engine. Callers classify with
// errors.Is; every wrapping layer adds context with fmt.Errorf %w.
var (
	// ErrHeaderSizeMismatch means the file is shorter than the fixed
	// 8 KiB container header.
	ErrHeaderSizeMismatch = errors.New("container header truncated")
	// ErrTruncatedContainer means a chunk record's declared offset or
	// length points past the end of the file.
	ErrTruncatedContainer = errors.New("chunk record exceeds container bounds")
	// ErrUnsupportedScheme means the chunk's scheme tag names no known codec.
	ErrUnsupportedScheme = errors.New("unsupported compression scheme")
	// ErrMalformedTree means the decompressed chunk payload is not a
	// well-formed tag tree.
	ErrMalformedTree = errors.New("malformed tag tree")
	// ErrSlotTooLarge means a rewritten chunk no longer fits the
	// container's 3-byte offset / 1-byte sector count limits.
	ErrSlotTooLarge = errors.New("chunk exceeds slot size limits")
)

// SlotError records a failure confined to a single chunk slot.
type SlotError struct {
	Index int // slot index, (x&31) + (z&31)*32
	Err   error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %d (chunk %d,%d): %v", e.Index, e.Index%32, e.Index/32, e.Err)
}

func (e *SlotError) Unwrap() error {
	return e.Err
}

// IsSlotError checks if an error (or any error in its chain) is a SlotError.
func IsSlotError(err error) bool {
	var slotErr *SlotError
	return errors.As(err, &slotErr)
}
