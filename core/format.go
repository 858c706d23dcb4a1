package core

import (
	"fmt"
	"strconv"
	"strings"
)

// This file centralizes constants of the Anvil container format and the
// region file naming convention.

const (
	// SectorSize is the allocation unit for chunk storage.
	SectorSize = 4096
	// SlotCount is the number of chunk slots per region (32x32 grid).
	SlotCount = 1024
	// HeaderSize covers the location table and the timestamp table,
	// one big-endian uint32 per slot each.
	HeaderSize = 2 * SlotCount * 4
	// HeaderSectors is the number of sectors the header occupies; chunk
	// data always starts at this sector index.
	HeaderSectors = HeaderSize / SectorSize
	// ChunkHeaderSize is the per-chunk record header: a 4-byte big-endian
	// length prefix followed by the 1-byte scheme tag. The length prefix
	// counts the scheme tag plus the compressed payload.
	ChunkHeaderSize = 5
	// MaxTreeDepth bounds tag tree nesting. Matches the game's own
	// limit; deeper input is treated as malformed, not recursed into.
	MaxTreeDepth = 512
)

const (
	// RegionFileSuffix is the extension of Anvil region files.
	RegionFileSuffix = ".mca"
	regionFilePrefix = "r."
)

// RegionPos is a pair of region coordinates as encoded in the file name.
type RegionPos struct {
	X int32
	Z int32
}

func (p RegionPos) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Z)
}

// SlotIndex returns the slot index for chunk-local coordinates.
func SlotIndex(x, z int32) int {
	return int(x&31) + int(z&31)*32
}

// FormatRegionName builds the canonical file name, e.g. "r.-1.3.mca".
func FormatRegionName(pos RegionPos) string {
	return fmt.Sprintf("%s%d.%d%s", regionFilePrefix, pos.X, pos.Z, RegionFileSuffix)
}

// ParseRegionName extracts the region coordinates from a file name of
// the form "r.<x>.<z>.mca".
func ParseRegionName(name string) (RegionPos, error) {
	if !strings.HasPrefix(name, regionFilePrefix) || !strings.HasSuffix(name, RegionFileSuffix) {
		return RegionPos{}, fmt.Errorf("file %q is not a region file", name)
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, regionFilePrefix), RegionFileSuffix)
	parts := strings.Split(trimmed, ".")
	if len(parts) != 2 {
		return RegionPos{}, fmt.Errorf("file %q does not encode region coordinates", name)
	}
	x, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return RegionPos{}, fmt.Errorf("invalid x-coordinate in %q: %w", name, err)
	}
	z, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return RegionPos{}, fmt.Errorf("invalid z-coordinate in %q: %w", name, err)
	}
	return RegionPos{X: int32(x), Z: int32(z)}, nil
}

// SectorCount returns the minimum number of sectors covering a chunk
// record holding payloadLen compressed bytes.
func SectorCount(payloadLen int) int {
	return (ChunkHeaderSize + payloadLen + SectorSize - 1) / SectorSize
}
