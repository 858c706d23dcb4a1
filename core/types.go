package core

import (
	"bytes"
	"io"
)

// CompressionType identifies the compression scheme of a chunk payload.
// The value is the scheme tag byte stored in the chunk record on disk.
type CompressionType byte

const (
	// CompressionGZip and CompressionZlib are the two deflate-family
	// schemes the vanilla container format defines.
	CompressionGZip CompressionType = 1
	CompressionZlib CompressionType = 2
	// CompressionNone stores the chunk payload uncompressed.
	CompressionNone CompressionType = 3
	// CompressionZstd is the high-ratio archival scheme. Output written
	// with it is smaller than deflate but not readable by a vanilla client.
	CompressionZstd CompressionType = 4
	// CompressionLZ4 and CompressionSnappy trade ratio for speed.
	CompressionLZ4    CompressionType = 5
	CompressionSnappy CompressionType = 6
)

// ExternalSchemeMask is the high bit of the scheme tag. When set, the
// chunk payload lives in an external sidecar file instead of the
// container. The engine does not follow external references.
const ExternalSchemeMask byte = 0x80

// Compressor defines the interface for chunk payload compression codecs.
type Compressor interface {
	// Compress compresses the input data into a new slice.
	Compress(data []byte) ([]byte, error)
	// CompressTo compresses src into dst, reusing dst's storage.
	CompressTo(dst *bytes.Buffer, src []byte) error
	// Decompress returns a reader over the decompressed data.
	Decompress(data []byte) (io.ReadCloser, error)
	// Type returns the scheme tag this compressor encodes as.
	Type() CompressionType
}

// IsExternal reports whether the tag marks an external sidecar reference.
func (ct CompressionType) IsExternal() bool {
	return byte(ct)&ExternalSchemeMask != 0
}

// String returns the string representation of the CompressionType.
func (ct CompressionType) String() string {
	switch ct {
	case CompressionGZip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// ParseCompressionType maps a config string to a scheme tag.
func ParseCompressionType(s string) (CompressionType, bool) {
	switch s {
	case "gzip":
		return CompressionGZip, true
	case "zlib":
		return CompressionZlib, true
	case "none":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "lz4":
		return CompressionLZ4, true
	case "snappy":
		return CompressionSnappy, true
	default:
		return 0, false
	}
}
