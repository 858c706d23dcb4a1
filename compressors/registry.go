package compressors

import (
	"fmt"

	"github.com/INLOpen/regionpress/core"
)

// GetCompressor returns the codec for a stored scheme tag, at default
// compression level. Used on the decode side, where the level is
// irrelevant.
func GetCompressor(scheme core.CompressionType) (core.Compressor, error) {
	return GetCompressorLevel(scheme, 0)
}

// GetCompressorLevel returns the codec for a scheme tag with a level
// hint for encoding. A non-positive level selects the codec's default.
// Levels are interpreted on each codec's native scale (deflate 1..9,
// zstd 1..22); lz4 and snappy have no levels and ignore the hint.
func GetCompressorLevel(scheme core.CompressionType, level int) (core.Compressor, error) {
	if scheme.IsExternal() {
		return nil, fmt.Errorf("%w: external chunk reference (tag 0x%02x)", core.ErrUnsupportedScheme, byte(scheme))
	}
	switch scheme {
	case core.CompressionGZip:
		if level > 0 {
			return NewGzipCompressorLevel(level), nil
		}
		return NewGzipCompressor(), nil
	case core.CompressionZlib:
		if level > 0 {
			return NewZlibCompressorLevel(level), nil
		}
		return NewZlibCompressor(), nil
	case core.CompressionNone:
		return &NoCompressionCompressor{}, nil
	case core.CompressionZstd:
		if level > 0 {
			return NewZstdCompressorLevel(level), nil
		}
		return NewZstdCompressor(), nil
	case core.CompressionLZ4:
		return NewLz4Compressor(), nil
	case core.CompressionSnappy:
		return NewSnappyCompressor(), nil
	default:
		return nil, fmt.Errorf("%w: tag 0x%02x", core.ErrUnsupportedScheme, byte(scheme))
	}
}
