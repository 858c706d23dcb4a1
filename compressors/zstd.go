package compressors

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/INLOpen/regionpress/core"
	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor implements core.Compressor for scheme 4, the
// high-ratio archival codec. Encoders and decoders are pooled; both are
// expensive to construct and fully reusable via Reset.
type ZstdCompressor struct {
	level       zstd.EncoderLevel
	encoderPool sync.Pool
	decoderPool sync.Pool
}

type zstdReadCloser struct {
	*zstd.Decoder
	pool *sync.Pool
}

func (zrc *zstdReadCloser) Close() error {
	// Not Decoder.Close: that would invalidate the decoder for reuse.
	zrc.pool.Put(zrc.Decoder)
	return nil
}

var _ core.Compressor = (*ZstdCompressor)(nil)
var _ io.ReadCloser = (*zstdReadCloser)(nil)

// maxDecoderMemory caps the window a hostile frame can make a decoder
// allocate.
const maxDecoderMemory = 128 * 1024 * 1024

func NewZstdCompressor() *ZstdCompressor {
	return newZstdCompressor(zstd.SpeedDefault)
}

// NewZstdCompressorLevel creates a zstd compressor from a zstd-scale
// level hint (1..22). Higher levels trade CPU for ratio; this is the
// knob the archival mode turns all the way up.
func NewZstdCompressorLevel(level int) *ZstdCompressor {
	return newZstdCompressor(zstd.EncoderLevelFromZstd(level))
}

func newZstdCompressor(level zstd.EncoderLevel) *ZstdCompressor {
	c := &ZstdCompressor{level: level}
	c.encoderPool = sync.Pool{
		New: func() interface{} {
			// The writer is set during Reset. WithEncoderDict is
			// deliberately unused: chunks stay independently decodable.
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
			if err != nil {
				return nil
			}
			return enc
		},
	}
	c.decoderPool = sync.Pool{
		New: func() interface{} {
			dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoderMemory))
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return c
}

func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)

	if err := c.CompressTo(buf, data); err != nil {
		return nil, err
	}
	// Copy out: the pooled buffer is reused after Put.
	compressed := make([]byte, buf.Len())
	copy(compressed, buf.Bytes())
	return compressed, nil
}

func (c *ZstdCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	enc, ok := c.encoderPool.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		return fmt.Errorf("zstd encoder unavailable")
	}
	defer c.encoderPool.Put(enc)

	dst.Reset()
	enc.Reset(dst)
	if _, err := enc.Write(src); err != nil {
		_ = enc.Close()
		return fmt.Errorf("zstd compress write error: %w", err)
	}
	return enc.Close()
}

func (c *ZstdCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	dec, ok := c.decoderPool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		return nil, fmt.Errorf("zstd decoder unavailable")
	}
	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		c.decoderPool.Put(dec)
		return nil, fmt.Errorf("zstd decoder reset error: %w", err)
	}
	return &zstdReadCloser{Decoder: dec, pool: &c.decoderPool}, nil
}

func (c *ZstdCompressor) Type() core.CompressionType {
	return core.CompressionZstd
}
