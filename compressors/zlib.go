package compressors

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/INLOpen/regionpress/core"
	"github.com/klauspost/compress/zlib"
)

// ZlibCompressor implements core.Compressor for scheme 2, the default
// framing the game writes for chunk payloads.
type ZlibCompressor struct {
	level      int
	writerPool sync.Pool
}

var _ core.Compressor = (*ZlibCompressor)(nil)

func NewZlibCompressor() *ZlibCompressor {
	return NewZlibCompressorLevel(zlib.DefaultCompression)
}

// NewZlibCompressorLevel creates a zlib compressor with an explicit
// compression level (zlib.BestSpeed..zlib.BestCompression).
func NewZlibCompressorLevel(level int) *ZlibCompressor {
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		level = zlib.DefaultCompression
	}
	c := &ZlibCompressor{level: level}
	c.writerPool = sync.Pool{
		New: func() interface{} {
			w, _ := zlib.NewWriterLevel(nil, c.level)
			return w
		},
	}
	return c
}

func (c *ZlibCompressor) Compress(data []byte) ([]byte, error) {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)

	if err := c.CompressTo(buf, data); err != nil {
		return nil, err
	}
	compressed := make([]byte, buf.Len())
	copy(compressed, buf.Bytes())
	return compressed, nil
}

func (c *ZlibCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	w := c.writerPool.Get().(*zlib.Writer)
	defer c.writerPool.Put(w)

	dst.Reset()
	w.Reset(dst)
	if _, err := w.Write(src); err != nil {
		_ = w.Close()
		return fmt.Errorf("zlib compress write error: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("zlib compress close error: %w", err)
	}
	return nil
}

func (c *ZlibCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib decompress error: %w", err)
	}
	return r, nil
}

func (c *ZlibCompressor) Type() core.CompressionType {
	return core.CompressionZlib
}
