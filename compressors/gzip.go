package compressors

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/INLOpen/regionpress/core"
	"github.com/klauspost/compress/gzip"
)

// GzipCompressor implements core.Compressor for scheme 1, the
// gzip-compatible deflate framing used by older region files.
type GzipCompressor struct {
	level      int
	writerPool sync.Pool
}

var _ core.Compressor = (*GzipCompressor)(nil)

func NewGzipCompressor() *GzipCompressor {
	return NewGzipCompressorLevel(gzip.DefaultCompression)
}

// NewGzipCompressorLevel creates a gzip compressor with an explicit
// compression level (gzip.BestSpeed..gzip.BestCompression).
func NewGzipCompressorLevel(level int) *GzipCompressor {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	c := &GzipCompressor{level: level}
	c.writerPool = sync.Pool{
		New: func() interface{} {
			// Level is validated above, NewWriterLevel cannot fail.
			w, _ := gzip.NewWriterLevel(nil, c.level)
			return w
		},
	}
	return c
}

func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)

	if err := c.CompressTo(buf, data); err != nil {
		return nil, err
	}
	compressed := make([]byte, buf.Len())
	copy(compressed, buf.Bytes())
	return compressed, nil
}

func (c *GzipCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	w := c.writerPool.Get().(*gzip.Writer)
	defer c.writerPool.Put(w)

	dst.Reset()
	w.Reset(dst)
	if _, err := w.Write(src); err != nil {
		_ = w.Close()
		return fmt.Errorf("gzip compress write error: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gzip compress close error: %w", err)
	}
	return nil
}

func (c *GzipCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip decompress error: %w", err)
	}
	return r, nil
}

func (c *GzipCompressor) Type() core.CompressionType {
	return core.CompressionGZip
}
