package compressors

import (
	"bytes"
	"io"
	"testing"

	"github.com/INLOpen/regionpress/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roundTripPayloads = []struct {
	name string
	data []byte
}{
	{name: "simple string", data: []byte("hello world, this is a chunk payload stand-in")},
	{name: "repetitive data", data: bytes.Repeat([]byte("SkyLight"), 2048)},
	{name: "empty data", data: []byte{}},
	{name: "binary data", data: []byte{0x0a, 0x00, 0x00, 0x09, 0x00, 0x08, 0x73, 0x65, 0x63, 0x74, 0xff, 0xfe}},
}

func TestRoundTripAllSchemes(t *testing.T) {
	schemes := []core.CompressionType{
		core.CompressionGZip,
		core.CompressionZlib,
		core.CompressionNone,
		core.CompressionZstd,
		core.CompressionLZ4,
		core.CompressionSnappy,
	}

	for _, scheme := range schemes {
		t.Run(scheme.String(), func(t *testing.T) {
			compressor, err := GetCompressor(scheme)
			require.NoError(t, err)
			require.Equal(t, scheme, compressor.Type())

			for _, tc := range roundTripPayloads {
				t.Run(tc.name, func(t *testing.T) {
					compressed, err := compressor.Compress(tc.data)
					require.NoError(t, err)

					rc, err := compressor.Decompress(compressed)
					require.NoError(t, err)
					defer rc.Close()

					got, err := io.ReadAll(rc)
					require.NoError(t, err)
					assert.Equal(t, len(tc.data), len(got))
					assert.True(t, bytes.Equal(tc.data, got))

					// CompressTo must agree with Decompress as well.
					var buf bytes.Buffer
					require.NoError(t, compressor.CompressTo(&buf, tc.data))
					rc2, err := compressor.Decompress(buf.Bytes())
					require.NoError(t, err)
					defer rc2.Close()
					got2, err := io.ReadAll(rc2)
					require.NoError(t, err)
					assert.True(t, bytes.Equal(tc.data, got2))
				})
			}
		})
	}
}

func TestGetCompressorUnsupported(t *testing.T) {
	_, err := GetCompressor(core.CompressionType(0))
	require.ErrorIs(t, err, core.ErrUnsupportedScheme)

	_, err = GetCompressor(core.CompressionType(42))
	require.ErrorIs(t, err, core.ErrUnsupportedScheme)
}

func TestGetCompressorExternalReference(t *testing.T) {
	// Tag 0x82 marks a zlib chunk stored in an external sidecar file; the
	// engine refuses it at the slot level.
	_, err := GetCompressor(core.CompressionType(0x82))
	require.ErrorIs(t, err, core.ErrUnsupportedScheme)
	assert.Contains(t, err.Error(), "external")
}

func TestZlibLevelTradesCPUForSize(t *testing.T) {
	// Highly repetitive input: best compression must not be larger than
	// fastest. Exact sizes are codec internals, only the ordering holds.
	data := bytes.Repeat([]byte("Heightmaps MOTION_BLOCKING WORLD_SURFACE "), 4096)

	fast := NewZlibCompressorLevel(1)
	best := NewZlibCompressorLevel(9)

	fastOut, err := fast.Compress(data)
	require.NoError(t, err)
	bestOut, err := best.Compress(data)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(bestOut), len(fastOut))
	assert.Less(t, len(bestOut), len(data))
}

func TestCorruptInputFailsDecode(t *testing.T) {
	corrupt := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02}

	for _, scheme := range []core.CompressionType{core.CompressionGZip, core.CompressionZlib} {
		t.Run(scheme.String(), func(t *testing.T) {
			compressor, err := GetCompressor(scheme)
			require.NoError(t, err)
			_, err = compressor.Decompress(corrupt)
			require.Error(t, err)
		})
	}

	// Zstd reports corrupt frames on read, not on reader construction.
	zc := NewZstdCompressor()
	rc, err := zc.Decompress(corrupt)
	if err == nil {
		_, err = io.ReadAll(rc)
		rc.Close()
	}
	require.Error(t, err)
}
