package engine

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/INLOpen/regionpress/compressors"
	"github.com/INLOpen/regionpress/core"
	"github.com/INLOpen/regionpress/nbt"
	"github.com/INLOpen/regionpress/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReadAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

// makeChunk serializes a plausible chunk tree, compressed with the
// given scheme. The tree carries prunable light data so strip tests
// have something to remove.
func makeChunk(t *testing.T, scheme core.CompressionType) []byte {
	t.Helper()
	root := &nbt.Node{Type: nbt.TagCompound}
	root.Set("DataVersion", &nbt.Node{Type: nbt.TagInt, Int: 3465})
	root.Set("Status", &nbt.Node{Type: nbt.TagString, Str: "minecraft:full"})
	root.Set("isLightOn", &nbt.Node{Type: nbt.TagByte, Byte: 1})
	root.Set("Heightmaps", &nbt.Node{Type: nbt.TagCompound, Compound: []nbt.Entry{
		{Name: "MOTION_BLOCKING", Value: &nbt.Node{Type: nbt.TagLongArray, Longs: make([]int64, 37)}},
	}})
	section := &nbt.Node{Type: nbt.TagCompound}
	section.Set("Y", &nbt.Node{Type: nbt.TagByte, Byte: 0})
	section.Set("block_states", &nbt.Node{Type: nbt.TagCompound, Compound: []nbt.Entry{
		{Name: "data", Value: &nbt.Node{Type: nbt.TagLongArray, Longs: []int64{1, 2, 3}}},
	}})
	section.Set("SkyLight", &nbt.Node{Type: nbt.TagByteArray, Bytes: bytes.Repeat([]byte{0xff}, 2048)})
	section.Set("BlockLight", &nbt.Node{Type: nbt.TagByteArray, Bytes: bytes.Repeat([]byte{0x07}, 2048)})
	root.Set("sections", &nbt.Node{Type: nbt.TagList, Elem: nbt.TagCompound, List: []*nbt.Node{section}})

	raw, err := nbt.Encode("", root)
	require.NoError(t, err)
	codec, err := compressors.GetCompressor(scheme)
	require.NoError(t, err)
	compressed, err := codec.Compress(raw)
	require.NoError(t, err)
	return compressed
}

// makeContainer builds a container image with the given slots occupied.
func makeContainer(t *testing.T, slots map[int]region.Slot) []byte {
	t.Helper()
	f := &region.File{}
	for i, s := range slots {
		f.Slots[i] = s
	}
	data, err := region.Encode(f)
	require.NoError(t, err)
	return data
}

func TestRewriteNoTransformsPreservesChunks(t *testing.T) {
	payload := makeChunk(t, core.CompressionZlib)
	in := makeContainer(t, map[int]region.Slot{
		3:  {Timestamp: 111, Scheme: core.CompressionZlib, Payload: payload},
		77: {Timestamp: 222, Scheme: core.CompressionZlib, Payload: payload},
	})

	out, report, err := RewriteFile(context.Background(), in, Transform{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.ChunksCopied)
	assert.Zero(t, report.ChunksRewritten)

	decoded, err := region.Decode(out)
	require.NoError(t, err)
	for _, i := range []int{3, 77} {
		assert.Equal(t, core.CompressionZlib, decoded.Slots[i].Scheme)
		assert.Equal(t, payload, decoded.Slots[i].Payload)
	}
	assert.Equal(t, uint32(111), decoded.Slots[3].Timestamp)
	assert.Equal(t, uint32(222), decoded.Slots[77].Timestamp)
}

func TestRewritePruneShrinksPayload(t *testing.T) {
	payload := makeChunk(t, core.CompressionZlib)
	in := makeContainer(t, map[int]region.Slot{0: {Scheme: core.CompressionZlib, Payload: payload}})

	out, report, err := RewriteFile(context.Background(), in, Transform{
		Prune: true,
		Rules: nbt.DefaultRules(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChunksRewritten)
	assert.Equal(t, 4, report.SubtreesPruned) // Heightmaps, isLightOn, SkyLight, BlockLight

	decoded, err := region.Decode(out)
	require.NoError(t, err)
	pruned := decoded.Slots[0]
	assert.Equal(t, core.CompressionZlib, pruned.Scheme, "pruning alone keeps the original scheme")
	assert.Less(t, len(pruned.Payload), len(payload))

	// The pruned chunk still parses and lost only the caches.
	codec, err := compressors.GetCompressor(pruned.Scheme)
	require.NoError(t, err)
	rc, err := codec.Decompress(pruned.Payload)
	require.NoError(t, err)
	raw := mustReadAll(t, rc)
	_, root, err := nbt.Decode(raw)
	require.NoError(t, err)
	assert.Nil(t, root.Get("Heightmaps"))
	assert.NotNil(t, root.Get("sections"))
}

func TestRewriteRecompressToZstd(t *testing.T) {
	payload := makeChunk(t, core.CompressionGZip)
	in := makeContainer(t, map[int]region.Slot{10: {Scheme: core.CompressionGZip, Payload: payload}})

	out, _, err := RewriteFile(context.Background(), in, Transform{
		Recompress: true,
		Scheme:     core.CompressionZstd,
		Level:      19,
	})
	require.NoError(t, err)

	decoded, err := region.Decode(out)
	require.NoError(t, err)
	slot := decoded.Slots[10]
	assert.Equal(t, core.CompressionZstd, slot.Scheme)

	// Content survives the scheme change.
	codec, err := compressors.GetCompressor(core.CompressionZstd)
	require.NoError(t, err)
	rc, err := codec.Decompress(slot.Payload)
	require.NoError(t, err)
	raw := mustReadAll(t, rc)
	_, root, err := nbt.Decode(raw)
	require.NoError(t, err)
	assert.NotNil(t, root.Get("DataVersion"))
}

func TestRewritePruneAndRecompressShrinks(t *testing.T) {
	payload := makeChunk(t, core.CompressionZlib)
	in := makeContainer(t, map[int]region.Slot{0: {Scheme: core.CompressionZlib, Payload: payload}})

	out, report, err := RewriteFile(context.Background(), in, Transform{
		Prune:      true,
		Rules:      nbt.DefaultRules(),
		Recompress: true,
		Scheme:     core.CompressionZstd,
		Level:      19,
	})
	require.NoError(t, err)

	decoded, err := region.Decode(out)
	require.NoError(t, err)
	assert.Less(t, len(decoded.Slots[0].Payload), len(payload))
	assert.Less(t, report.OutSize, report.InSize)
}

func TestRewriteEmptyRegion(t *testing.T) {
	in := makeContainer(t, nil)
	out, report, err := RewriteFile(context.Background(), in, Transform{Prune: true, Rules: nbt.DefaultRules()})
	require.NoError(t, err)
	assert.Len(t, out, core.HeaderSize)
	assert.Zero(t, report.ChunksRewritten)
}

func TestRewriteSlotErrorPolicies(t *testing.T) {
	good := makeChunk(t, core.CompressionZlib)
	corrupt := []byte{0xde, 0xad, 0xbe, 0xef}

	build := func() []byte {
		slots := map[int]region.Slot{
			5: {Scheme: core.CompressionZlib, Payload: corrupt},
		}
		for i := 0; i < 16; i++ {
			if i != 5 {
				slots[i] = region.Slot{Scheme: core.CompressionZlib, Payload: good}
			}
		}
		return makeContainer(t, slots)
	}

	t.Run("default abort", func(t *testing.T) {
		_, _, err := RewriteFile(context.Background(), build(), Transform{
			Prune: true, Rules: nbt.DefaultRules(),
		})
		require.Error(t, err)
		assert.True(t, core.IsSlotError(err))
	})

	t.Run("pass through", func(t *testing.T) {
		out, report, err := RewriteFile(context.Background(), build(), Transform{
			Prune: true, Rules: nbt.DefaultRules(),
			OnSlotError: SlotErrorPassThrough,
		})
		require.NoError(t, err)
		assert.Equal(t, 15, report.ChunksRewritten)
		assert.Equal(t, 1, report.ChunksCopied)
		require.Len(t, report.SlotErrors, 1)
		assert.Equal(t, 5, report.SlotErrors[0].Index)

		decoded, err := region.Decode(out)
		require.NoError(t, err)
		assert.Equal(t, corrupt, decoded.Slots[5].Payload, "bad slot copied through unchanged")
		assert.Equal(t, core.CompressionZlib, decoded.Slots[5].Scheme)
	})

	t.Run("drop", func(t *testing.T) {
		out, report, err := RewriteFile(context.Background(), build(), Transform{
			Prune: true, Rules: nbt.DefaultRules(),
			OnSlotError: SlotErrorDrop,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.ChunksDropped)

		decoded, err := region.Decode(out)
		require.NoError(t, err)
		assert.False(t, decoded.Slots[5].Occupied())
		assert.Equal(t, 15, decoded.OccupiedCount())
	})
}

func TestRewriteUnsupportedSchemeIsSlotError(t *testing.T) {
	in := makeContainer(t, map[int]region.Slot{
		0: {Scheme: core.CompressionType(0x82), Payload: []byte{1, 2, 3}},
	})
	_, _, err := RewriteFile(context.Background(), in, Transform{
		Prune: true, Rules: nbt.DefaultRules(),
	})
	require.ErrorIs(t, err, core.ErrUnsupportedScheme)
	assert.True(t, core.IsSlotError(err))
}

func TestRewriteHeaderMismatch(t *testing.T) {
	_, _, err := RewriteFile(context.Background(), make([]byte, 100), Transform{})
	require.ErrorIs(t, err, core.ErrHeaderSizeMismatch)
}

func TestRewriteCancelled(t *testing.T) {
	payload := makeChunk(t, core.CompressionZlib)
	in := makeContainer(t, map[int]region.Slot{0: {Scheme: core.CompressionZlib, Payload: payload}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := RewriteFile(ctx, in, Transform{Prune: true, Rules: nbt.DefaultRules()})
	require.ErrorIs(t, err, context.Canceled)
}
