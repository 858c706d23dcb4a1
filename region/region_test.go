package region

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/INLOpen/regionpress/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestFile() *File {
	f := &File{}
	f.Slots[0] = Slot{Timestamp: 1700000000, Scheme: core.CompressionZlib, Payload: []byte("zlib-payload")}
	f.Slots[33] = Slot{Timestamp: 1700000001, Scheme: core.CompressionGZip, Payload: bytes.Repeat([]byte{0xab}, 5000)}
	f.Slots[1023] = Slot{Timestamp: 0, Scheme: core.CompressionNone, Payload: []byte{}}
	return f
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := buildTestFile()
	encoded, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Empty(t, decoded.SlotErrors())
	assert.Equal(t, 3, decoded.OccupiedCount())

	for _, i := range []int{0, 33, 1023} {
		assert.Equal(t, f.Slots[i].Scheme, decoded.Slots[i].Scheme, "slot %d scheme", i)
		assert.Equal(t, f.Slots[i].Payload, decoded.Slots[i].Payload, "slot %d payload", i)
		assert.Equal(t, f.Slots[i].Timestamp, decoded.Slots[i].Timestamp, "slot %d timestamp", i)
	}
}

func TestEncodeSectorInvariants(t *testing.T) {
	f := buildTestFile()
	encoded, err := Encode(f)
	require.NoError(t, err)

	assert.Zero(t, len(encoded)%core.SectorSize, "output length must be a sector multiple")

	// Collect occupied byte ranges from the location table and check
	// they are pairwise disjoint and after the header.
	type span struct{ start, end int64 }
	var spans []span
	for i := 0; i < core.SlotCount; i++ {
		loc := binary.BigEndian.Uint32(encoded[i*4:])
		if loc == 0 {
			continue
		}
		offset := int64(loc >> 8)
		sectors := int64(loc & 0xff)
		require.GreaterOrEqual(t, offset, int64(core.HeaderSectors))

		// Sector count is the minimum covering the record.
		length := int64(binary.BigEndian.Uint32(encoded[offset*core.SectorSize:]))
		require.Equal(t, sectors, int64(core.SectorCount(int(length-1))))

		spans = append(spans, span{offset * core.SectorSize, (offset + sectors) * core.SectorSize})
	}
	require.Len(t, spans, 3)
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			disjoint := spans[i].end <= spans[j].start || spans[j].end <= spans[i].start
			assert.True(t, disjoint, "slots %d and %d overlap", i, j)
		}
	}
}

func TestEncodeEmptyRegion(t *testing.T) {
	encoded, err := Encode(&File{})
	require.NoError(t, err)
	assert.Len(t, encoded, core.HeaderSize)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Zero(t, decoded.OccupiedCount())
}

func TestEncodePayloadAtSectorBoundary(t *testing.T) {
	for _, payloadLen := range []int{
		core.SectorSize - core.ChunkHeaderSize,     // exactly one sector
		core.SectorSize - core.ChunkHeaderSize + 1, // spills into a second
	} {
		f := &File{}
		f.Slots[7] = Slot{Scheme: core.CompressionNone, Payload: bytes.Repeat([]byte{0x01}, payloadLen)}
		encoded, err := Encode(f)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Empty(t, decoded.SlotErrors())
		assert.Equal(t, f.Slots[7].Payload, decoded.Slots[7].Payload)
	}
}

func TestDecodeHeaderTooShort(t *testing.T) {
	_, err := Decode(make([]byte, core.HeaderSize-1))
	require.ErrorIs(t, err, core.ErrHeaderSizeMismatch)

	_, err = Decode(nil)
	require.ErrorIs(t, err, core.ErrHeaderSizeMismatch)
}

func TestDecodeTruncatedRecordIsSlotError(t *testing.T) {
	f := buildTestFile()
	encoded, err := Encode(f)
	require.NoError(t, err)

	// Cut the file just after slot 0's record so slot 33's range
	// dangles past the end.
	cut := encoded[:core.HeaderSize+core.SectorSize]
	decoded, err := Decode(cut)
	require.NoError(t, err, "a truncated record must not fail the whole file")

	errs := decoded.SlotErrors()
	require.Len(t, errs, 2)
	for _, slotErr := range errs {
		assert.ErrorIs(t, slotErr, core.ErrTruncatedContainer)
	}
	// Slot 0 is intact.
	assert.NoError(t, decoded.Slots[0].Err)
	assert.Equal(t, f.Slots[0].Payload, decoded.Slots[0].Payload)
}

func TestDecodeRejectsHeaderOverlap(t *testing.T) {
	f := buildTestFile()
	encoded, err := Encode(f)
	require.NoError(t, err)

	// Point slot 0 into the header region.
	binary.BigEndian.PutUint32(encoded[0:], 1<<8|1)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Error(t, decoded.Slots[0].Err)
	assert.ErrorIs(t, decoded.Slots[0].Err, core.ErrTruncatedContainer)
}

func TestEncodeRejectsOversizedChunk(t *testing.T) {
	f := &File{}
	// 256 sectors do not fit the 1-byte sector count.
	f.Slots[0] = Slot{Scheme: core.CompressionNone, Payload: make([]byte, 256*core.SectorSize)}
	_, err := Encode(f)
	require.ErrorIs(t, err, core.ErrSlotTooLarge)
}

func TestTimestampsPreservedForEmptySlots(t *testing.T) {
	f := &File{}
	f.Slots[5].Timestamp = 42 // empty slot, timestamp still round-trips
	encoded, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), decoded.Slots[5].Timestamp)
	assert.False(t, decoded.Slots[5].Occupied())
}
