package region

import (
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/regionpress/core"
)

// Decode parses a whole region container.
//
// A file shorter than the fixed header fails with
// core.ErrHeaderSizeMismatch. Per-slot defects (offset or length past
// the file bounds, zero-length records) are recorded on the slot as
// core.ErrTruncatedContainer and do not fail the call; the caller's
// policy decides whether they abort the file.
func Decode(data []byte) (*File, error) {
	if len(data) < core.HeaderSize {
		return nil, fmt.Errorf("%w: file is %d bytes, header needs %d",
			core.ErrHeaderSizeMismatch, len(data), core.HeaderSize)
	}

	f := &File{}
	for i := 0; i < core.SlotCount; i++ {
		loc := binary.BigEndian.Uint32(data[i*4:])
		ts := binary.BigEndian.Uint32(data[core.SlotCount*4+i*4:])

		f.Slots[i].Timestamp = ts
		if loc == 0 {
			continue
		}

		offset := int64(loc >> 8)
		sectors := int64(loc & 0xff)
		if err := readChunkRecord(data, &f.Slots[i], offset, sectors); err != nil {
			f.Slots[i].Err = err
		}
	}
	return f, nil
}

func readChunkRecord(data []byte, slot *Slot, offset, sectors int64) error {
	if offset < core.HeaderSectors {
		return fmt.Errorf("%w: chunk offset %d overlaps header", core.ErrTruncatedContainer, offset)
	}
	if sectors == 0 {
		return fmt.Errorf("%w: zero sector count", core.ErrTruncatedContainer)
	}

	start := offset * core.SectorSize
	if start+4 > int64(len(data)) {
		return fmt.Errorf("%w: chunk at sector %d starts past end of file", core.ErrTruncatedContainer, offset)
	}

	length := int64(binary.BigEndian.Uint32(data[start:]))
	if length == 0 {
		return fmt.Errorf("%w: zero-length chunk record", core.ErrTruncatedContainer)
	}
	if start+4+length > int64(len(data)) {
		return fmt.Errorf("%w: chunk of %d bytes at sector %d exceeds file size %d",
			core.ErrTruncatedContainer, length, offset, len(data))
	}

	// length counts the scheme byte plus the payload.
	slot.Scheme = core.CompressionType(data[start+4])
	payload := make([]byte, length-1)
	copy(payload, data[start+5:start+4+length])
	slot.Payload = payload
	return nil
}
