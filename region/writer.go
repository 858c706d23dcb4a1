package region

import (
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/regionpress/core"
)

// Encode serializes a container with a freshly computed sector layout:
// occupied slots are laid out sequentially after the header in slot
// order, each record padded to a whole number of sectors. Slot
// timestamps are written back as stored. The result is always a
// multiple of the sector size; a fully empty region encodes to the
// bare 8 KiB header.
//
// Sector occupancy is recomputed from scratch every time because
// pruning shrinks payloads and recompression changes their length
// unpredictably; the input layout is never patched in place.
func Encode(f *File) ([]byte, error) {
	total := int64(core.HeaderSize)
	for i := range f.Slots {
		slot := &f.Slots[i]
		if slot.Payload == nil {
			continue
		}
		sectors := core.SectorCount(len(slot.Payload))
		if sectors > 0xff {
			return nil, fmt.Errorf("%w: slot %d needs %d sectors", core.ErrSlotTooLarge, i, sectors)
		}
		total += int64(sectors) * core.SectorSize
	}

	out := make([]byte, total)
	offset := int64(core.HeaderSectors)
	for i := range f.Slots {
		slot := &f.Slots[i]
		binary.BigEndian.PutUint32(out[core.SlotCount*4+i*4:], slot.Timestamp)
		if slot.Payload == nil {
			continue
		}

		sectors := int64(core.SectorCount(len(slot.Payload)))
		if offset > 0xffffff-sectors {
			return nil, fmt.Errorf("%w: slot %d at sector %d exceeds 3-byte offset", core.ErrSlotTooLarge, i, offset)
		}
		binary.BigEndian.PutUint32(out[i*4:], uint32(offset)<<8|uint32(sectors))

		start := offset * core.SectorSize
		// Record length counts the scheme byte plus the payload.
		binary.BigEndian.PutUint32(out[start:], uint32(len(slot.Payload)+1))
		out[start+4] = byte(slot.Scheme)
		copy(out[start+5:], slot.Payload)
		// The remainder of the final sector stays zero.

		offset += sectors
	}
	return out, nil
}
