// Package region implements the Anvil region container codec: a fixed
// 8 KiB header of location and timestamp tables followed by chunk
// records aligned to 4096-byte sectors.
package region

import (
	"github.com/INLOpen/regionpress/core"
)

// Slot is one of the 1024 chunk slots of a container.
//
// A slot is occupied when it holds payload bytes or a decode error.
// Payload is the compressed chunk data without the length prefix or
// scheme byte, kept verbatim so a slot can be copied through untouched.
type Slot struct {
	// Timestamp is the slot's last-modified time in epoch seconds,
	// preserved as read; a rewrite does not re-stamp slots.
	Timestamp uint32
	// Scheme is the compression tag byte of the stored payload.
	Scheme core.CompressionType
	// Payload is the compressed chunk bytes.
	Payload []byte
	// Err records a decode failure confined to this slot. The caller's
	// slot-error policy decides what becomes of it.
	Err error
}

// Occupied reports whether the slot holds chunk data (or held data the
// decoder could not read).
func (s *Slot) Occupied() bool {
	return s.Payload != nil || s.Err != nil
}

// Clear empties the slot.
func (s *Slot) Clear() {
	*s = Slot{}
}

// File is a fully decoded region container.
type File struct {
	Slots [core.SlotCount]Slot
}

// OccupiedCount returns the number of occupied slots.
func (f *File) OccupiedCount() int {
	n := 0
	for i := range f.Slots {
		if f.Slots[i].Occupied() {
			n++
		}
	}
	return n
}

// SlotErrors collects the decode errors recorded on individual slots.
func (f *File) SlotErrors() []*core.SlotError {
	var errs []*core.SlotError
	for i := range f.Slots {
		if f.Slots[i].Err != nil {
			errs = append(errs, &core.SlotError{Index: i, Err: f.Slots[i].Err})
		}
	}
	return errs
}
