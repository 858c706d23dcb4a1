package nbt

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/INLOpen/regionpress/core"
)

// Decode parses a decompressed chunk payload into its root compound.
// The returned name is the root tag's name (empty for chunk data, but
// preserved for exact re-encoding). Any structural defect fails with an
// error wrapping core.ErrMalformedTree; inputs nesting deeper than
// core.MaxTreeDepth are rejected the same way instead of being
// recursed into.
func Decode(data []byte) (string, *Node, error) {
	d := &decoder{data: data}

	tag, err := d.readTagByte()
	if err != nil {
		return "", nil, err
	}
	if tag != TagCompound {
		return "", nil, d.corrupt("root tag is %s, want Compound", tag)
	}
	name, err := d.readString()
	if err != nil {
		return "", nil, err
	}
	root, err := d.readPayload(TagCompound, 0)
	if err != nil {
		return "", nil, err
	}
	if d.pos != len(d.data) {
		return "", nil, d.corrupt("%d trailing bytes after root tag", len(d.data)-d.pos)
	}
	return name, root, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s (offset %d)", core.ErrMalformedTree, fmt.Sprintf(format, args...), d.pos)
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, d.corrupt("need %d bytes, have %d", n, len(d.data)-d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readTagByte() (TagType, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	t := TagType(b[0])
	if !t.valid() {
		return 0, d.corrupt("invalid tag byte 0x%02x", b[0])
	}
	return t, nil
}

func (d *decoder) readString() (string, error) {
	lb, err := d.take(2)
	if err != nil {
		return "", err
	}
	b, err := d.take(int(binary.BigEndian.Uint16(lb)))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", d.corrupt("string is not valid UTF-8")
	}
	return string(b), nil
}

func (d *decoder) readLength() (int, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	n := int32(binary.BigEndian.Uint32(b))
	if n < 0 {
		return 0, d.corrupt("negative length %d", n)
	}
	return int(n), nil
}

func (d *decoder) readPayload(tag TagType, depth int) (*Node, error) {
	if depth > core.MaxTreeDepth {
		return nil, d.corrupt("nesting exceeds depth limit %d", core.MaxTreeDepth)
	}

	n := &Node{Type: tag}
	switch tag {
	case TagByte:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		n.Byte = int8(b[0])

	case TagShort:
		b, err := d.take(2)
		if err != nil {
			return nil, err
		}
		n.Short = int16(binary.BigEndian.Uint16(b))

	case TagInt:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		n.Int = int32(binary.BigEndian.Uint32(b))

	case TagLong:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		n.Long = int64(binary.BigEndian.Uint64(b))

	case TagFloat:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		n.Float = math.Float32frombits(binary.BigEndian.Uint32(b))

	case TagDouble:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		n.Double = math.Float64frombits(binary.BigEndian.Uint64(b))

	case TagByteArray:
		length, err := d.readLength()
		if err != nil {
			return nil, err
		}
		b, err := d.take(length)
		if err != nil {
			return nil, err
		}
		n.Bytes = append([]byte(nil), b...)

	case TagString:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		n.Str = s

	case TagList:
		elem, err := d.readTagByte()
		if err != nil {
			return nil, err
		}
		length, err := d.readLength()
		if err != nil {
			return nil, err
		}
		if elem == TagEnd && length > 0 {
			return nil, d.corrupt("list of End tags with %d elements", length)
		}
		n.Elem = elem
		for i := 0; i < length; i++ {
			child, err := d.readPayload(elem, depth+1)
			if err != nil {
				return nil, err
			}
			n.List = append(n.List, child)
		}

	case TagCompound:
		for {
			childTag, err := d.readTagByte()
			if err != nil {
				return nil, err
			}
			if childTag == TagEnd {
				break
			}
			name, err := d.readString()
			if err != nil {
				return nil, err
			}
			if n.Get(name) != nil {
				return nil, d.corrupt("duplicate compound key %q", name)
			}
			child, err := d.readPayload(childTag, depth+1)
			if err != nil {
				return nil, err
			}
			n.Compound = append(n.Compound, Entry{Name: name, Value: child})
		}

	case TagIntArray:
		length, err := d.readLength()
		if err != nil {
			return nil, err
		}
		b, err := d.take(length * 4)
		if err != nil {
			return nil, err
		}
		n.Ints = make([]int32, length)
		for i := range n.Ints {
			n.Ints[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
		}

	case TagLongArray:
		length, err := d.readLength()
		if err != nil {
			return nil, err
		}
		b, err := d.take(length * 8)
		if err != nil {
			return nil, err
		}
		n.Longs = make([]int64, length)
		for i := range n.Longs {
			n.Longs[i] = int64(binary.BigEndian.Uint64(b[i*8:]))
		}

	default:
		return nil, d.corrupt("tag %s has no payload", tag)
	}
	return n, nil
}
