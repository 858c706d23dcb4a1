package nbt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a named root compound back to its binary form. It
// is the exact structural inverse of Decode: compound entries are
// written in stored order, never sorted.
func Encode(name string, root *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, name, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo serializes into an existing buffer.
func EncodeTo(buf *bytes.Buffer, name string, root *Node) error {
	if root == nil || root.Type != TagCompound {
		return fmt.Errorf("root node must be a Compound")
	}
	buf.WriteByte(byte(TagCompound))
	if err := writeString(buf, name); err != nil {
		return err
	}
	return writePayload(buf, root)
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes exceeds length prefix", len(s))
	}
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(s)))
	buf.Write(lb[:])
	buf.WriteString(s)
	return nil
}

func writeLength(buf *bytes.Buffer, n int) error {
	if n > math.MaxInt32 {
		return fmt.Errorf("length %d exceeds int32", n)
	}
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(n))
	buf.Write(lb[:])
	return nil
}

func writePayload(buf *bytes.Buffer, n *Node) error {
	var scratch [8]byte
	switch n.Type {
	case TagByte:
		buf.WriteByte(byte(n.Byte))

	case TagShort:
		binary.BigEndian.PutUint16(scratch[:2], uint16(n.Short))
		buf.Write(scratch[:2])

	case TagInt:
		binary.BigEndian.PutUint32(scratch[:4], uint32(n.Int))
		buf.Write(scratch[:4])

	case TagLong:
		binary.BigEndian.PutUint64(scratch[:8], uint64(n.Long))
		buf.Write(scratch[:8])

	case TagFloat:
		binary.BigEndian.PutUint32(scratch[:4], math.Float32bits(n.Float))
		buf.Write(scratch[:4])

	case TagDouble:
		binary.BigEndian.PutUint64(scratch[:8], math.Float64bits(n.Double))
		buf.Write(scratch[:8])

	case TagByteArray:
		if err := writeLength(buf, len(n.Bytes)); err != nil {
			return err
		}
		buf.Write(n.Bytes)

	case TagString:
		if err := writeString(buf, n.Str); err != nil {
			return err
		}

	case TagList:
		if len(n.List) > 0 && n.Elem == TagEnd {
			return fmt.Errorf("non-empty list with End element tag")
		}
		buf.WriteByte(byte(n.Elem))
		if err := writeLength(buf, len(n.List)); err != nil {
			return err
		}
		for _, child := range n.List {
			if child.Type != n.Elem {
				return fmt.Errorf("list element is %s, want %s", child.Type, n.Elem)
			}
			if err := writePayload(buf, child); err != nil {
				return err
			}
		}

	case TagCompound:
		for _, e := range n.Compound {
			buf.WriteByte(byte(e.Value.Type))
			if err := writeString(buf, e.Name); err != nil {
				return err
			}
			if err := writePayload(buf, e.Value); err != nil {
				return err
			}
		}
		buf.WriteByte(byte(TagEnd))

	case TagIntArray:
		if err := writeLength(buf, len(n.Ints)); err != nil {
			return err
		}
		for _, v := range n.Ints {
			binary.BigEndian.PutUint32(scratch[:4], uint32(v))
			buf.Write(scratch[:4])
		}

	case TagLongArray:
		if err := writeLength(buf, len(n.Longs)); err != nil {
			return err
		}
		for _, v := range n.Longs {
			binary.BigEndian.PutUint64(scratch[:8], uint64(v))
			buf.Write(scratch[:8])
		}

	default:
		return fmt.Errorf("cannot encode tag %s", n.Type)
	}
	return nil
}
