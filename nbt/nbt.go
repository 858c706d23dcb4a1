// Package nbt implements the binary tag tree format chunk payloads are
// stored in: a tagged variant over fixed-width numbers, byte/int/long
// arrays, UTF-8 strings, homogeneous lists and order-preserving named
// compounds. Decoding then re-encoding an unmodified tree reproduces
// the input byte for byte.
package nbt

import "fmt"

// TagType identifies the payload type of a tree node.
type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = [...]string{
	"End", "Byte", "Short", "Int", "Long", "Float", "Double",
	"ByteArray", "String", "List", "Compound", "IntArray", "LongArray",
}

func (t TagType) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TagType(0x%02x)", byte(t))
}

func (t TagType) valid() bool {
	return t <= TagLongArray
}

// Entry is one named child of a compound.
type Entry struct {
	Name  string
	Value *Node
}

// Node is a tagged tree node. Exactly the fields implied by Type are
// meaningful; the rest stay zero. Compound children keep their
// insertion order, which the encoder writes back unchanged.
type Node struct {
	Type TagType

	Byte   int8
	Short  int16
	Int    int32
	Long   int64
	Float  float32
	Double float64

	Bytes []byte
	Str   string

	// Elem is the element tag of a list; preserved even for empty
	// lists so re-encoding is exact.
	Elem TagType
	List []*Node

	Compound []Entry

	Ints  []int32
	Longs []int64
}

// Get returns the named child of a compound node, or nil.
func (n *Node) Get(name string) *Node {
	if n == nil || n.Type != TagCompound {
		return nil
	}
	for _, e := range n.Compound {
		if e.Name == name {
			return e.Value
		}
	}
	return nil
}

// Remove deletes the named child of a compound node, preserving the
// order of the remaining entries. Returns whether the key existed.
func (n *Node) Remove(name string) bool {
	if n == nil || n.Type != TagCompound {
		return false
	}
	for i, e := range n.Compound {
		if e.Name == name {
			n.Compound = append(n.Compound[:i], n.Compound[i+1:]...)
			return true
		}
	}
	return false
}

// Set appends or replaces the named child of a compound node.
func (n *Node) Set(name string, v *Node) {
	for i, e := range n.Compound {
		if e.Name == name {
			n.Compound[i].Value = v
			return
		}
	}
	n.Compound = append(n.Compound, Entry{Name: name, Value: v})
}

// Len returns the child count of a compound or list node.
func (n *Node) Len() int {
	switch n.Type {
	case TagCompound:
		return len(n.Compound)
	case TagList:
		return len(n.List)
	default:
		return 0
	}
}
