package node

import (
	"encoding/binary"
	"sort"
)

// Internal node layout:
//
//	common header (6 bytes)
//	num_keys     u32  @ 6
//	right_child  u32  @ 10
//	cells        [{child u32, key u32}, ...] starting @ 14
//
// right_child points at the subtree holding every key greater than
// the last cell's key. InternalNodeMaxCells is deliberately small (as
// in the teaching reference) so that internal splits are reachable
// without needing thousands of rows; a production fanout would be
// much larger, but nothing in the spec observes this value directly.
const (
	numKeysOffset    = CommonNodeHeaderSize
	rightChildOffset = numKeysOffset + 4
	internalHeaderSize = rightChildOffset + 4

	internalCellChildSize = 4
	internalCellKeySize   = 4
	internalCellSize      = internalCellChildSize + internalCellKeySize

	InternalNodeMaxCells = 3
)

// InitInternal resets page as an empty, non-root internal node.
func InitInternal(page []byte) {
	SetNodeType(page, TypeInternal)
	SetIsRoot(page, false)
	setNumKeys(page, 0)
	SetRightChild(page, 0)
}

// NumKeys returns the number of keys currently stored.
func NumKeys(page []byte) uint32 {
	return binary.LittleEndian.Uint32(page[numKeysOffset : numKeysOffset+4])
}

func setNumKeys(page []byte, n uint32) {
	binary.LittleEndian.PutUint32(page[numKeysOffset:numKeysOffset+4], n)
}

// SetNumKeys overwrites the key count directly. Used by the tree when
// redistributing cells across a split; ordinary inserts go through
// InsertInternalCell instead.
func SetNumKeys(page []byte, n uint32) {
	setNumKeys(page, n)
}

// RightChild returns the rightmost subtree's page number.
func RightChild(page []byte) uint32 {
	return binary.LittleEndian.Uint32(page[rightChildOffset : rightChildOffset+4])
}

// SetRightChild sets the rightmost subtree's page number.
func SetRightChild(page []byte, child uint32) {
	binary.LittleEndian.PutUint32(page[rightChildOffset:rightChildOffset+4], child)
}

func internalCellOffset(i int) int {
	return internalHeaderSize + i*internalCellSize
}

// InternalChild returns the child pointer of cell i (the subtree
// whose keys are <= InternalKey(page, i)).
func InternalChild(page []byte, i int) uint32 {
	off := internalCellOffset(i)
	return binary.LittleEndian.Uint32(page[off : off+internalCellChildSize])
}

// SetInternalChild sets the child pointer of cell i.
func SetInternalChild(page []byte, i int, child uint32) {
	off := internalCellOffset(i)
	binary.LittleEndian.PutUint32(page[off:off+internalCellChildSize], child)
}

// InternalKey returns the separator key of cell i.
func InternalKey(page []byte, i int) uint32 {
	off := internalCellOffset(i) + internalCellChildSize
	return binary.LittleEndian.Uint32(page[off : off+internalCellKeySize])
}

// SetInternalKey sets the separator key of cell i.
func SetInternalKey(page []byte, i int, key uint32) {
	off := internalCellOffset(i) + internalCellChildSize
	binary.LittleEndian.PutUint32(page[off:off+internalCellKeySize], key)
}

// InternalFind returns the smallest cell index i with InternalKey(page, i) >= key.
// The result may equal NumKeys(page), meaning "descend into right_child".
func InternalFind(page []byte, key uint32) int {
	n := int(NumKeys(page))
	return sort.Search(n, func(i int) bool {
		return InternalKey(page, i) >= key
	})
}

// ChildForKey returns the child page to descend into for key.
func ChildForKey(page []byte, key uint32) uint32 {
	i := InternalFind(page, key)
	if i == int(NumKeys(page)) {
		return RightChild(page)
	}
	return InternalChild(page, i)
}

// InsertInternalCell shifts cells [at, NumKeys) one slot right and
// writes a new {child, key} cell at index at. Callers must have
// already verified the node has room.
func InsertInternalCell(page []byte, at int, child, key uint32) {
	n := int(NumKeys(page))
	for i := n; i > at; i-- {
		c := InternalChild(page, i-1)
		k := InternalKey(page, i-1)
		SetInternalChild(page, i, c)
		SetInternalKey(page, i, k)
	}
	SetInternalChild(page, at, child)
	SetInternalKey(page, at, key)
	setNumKeys(page, uint32(n+1))
}
