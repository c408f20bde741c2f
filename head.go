package vstream

import (
	"encoding/binary"
	"fmt"
)

// HashBytes is the width of the hash-tree root digest.
const HashBytes = 32

// HeadBytes is the stable on-disk/on-wire layout of a Head: id (40) + hash
// (32) + len (8).
const HeadBytes = IDBytes + HashBytes + 8

// EmptyRootHash is the fixed root digest of the empty input, per spec.md §6.
// It coincides with BLAKE3's well-known empty-input digest.
var EmptyRootHash = [HashBytes]byte{
	0xaf, 0x13, 0x49, 0xb9, 0xf5, 0xf9, 0xa1, 0xa6,
	0xa0, 0x40, 0x4d, 0xea, 0x36, 0xdc, 0xc9, 0x49,
	0x9b, 0xcb, 0x25, 0xc9, 0xad, 0xc1, 0x12, 0xb7,
	0xcc, 0x9a, 0x93, 0xca, 0xe4, 0x1f, 0x32, 0x62,
}

// EmptyOutboard is the outboard byte sequence for a zero-length stream: the
// 8-byte little-endian encoding of length 0.
var EmptyOutboard = [8]byte{}

// Head binds a stream's identity, byte length, and hash-tree root digest. A
// freshly created head has Len == 0 and Hash == EmptyRootHash.
type Head struct {
	ID   StreamId
	Hash [HashBytes]byte
	Len  uint64
}

// NewEmptyHead constructs the head of a freshly created, never-appended-to
// stream.
func NewEmptyHead(id StreamId) Head {
	return Head{ID: id, Hash: EmptyRootHash, Len: 0}
}

// Bytes returns the canonical 80-byte layout used both for storage and as
// the exact signing input.
func (h Head) Bytes() [HeadBytes]byte {
	var b [HeadBytes]byte
	h.ID.PutBytes(b[:IDBytes])
	copy(b[IDBytes:IDBytes+HashBytes], h.Hash[:])
	binary.LittleEndian.PutUint64(b[IDBytes+HashBytes:], h.Len)
	return b
}

// PutBytes writes the canonical 80-byte layout into dst, which must be at
// least HeadBytes long.
func (h Head) PutBytes(dst []byte) {
	h.ID.PutBytes(dst[:IDBytes])
	copy(dst[IDBytes:IDBytes+HashBytes], h.Hash[:])
	binary.LittleEndian.PutUint64(dst[IDBytes+HashBytes:HeadBytes], h.Len)
}

// HeadFromBytes decodes the canonical 80-byte layout produced by Bytes.
func HeadFromBytes(b []byte) (Head, error) {
	if len(b) != HeadBytes {
		return Head{}, fmt.Errorf("vstream: head decode: expected %d bytes, got %d", HeadBytes, len(b))
	}
	id, err := StreamIdFromBytes(b[:IDBytes])
	if err != nil {
		return Head{}, err
	}
	var h Head
	h.ID = id
	copy(h.Hash[:], b[IDBytes:IDBytes+HashBytes])
	h.Len = binary.LittleEndian.Uint64(b[IDBytes+HashBytes:])
	return h, nil
}
