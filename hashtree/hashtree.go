// Package hashtree implements the hash-tree adapter contract: a chunked
// BLAKE3 Merkle commitment over a byte stream, producing an outboard side
// table and a 32-byte root digest, with slice extraction and verification
// against that root.
//
// The tree is an append-only accumulator generalized from the teacher
// repo's Merkle Mountain Range construction (one leaf per fixed-size byte
// chunk instead of one leaf per log entry): chunks are hashed as leaves,
// equal-height subtrees are merged as each new leaf arrives, and the
// surviving "peaks" are bagged right-to-left into a single root. The
// engine package treats everything in this package as a black box -- it
// never interprets outboard or slice bytes itself.
package hashtree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"lukechampine.com/blake3"
)

// HashSize is the width of every digest produced by this package.
const HashSize = 32

// Hash is a tree node digest.
type Hash [HashSize]byte

// DefaultChunkSize is the default leaf chunk width in bytes.
const DefaultChunkSize = 4096

// EmptyRoot is the fixed root digest of the empty input. It is BLAKE3's
// well-known empty-input digest, reproduced literally so Encode(nil) need
// not run the (degenerate) tree construction.
var EmptyRoot = Hash{
	0xaf, 0x13, 0x49, 0xb9, 0xf5, 0xf9, 0xa1, 0xa6,
	0xa0, 0x40, 0x4d, 0xea, 0x36, 0xdc, 0xc9, 0x49,
	0x9b, 0xcb, 0x25, 0xc9, 0xad, 0xc1, 0x12, 0xb7,
	0xcc, 0x9a, 0x93, 0xca, 0xe4, 0x1f, 0x32, 0x62,
}

// EmptyOutboard is the outboard for a zero-length input: the 8-byte
// little-endian encoding of length 0.
var EmptyOutboard = []byte{0, 0, 0, 0, 0, 0, 0, 0}

// ErrIntegrity is returned by DecodeSlice when the supplied slice bytes do
// not verify against the supplied root.
var ErrIntegrity = errors.New("hashtree: slice failed integrity verification")

// ErrBadChunkSize is returned when a non-positive chunk size is supplied.
var ErrBadChunkSize = errors.New("hashtree: chunk size must be positive")

const (
	leafDomain = 0x00
	nodeDomain = 0x01
)

func leafHash(chunk []byte) Hash {
	buf := make([]byte, 0, len(chunk)+1)
	buf = append(buf, leafDomain)
	buf = append(buf, chunk...)
	return Hash(blake3.Sum256(buf))
}

func nodeHash(left, right Hash) Hash {
	buf := make([]byte, 0, 2*HashSize+1)
	buf = append(buf, nodeDomain)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return Hash(blake3.Sum256(buf))
}

// leafCount returns the number of fixed-size chunks total bytes of length
// totalLen split into under chunkSize, with the last chunk possibly short.
func leafCount(totalLen uint64, chunkSize int) uint64 {
	if totalLen == 0 {
		return 0
	}
	cs := uint64(chunkSize)
	return (totalLen + cs - 1) / cs
}

// nodeCount returns the total number of flat-array node slots (leaves plus
// internal merge nodes) an append-only accumulator occupies for n leaves.
// This is the standard Merkle Mountain Range size identity: 2n - popcount(n).
func nodeCount(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return 2*n - uint64(bits.OnesCount64(n))
}

// outboardHeader returns the 8-byte little-endian total-length prefix every
// outboard begins with.
func outboardHeader(totalLen uint64) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], totalLen)
	return b
}

func decodeOutboardHeader(outboard []byte) (uint64, error) {
	if len(outboard) < 8 {
		return 0, fmt.Errorf("hashtree: outboard too short (%d bytes)", len(outboard))
	}
	return binary.LittleEndian.Uint64(outboard[:8]), nil
}

func hashAt(outboard []byte, pos uint64) (Hash, error) {
	off := 8 + pos*HashSize
	if uint64(len(outboard)) < off+HashSize {
		return Hash{}, fmt.Errorf("hashtree: outboard truncated reading node %d", pos)
	}
	var h Hash
	copy(h[:], outboard[off:off+HashSize])
	return h, nil
}
