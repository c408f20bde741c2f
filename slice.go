package vstream

import (
	"errors"
	"fmt"
	"os"

	"github.com/nimbusledger/vstream/hashtree"
)

// Slice is the sole exchange unit with remote peers (C7): a signed head
// snapshot plus the hash-tree proof bytes for one contiguous range. It
// serializes deterministically so identical ranges of identical streams
// produce byte-identical wire forms, supporting content-addressed transport
// caching.
type Slice struct {
	Head SignedHead
	Data []byte
}

// Bytes returns the deterministic wire encoding: the 144-byte SignedHead
// immediately followed by the proof-carrying data bytes.
func (s Slice) Bytes() []byte {
	b := make([]byte, SignedHeadBytes+len(s.Data))
	s.Head.PutBytes(b[:SignedHeadBytes])
	copy(b[SignedHeadBytes:], s.Data)
	return b
}

// SliceFromBytes decodes the wire encoding produced by Bytes.
func SliceFromBytes(b []byte) (Slice, error) {
	if len(b) < SignedHeadBytes {
		return Slice{}, fmt.Errorf("vstream: slice decode: too short (%d bytes)", len(b))
	}
	head, err := SignedHeadFromBytes(b[:SignedHeadBytes])
	if err != nil {
		return Slice{}, err
	}
	return Slice{Head: head, Data: b[SignedHeadBytes:]}, nil
}

// Verify decodes and verifies s against its own embedded head, returning
// the verified plaintext of [start, start+length). It fails with
// ErrIntegrity if the slice does not match s.Head.Head.Hash.
func (s Slice) Verify(start, length uint64) ([]byte, error) {
	data, err := hashtree.DecodeSlice(s.Data, hashtree.Hash(s.Head.Head.Hash), start, length)
	if err != nil {
		if errors.Is(err, hashtree.ErrIntegrity) {
			return nil, ErrIntegrity
		}
		return nil, err
	}
	return data, nil
}

// Extract fills a Slice with the current signed head and the proof-carrying
// bytes for [start, start+length), per C5/C7. Fails with ErrNotFound if id
// does not exist, or ErrRangeOutOfBounds if the range exceeds the current
// head's length.
func (e *Engine) Extract(id StreamId, start, length uint64) (Slice, error) {
	rec, exists, err := e.getRecord(id)
	if err != nil {
		return Slice{}, err
	}
	if !exists {
		return Slice{}, ErrNotFound
	}
	if start > rec.head.Head.Len || start+length > rec.head.Head.Len {
		return Slice{}, ErrRangeOutOfBounds
	}

	f, err := os.Open(e.streamPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Slice{}, ErrNotFound
		}
		return Slice{}, fmt.Errorf("vstream: opening data file for %s: %w", id, err)
	}
	defer f.Close()

	data, err := hashtree.ExtractSlice(f, rec.outboard, e.chunkSize, start, length)
	if err != nil {
		return Slice{}, fmt.Errorf("vstream: extracting slice for %s: %w", id, err)
	}

	return Slice{Head: rec.head, Data: data}, nil
}
