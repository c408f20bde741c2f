package vstream

import "fmt"

// record is the persistent per-stream KV value: a signed head followed by
// the hash-tree's outboard bytes. The encoding is a private detail of the
// engine -- external consumers only ever see Head/SignedHead/Slice -- but is
// stable within a store instance.
//
// Layout: the fixed 144-byte SignedHead encoding immediately followed by the
// outboard, running to the end of the value. A KV Get always hands back the
// value's exact length, so the outboard's length is len(value)-144 with no
// separate length prefix needed; reading the head never touches or copies
// the outboard.
type record struct {
	head     SignedHead
	outboard []byte
}

// newEmptyRecord constructs the record for a freshly created stream: the
// unsigned sentinel head and the fixed empty outboard.
func newEmptyRecord(id StreamId) record {
	return record{
		head:     NewUnsignedHead(id),
		outboard: append([]byte(nil), EmptyOutboard[:]...),
	}
}

// encode serializes the record to its on-disk/KV-value form.
func (r record) encode() []byte {
	buf := make([]byte, SignedHeadBytes+len(r.outboard))
	r.head.PutBytes(buf[:SignedHeadBytes])
	copy(buf[SignedHeadBytes:], r.outboard)
	return buf
}

// decodeRecord parses a KV value into a record. It is a zero-copy view over
// the head: HeadBytes/SignedHead decode only touches the first 144 bytes,
// and the outboard slice aliases the tail of b rather than being copied.
func decodeRecord(b []byte) (record, error) {
	if len(b) < SignedHeadBytes {
		return record{}, fmt.Errorf("vstream: record decode: value too short (%d bytes)", len(b))
	}
	head, err := SignedHeadFromBytes(b[:SignedHeadBytes])
	if err != nil {
		return record{}, err
	}
	return record{head: head, outboard: b[SignedHeadBytes:]}, nil
}
