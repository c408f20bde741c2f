package vstream

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// PeerBytes is the width of the Ed25519 public key identifying a peer.
const PeerBytes = 32

// IDBytes is the stable on-disk/on-wire layout of a StreamId: 32-byte peer
// followed by an 8-byte big-endian stream number.
const IDBytes = PeerBytes + 8

// StreamId identifies one append-only stream: the Ed25519 public key of its
// owning peer plus a per-peer stream number. StreamId is a plain fixed-layout
// record; its in-memory form is byte-identical to its on-disk form, and it is
// used directly as a KV key.
type StreamId struct {
	peer   [PeerBytes]byte
	stream uint64
}

// NewStreamId constructs a StreamId from a peer public key and stream number.
func NewStreamId(peer [PeerBytes]byte, stream uint64) StreamId {
	return StreamId{peer: peer, stream: stream}
}

// Peer returns the raw 32-byte peer public key.
func (id StreamId) Peer() [PeerBytes]byte { return id.peer }

// Stream returns the per-peer stream number.
func (id StreamId) Stream() uint64 { return id.stream }

// PublicKey reconstructs the peer's Ed25519 public key object. It succeeds
// even for curve points that would be rejected by strict verification --
// callers that need to verify a signature must additionally call
// VerifyStrict, which surfaces ErrInvalidKey for points unsuitable for
// verification.
func (id StreamId) PublicKey() ed25519.PublicKey {
	pk := make(ed25519.PublicKey, PeerBytes)
	copy(pk, id.peer[:])
	return pk
}

// Bytes returns the canonical 40-byte layout: peer, then stream number as an
// 8-byte big-endian integer.
func (id StreamId) Bytes() [IDBytes]byte {
	var b [IDBytes]byte
	copy(b[:PeerBytes], id.peer[:])
	binary.BigEndian.PutUint64(b[PeerBytes:], id.stream)
	return b
}

// PutBytes writes the canonical 40-byte layout into dst, which must be at
// least IDBytes long. It exists so callers assembling larger fixed-layout
// records (Head, SignedHead) can avoid an intermediate allocation.
func (id StreamId) PutBytes(dst []byte) {
	copy(dst[:PeerBytes], id.peer[:])
	binary.BigEndian.PutUint64(dst[PeerBytes:IDBytes], id.stream)
}

// StreamIdFromBytes decodes the canonical 40-byte layout produced by Bytes.
func StreamIdFromBytes(b []byte) (StreamId, error) {
	if len(b) != IDBytes {
		return StreamId{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedID, IDBytes, len(b))
	}
	var id StreamId
	copy(id.peer[:], b[:PeerBytes])
	id.stream = binary.BigEndian.Uint64(b[PeerBytes:])
	return id, nil
}

// String formats the canonical text form: base64url (unpadded) of the peer,
// a literal '.', then the decimal stream number.
func (id StreamId) String() string {
	peer := base64.RawURLEncoding.EncodeToString(id.peer[:])
	return peer + "." + strconv.FormatUint(id.stream, 10)
}

// ParseStreamId parses the canonical text form produced by String.
//
// Short peer encodings -- anything that does not decode to exactly 32 raw
// bytes -- are rejected with ErrMalformedID rather than zero-padded; this is
// the stricter alternative spec.md §9 calls out as preferable to the
// original source's zero-padding tolerance.
func ParseStreamId(s string) (StreamId, error) {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return StreamId{}, fmt.Errorf("%w: %q has no '.' separator", ErrMalformedID, s)
	}
	peerPart, streamPart := s[:dot], s[dot+1:]

	peer, err := base64.RawURLEncoding.DecodeString(peerPart)
	if err != nil {
		return StreamId{}, fmt.Errorf("%w: bad base64url peer: %w", ErrMalformedID, err)
	}
	if len(peer) != PeerBytes {
		return StreamId{}, fmt.Errorf("%w: peer decodes to %d bytes, want %d", ErrMalformedID, len(peer), PeerBytes)
	}

	stream, err := strconv.ParseUint(streamPart, 10, 64)
	if err != nil {
		return StreamId{}, fmt.Errorf("%w: bad stream number: %w", ErrMalformedID, err)
	}

	var id StreamId
	copy(id.peer[:], peer)
	id.stream = stream
	return id, nil
}
