package vstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordEncodeDecodeEmpty(t *testing.T) {
	var peer [PeerBytes]byte
	id := NewStreamId(peer, 5)
	rec := newEmptyRecord(id)

	encoded := rec.encode()
	require.Len(t, encoded, SignedHeadBytes+8)

	decoded, err := decodeRecord(encoded)
	require.NoError(t, err)
	require.Equal(t, rec.head, decoded.head)
	require.Equal(t, rec.outboard, decoded.outboard)
}

func TestRecordDecodeDoesNotCopyOutboard(t *testing.T) {
	var peer [PeerBytes]byte
	id := NewStreamId(peer, 1)
	rec := newEmptyRecord(id)
	rec.outboard = append(rec.outboard, 1, 2, 3, 4)

	encoded := rec.encode()
	decoded, err := decodeRecord(encoded)
	require.NoError(t, err)

	// The outboard view aliases the tail of the same backing array as the
	// encoded buffer, so mutating it through one is visible via the other.
	decoded.outboard[0] = 0xff
	require.Equal(t, byte(0xff), encoded[SignedHeadBytes])
}

func TestRecordDecodeRejectsShortValue(t *testing.T) {
	_, err := decodeRecord(make([]byte, SignedHeadBytes-1))
	require.Error(t, err)
}
