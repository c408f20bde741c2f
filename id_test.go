package vstream

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamIdRoundTripText(t *testing.T) {
	var peer [PeerBytes]byte
	_, err := rand.Read(peer[:])
	require.NoError(t, err)

	for _, stream := range []uint64{0, 1, 42, 1 << 63, ^uint64(0)} {
		id := NewStreamId(peer, stream)
		parsed, err := ParseStreamId(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
}

func TestStreamIdRoundTripBytes(t *testing.T) {
	var peer [PeerBytes]byte
	_, err := rand.Read(peer[:])
	require.NoError(t, err)
	id := NewStreamId(peer, 7)

	b := id.Bytes()
	parsed, err := StreamIdFromBytes(b[:])
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseStreamIdRejectsMissingDot(t *testing.T) {
	_, err := ParseStreamId("no-dot-here")
	require.ErrorIs(t, err, ErrMalformedID)
}

func TestParseStreamIdRejectsShortPeer(t *testing.T) {
	// A valid base64url encoding of fewer than 32 bytes must be rejected,
	// not zero-padded (spec.md §9's stricter alternative).
	_, err := ParseStreamId("AAAA.0")
	require.ErrorIs(t, err, ErrMalformedID)
}

func TestParseStreamIdRejectsBadStreamNumber(t *testing.T) {
	var peer [PeerBytes]byte
	id := NewStreamId(peer, 0)
	peerPart := id.String()[:len(id.String())-len(".0")]
	_, err := ParseStreamId(peerPart + ".not-a-number")
	require.ErrorIs(t, err, ErrMalformedID)
}
