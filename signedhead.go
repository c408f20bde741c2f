package vstream

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

// SigBytes is the width of an Ed25519 signature.
const SigBytes = 64

// SignedHeadBytes is the stable on-disk/on-wire layout of a SignedHead:
// head (80) + sig (64).
const SignedHeadBytes = HeadBytes + SigBytes

// unsignedSentinel is the all-zero signature marking a newly created local
// stream that has never been committed.
var unsignedSentinel [SigBytes]byte

// SignedHead pairs a Head with the owning peer's signature over its exact
// 80-byte encoding. A sentinel all-zero signature marks a stream that has
// never been signed.
type SignedHead struct {
	Head Head
	Sig  [SigBytes]byte
}

// NewUnsignedHead constructs the sentinel SignedHead for a freshly created
// local stream, valid only before its first append commits.
func NewUnsignedHead(id StreamId) SignedHead {
	return SignedHead{Head: NewEmptyHead(id)}
}

// IsSigned reports whether Sig differs from the all-zero sentinel.
func (sh SignedHead) IsSigned() bool {
	return sh.Sig != unsignedSentinel
}

// Bytes returns the canonical 144-byte layout: the 80-byte head followed by
// the 64-byte signature.
func (sh SignedHead) Bytes() [SignedHeadBytes]byte {
	var b [SignedHeadBytes]byte
	sh.Head.PutBytes(b[:HeadBytes])
	copy(b[HeadBytes:], sh.Sig[:])
	return b
}

// PutBytes writes the canonical 144-byte layout into dst, which must be at
// least SignedHeadBytes long.
func (sh SignedHead) PutBytes(dst []byte) {
	sh.Head.PutBytes(dst[:HeadBytes])
	copy(dst[HeadBytes:SignedHeadBytes], sh.Sig[:])
}

// SignedHeadFromBytes decodes the canonical 144-byte layout produced by
// Bytes. It only parses; it performs no signature verification.
func SignedHeadFromBytes(b []byte) (SignedHead, error) {
	if len(b) < SignedHeadBytes {
		return SignedHead{}, fmt.Errorf("vstream: signed head decode: expected at least %d bytes, got %d", SignedHeadBytes, len(b))
	}
	head, err := HeadFromBytes(b[:HeadBytes])
	if err != nil {
		return SignedHead{}, err
	}
	var sh SignedHead
	sh.Head = head
	copy(sh.Sig[:], b[HeadBytes:SignedHeadBytes])
	return sh, nil
}

// Sign computes the signature over the exact 80-byte head encoding using
// priv, and returns a new SignedHead. priv's public half must equal
// h.ID.Peer(); callers own that invariant, it is not checked here.
func (h Head) Sign(priv ed25519.PrivateKey) SignedHead {
	msg := h.Bytes()
	sig := ed25519.Sign(priv, msg[:])
	var sh SignedHead
	sh.Head = h
	copy(sh.Sig[:], sig)
	return sh
}

// Verify checks sh.Sig against sh.Head.ID.Peer() in strict mode: malleable
// signatures (non-canonical S) and small-order public keys are rejected,
// unlike crypto/ed25519.Verify's cofactored verification. The all-zero
// sentinel signature always fails verification -- callers must check
// IsSigned before relying on Verify for a freshly created stream.
func (sh SignedHead) Verify() error {
	return VerifyStrict(sh.Head.ID.Peer(), sh.Head.Bytes(), sh.Sig)
}

// VerifyStrict implements strict-mode Ed25519 verification directly against
// filippo.io/edwards25519 curve primitives, rather than calling a verifier
// that performs cofactored (malleable-signature-tolerant) verification:
//
//   - the public key is rejected with ErrInvalidKey if it does not decode to
//     a valid curve point, or if it has small order (order dividing 8,
//     including the identity) -- checked via the cofactor multiplication
//     rather than a table of known low-order encodings;
//   - the signature's S scalar is rejected with ErrSignatureMismatch if it
//     is not in canonical reduced form (S >= L), which is precisely the
//     "reject malleable signatures" requirement;
//   - the equation S*B == R + k*A is checked directly on curve points, not
//     via the cofactored variant 8*S*B == 8*(R + k*A) crypto/ed25519 uses.
func VerifyStrict(pub [PeerBytes]byte, message []byte, sig [SigBytes]byte) error {
	A, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if isSmallOrder(A) {
		return fmt.Errorf("%w: small-order public key", ErrInvalidKey)
	}

	R, err := new(edwards25519.Point).SetBytes(sig[:32])
	if err != nil {
		return fmt.Errorf("%w: bad R encoding: %w", ErrSignatureMismatch, err)
	}
	if isSmallOrder(R) {
		return fmt.Errorf("%w: small-order R", ErrSignatureMismatch)
	}

	S, err := new(edwards25519.Scalar).SetCanonicalBytes(sig[32:64])
	if err != nil {
		return fmt.Errorf("%w: non-canonical S: %w", ErrSignatureMismatch, err)
	}

	h := sha512.New()
	h.Write(sig[:32])
	h.Write(pub[:])
	h.Write(message)
	k, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
	if err != nil {
		return fmt.Errorf("vstream: internal: %w", err)
	}

	sb := new(edwards25519.Point).ScalarBaseMult(S)
	kA := new(edwards25519.Point).ScalarMult(k, A)
	rPluskA := new(edwards25519.Point).Add(R, kA)

	if sb.Equal(rPluskA) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// isSmallOrder reports whether p has order dividing the cofactor 8,
// equivalently whether 8*p is the identity. This catches the identity point
// itself and the seven other known low-order curve points without needing
// to enumerate their encodings.
func isSmallOrder(p *edwards25519.Point) bool {
	identity := edwards25519.NewIdentityPoint()
	cof := new(edwards25519.Point).MultByCofactor(p)
	return cof.Equal(identity) == 1
}
