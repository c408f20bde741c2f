package hashtree

import (
	"bytes"
	"testing"

	"gotest.tools/v3/assert"
)

func TestEncodeEmpty(t *testing.T) {
	outboard, root, err := Encode(nil, DefaultChunkSize)
	assert.NilError(t, err)
	assert.DeepEqual(t, root, EmptyRoot)
	assert.DeepEqual(t, outboard, EmptyOutboard)
}

func TestEncodeDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1000)
	ob1, root1, err := Encode(data, 64)
	assert.NilError(t, err)
	ob2, root2, err := Encode(data, 64)
	assert.NilError(t, err)
	assert.DeepEqual(t, root1, root2)
	assert.DeepEqual(t, ob1, ob2)
}

func TestEncoderMatchesEncode(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 517)
	chunkSize := 32

	wantOutboard, wantRoot, err := Encode(data, chunkSize)
	assert.NilError(t, err)

	enc, err := NewEncoder(chunkSize)
	assert.NilError(t, err)
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		_, err := enc.Write(data[i:end])
		assert.NilError(t, err)
	}
	gotOutboard, gotRoot, gotLen := enc.Finish()

	assert.Equal(t, gotLen, uint64(len(data)))
	assert.DeepEqual(t, gotRoot, wantRoot)
	assert.DeepEqual(t, gotOutboard, wantOutboard)
}

func TestResumeEncoderAcrossMisalignedSession(t *testing.T) {
	chunkSize := 4
	first := []byte("hello ")  // 6 bytes: one full leaf, one short leaf
	second := []byte("world") // 5 more bytes

	outboard1, _, err := Encode(first, chunkSize)
	assert.NilError(t, err)

	enc, pendingLen, err := ResumeEncoder(outboard1, chunkSize)
	assert.NilError(t, err)
	assert.Equal(t, pendingLen, uint64(len(first))%uint64(chunkSize))
	enc.SeedPending(first[uint64(len(first))-pendingLen:])

	_, err = enc.Write(second)
	assert.NilError(t, err)
	outboard2, root2, length2 := enc.Finish()

	full := append(append([]byte(nil), first...), second...)
	wantOutboard, wantRoot, err := Encode(full, chunkSize)
	assert.NilError(t, err)

	assert.Equal(t, length2, uint64(len(full)))
	assert.DeepEqual(t, root2, wantRoot)
	assert.DeepEqual(t, outboard2, wantOutboard)

	sliceBytes, err := ExtractSlice(readerAt{full}, outboard2, chunkSize, 0, uint64(len(full)))
	assert.NilError(t, err)
	got, err := DecodeSlice(sliceBytes, root2, 0, uint64(len(full)))
	assert.NilError(t, err)
	assert.DeepEqual(t, got, full)
}

func TestResumeEncoderAlignedSessionNeedsNoPending(t *testing.T) {
	chunkSize := 4
	first := []byte("1234") // exactly one full leaf
	second := []byte("5678world")

	outboard1, _, err := Encode(first, chunkSize)
	assert.NilError(t, err)

	enc, pendingLen, err := ResumeEncoder(outboard1, chunkSize)
	assert.NilError(t, err)
	assert.Equal(t, pendingLen, uint64(0))

	_, err = enc.Write(second)
	assert.NilError(t, err)
	outboard2, root2, length2 := enc.Finish()

	full := append(append([]byte(nil), first...), second...)
	wantOutboard, wantRoot, err := Encode(full, chunkSize)
	assert.NilError(t, err)

	assert.Equal(t, length2, uint64(len(full)))
	assert.DeepEqual(t, root2, wantRoot)
	assert.DeepEqual(t, outboard2, wantOutboard)
}

type readerAt struct{ b []byte }

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, r.b[off:])
	return n, nil
}

func TestSliceRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 50)
	chunkSize := 37 // deliberately not a divisor of len(data)

	outboard, root, err := Encode(data, chunkSize)
	assert.NilError(t, err)

	cases := []struct{ start, length uint64 }{
		{0, uint64(len(data))},
		{0, 1},
		{5, 10},
		{uint64(len(data)) - 1, 1},
		{uint64(chunkSize) - 1, 2}, // spans a chunk boundary
		{0, 0},
	}

	for _, c := range cases {
		sliceBytes, err := ExtractSlice(readerAt{data}, outboard, chunkSize, c.start, c.length)
		assert.NilError(t, err)

		got, err := DecodeSlice(sliceBytes, root, c.start, c.length)
		assert.NilError(t, err)
		assert.DeepEqual(t, got, data[c.start:c.start+c.length])
	}
}

func TestSliceTamperDetected(t *testing.T) {
	data := bytes.Repeat([]byte("tamper-check"), 100)
	chunkSize := 16

	outboard, root, err := Encode(data, chunkSize)
	assert.NilError(t, err)

	sliceBytes, err := ExtractSlice(readerAt{data}, outboard, chunkSize, 20, 30)
	assert.NilError(t, err)

	for _, i := range []int{0, len(sliceBytes) / 2, len(sliceBytes) - 1} {
		tampered := append([]byte(nil), sliceBytes...)
		tampered[i] ^= 0xff
		_, err := DecodeSlice(tampered, root, 20, 30)
		assert.ErrorIs(t, err, ErrIntegrity)
	}
}

func TestSliceWrongRootRejected(t *testing.T) {
	data := bytes.Repeat([]byte("xyz"), 200)
	chunkSize := 8

	outboard, _, err := Encode(data, chunkSize)
	assert.NilError(t, err)

	sliceBytes, err := ExtractSlice(readerAt{data}, outboard, chunkSize, 0, 10)
	assert.NilError(t, err)

	var wrongRoot Hash
	wrongRoot[0] = 1
	_, err = DecodeSlice(sliceBytes, wrongRoot, 0, 10)
	assert.ErrorIs(t, err, ErrIntegrity)
}
