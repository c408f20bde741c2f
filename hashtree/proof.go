package hashtree

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ExtractSlice reads the bytes covering [start, start+length) of the stream
// recorded by outboard, and packages them with a Merkle proof sufficient
// for DecodeSlice to verify them against the tree's root hash without
// knowing anything else about the tree's shape.
//
// data must support reads at arbitrary offsets up to the stream's recorded
// total length (e.g. an *os.File opened read-only).
func ExtractSlice(data io.ReaderAt, outboard []byte, chunkSize int, start, length uint64) ([]byte, error) {
	if chunkSize <= 0 {
		return nil, ErrBadChunkSize
	}
	totalLen, err := decodeOutboardHeader(outboard)
	if err != nil {
		return nil, err
	}
	if start > totalLen || start+length > totalLen {
		return nil, fmt.Errorf("hashtree: range [%d,%d) exceeds stream length %d", start, start+length, totalLen)
	}

	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], totalLen)
	binary.LittleEndian.PutUint64(buf[8:16], start)
	binary.LittleEndian.PutUint64(buf[16:24], length)
	buf = appendUint32(buf, uint32(chunkSize))

	if length == 0 {
		buf = appendUint32(buf, 0) // numChunks
		return buf, nil
	}

	n := leafCount(totalLen, chunkSize)
	shp := buildShape(n)

	firstChunk := start / uint64(chunkSize)
	lastChunk := (start + length - 1) / uint64(chunkSize)
	numChunks := lastChunk - firstChunk + 1

	buf = appendUint32(buf, uint32(numChunks))

	for idx := firstChunk; idx <= lastChunk; idx++ {
		chunkStart := idx * uint64(chunkSize)
		chunkEnd := chunkStart + uint64(chunkSize)
		if chunkEnd > totalLen {
			chunkEnd = totalLen
		}
		rawLen := chunkEnd - chunkStart
		raw := make([]byte, rawLen)
		if _, err := data.ReadAt(raw, int64(chunkStart)); err != nil && err != io.EOF {
			return nil, fmt.Errorf("hashtree: reading chunk %d: %w", idx, err)
		}

		leafPos := shp.leafPos[idx]
		steps, peakPos := shp.climb(leafPos)
		peakIdx := shp.peakIndex(peakPos)
		if peakIdx < 0 {
			return nil, fmt.Errorf("hashtree: internal: chunk %d did not climb to a known peak", idx)
		}

		buf = appendUint64(buf, idx)
		buf = appendUint32(buf, uint32(rawLen))
		buf = append(buf, raw...)

		buf = appendUint32(buf, uint32(len(shp.peaks)))
		buf = appendUint32(buf, uint32(peakIdx))
		for k, pk := range shp.peaks {
			if k == peakIdx {
				continue
			}
			h, err := hashAt(outboard, pk.pos)
			if err != nil {
				return nil, err
			}
			buf = append(buf, h[:]...)
		}

		buf = appendUint32(buf, uint32(len(steps)))
		for _, st := range steps {
			h, err := hashAt(outboard, st.siblingPos)
			if err != nil {
				return nil, err
			}
			dir := byte(0)
			if st.wentLeft {
				dir = 1
			}
			buf = append(buf, dir)
			buf = append(buf, h[:]...)
		}
	}

	return buf, nil
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
