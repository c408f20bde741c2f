package hashtree

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Encode computes the outboard and root hash for the whole of data in one
// call, splitting it into chunkSize chunks (the last one possibly short).
// Leaf hashing is parallelized across chunks with errgroup, bounded by
// runtime.GOMAXPROCS(0) workers; the sequential peak-merge pass that
// follows is comparatively cheap.
func Encode(data []byte, chunkSize int) (outboard []byte, root Hash, err error) {
	if chunkSize <= 0 {
		return nil, Hash{}, ErrBadChunkSize
	}
	if len(data) == 0 {
		return append([]byte(nil), EmptyOutboard...), EmptyRoot, nil
	}

	n := leafCount(uint64(len(data)), chunkSize)
	leaves := make([]Hash, n)

	workers := runtime.GOMAXPROCS(0)
	if uint64(workers) > n {
		workers = int(n)
	}
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	chunksPerWorker := (int(n) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunksPerWorker
		hi := lo + chunksPerWorker
		if lo >= int(n) {
			break
		}
		if hi > int(n) {
			hi = int(n)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				start := i * chunkSize
				end := start + chunkSize
				if end > len(data) {
					end = len(data)
				}
				leaves[i] = leafHash(data[start:end])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Hash{}, err
	}

	var acc accumulator
	for _, h := range leaves {
		acc.appendLeaf(h)
	}
	return acc.outboard(uint64(len(data))), acc.root(), nil
}

// ResumeEncoder reconstructs an Encoder's internal accumulator from a
// previously stored outboard, so a writer reopening a stream with existing
// data can keep appending without recomputing any hash.
//
// Chunk boundaries are fixed by absolute byte offset (leaf i always covers
// [i*chunkSize, (i+1)*chunkSize)), not by where a previous commit happened
// to stop: if totalLen is not a multiple of chunkSize, the tree's trailing
// leaf is still "open" -- only the preceding, chunkSize-aligned leaves are
// merged into the returned Encoder's accumulator. The returned pendingLen is
// the number of trailing bytes the caller must re-read from the stream's
// data file (this package only ever sees hashes, never raw bytes, once they
// are committed) and hand to SeedPending before writing any more data, so
// the next full chunk closes out at the same aligned boundary it would have
// if the whole stream had been encoded in one pass.
func ResumeEncoder(outboard []byte, chunkSize int) (enc *Encoder, pendingLen uint64, err error) {
	if chunkSize <= 0 {
		return nil, 0, ErrBadChunkSize
	}
	totalLen, err := decodeOutboardHeader(outboard)
	if err != nil {
		return nil, 0, err
	}
	e := &Encoder{chunkSize: chunkSize, total: totalLen}
	if totalLen == 0 {
		return e, 0, nil
	}

	n := leafCount(totalLen, chunkSize)
	pendingLen = totalLen % uint64(chunkSize)
	committedLeaves := n
	if pendingLen != 0 {
		committedLeaves = n - 1
	}
	if committedLeaves == 0 {
		// The only leaf so far is the trailing partial chunk; nothing has
		// been merged into the accumulator yet.
		return e, pendingLen, nil
	}

	shp := buildShape(committedLeaves)
	total := nodeCount(committedLeaves)

	// The node array is append-only: the first nodeCount(committedLeaves)
	// entries of an n-leaf outboard are exactly the committedLeaves-leaf
	// accumulator's nodes, regardless of what was appended after them.
	nodes := make([]Hash, total)
	for i := uint64(0); i < total; i++ {
		h, err := hashAt(outboard, i)
		if err != nil {
			return nil, 0, err
		}
		nodes[i] = h
	}
	e.acc.nodes = nodes
	e.acc.stack = append([]peakInfo(nil), shp.peaks...)
	return e, pendingLen, nil
}

// SeedPending restores the trailing partial-chunk bytes a resumed Encoder
// has not yet merged into its accumulator (see ResumeEncoder's pendingLen).
// It must be called at most once, before the first Write, with exactly
// pendingLen bytes read from the tail of the stream's existing data.
func (e *Encoder) SeedPending(b []byte) {
	e.pending = append(e.pending[:0:0], b...)
}

// Encoder incrementally hashes appended bytes into the same accumulator
// Encode builds in one pass, so a StreamWriter can feed it chunk by chunk
// without holding the whole stream in memory.
type Encoder struct {
	chunkSize int
	acc       accumulator
	pending   []byte
	total     uint64
}

// NewEncoder returns an Encoder seeded with an empty stream.
func NewEncoder(chunkSize int) (*Encoder, error) {
	if chunkSize <= 0 {
		return nil, ErrBadChunkSize
	}
	return &Encoder{chunkSize: chunkSize}, nil
}

// Write feeds len(p) bytes to the encoder. Full chunks are hashed and
// merged immediately; a trailing partial chunk is buffered until more
// bytes arrive or Finish is called.
func (e *Encoder) Write(p []byte) (int, error) {
	n := len(p)
	e.total += uint64(n)
	e.pending = append(e.pending, p...)
	for len(e.pending) >= e.chunkSize {
		e.acc.appendLeaf(leafHash(e.pending[:e.chunkSize]))
		e.pending = e.pending[e.chunkSize:]
	}
	return n, nil
}

// Finish flushes any buffered partial chunk and returns the outboard, root
// hash, and total length seen so far.
func (e *Encoder) Finish() (outboard []byte, root Hash, length uint64) {
	if len(e.pending) > 0 {
		e.acc.appendLeaf(leafHash(e.pending))
		e.pending = nil
	}
	if e.total == 0 {
		return append([]byte(nil), EmptyOutboard...), EmptyRoot, 0
	}
	return e.acc.outboard(e.total), e.acc.root(), e.total
}
