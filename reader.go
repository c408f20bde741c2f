package vstream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// StreamReader is constructed from a stream's data-file path and a head
// snapshot taken at construction time; bytes appended after the snapshot
// are invisible even if the underlying file grows, because reads are
// bounded by the snapshot's length (C7, "raw bytes" mode).
type StreamReader struct {
	file *os.File
	sr   *io.SectionReader
	head SignedHead
}

// Head returns the signed head this reader's bytes are bound to.
func (r *StreamReader) Head() SignedHead { return r.head }

// Read streams plaintext bytes of the requested range with no
// verification, intended for trusted local use. It implements io.Reader.
func (r *StreamReader) Read(p []byte) (int, error) {
	return r.sr.Read(p)
}

// Close closes the underlying file handle.
func (r *StreamReader) Close() error {
	return r.file.Close()
}

// Slice returns a StreamReader bound to the stream's current head snapshot,
// reading the raw bytes of [start, start+length). Fails with ErrNotFound if
// id does not exist, or ErrRangeOutOfBounds if the range exceeds the
// snapshot's length.
func (e *Engine) Slice(id StreamId, start, length uint64) (*StreamReader, error) {
	rec, exists, err := e.getRecord(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	if start > rec.head.Head.Len || start+length > rec.head.Head.Len {
		return nil, ErrRangeOutOfBounds
	}

	f, err := os.Open(e.streamPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("vstream: opening data file for %s: %w", id, err)
	}

	return &StreamReader{
		file: f,
		sr:   io.NewSectionReader(f, int64(start), int64(length)),
		head: rec.head,
	}, nil
}
