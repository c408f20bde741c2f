package vstream

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusledger/vstream/hashtree"
)

// writerState tracks the C6 state machine: Open -> Writing -> Committed |
// Aborted. A writer starts in Writing (there is no externally visible Open
// state distinct from Writing in this implementation -- construction and
// first admission to Writing are the same call).
type writerState int

const (
	stateWriting writerState = iota
	stateCommitted
	stateAborted
)

// StreamWriter is a scoped append session over exactly one stream (C6). It
// holds the lock token, an open data file positioned at end, and an
// incremental hash-tree encoder seeded with the record's current state.
// Local writers hold the engine's signing key and sign on Commit;
// replicated writers verify an externally supplied signed head instead.
type StreamWriter struct {
	engine *Engine
	id     StreamId
	lock   *Lock
	file   *os.File
	enc    *hashtree.Encoder

	replicated bool
	startLen   uint64
	sessionID  uuid.UUID
	state      writerState
}

// AppendLocal returns a writer for id that signs the head on Commit. id
// must belong to the local peer and must already exist (created via
// CreateLocal). Fails with ErrBusy if another mutating operation already
// holds id's lock, ErrNotFound if the stream does not exist, or
// ErrNotLocal if id's peer is not this engine's local peer.
func (e *Engine) AppendLocal(id StreamId) (*StreamWriter, error) {
	if id.Peer() != e.localPeer {
		return nil, ErrNotLocal
	}
	return e.newWriter(id, false)
}

// AppendReplicated returns a writer for id that verifies externally signed
// heads instead of signing locally (see StreamWriter.CommitReplicated).
// Fails with ErrBusy if another mutating operation already holds id's lock,
// or ErrNotFound if the stream does not exist.
func (e *Engine) AppendReplicated(id StreamId) (*StreamWriter, error) {
	return e.newWriter(id, true)
}

func (e *Engine) newWriter(id StreamId, replicated bool) (*StreamWriter, error) {
	lock, err := e.locks.Acquire(id)
	if err != nil {
		e.metrics.observeBusy()
		return nil, err
	}

	rec, exists, err := e.getRecord(id)
	if err != nil {
		lock.Release()
		return nil, err
	}
	if !exists {
		lock.Release()
		return nil, ErrNotFound
	}

	enc, pendingLen, err := hashtree.ResumeEncoder(rec.outboard, e.chunkSize)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("vstream: resuming hash-tree encoder for %s: %w", id, err)
	}

	// Opened read-write (not write-only) because a resumed stream whose
	// committed length isn't chunk-aligned needs its trailing partial
	// chunk read back below, to keep the encoder's leaf boundaries at the
	// same absolute byte offsets a one-pass encode would have used.
	f, err := os.OpenFile(e.streamPath(id), os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("vstream: opening data file for %s: %w", id, err)
	}

	if pendingLen > 0 {
		tail := make([]byte, pendingLen)
		if _, err := f.ReadAt(tail, int64(rec.head.Head.Len-pendingLen)); err != nil {
			f.Close()
			lock.Release()
			return nil, fmt.Errorf("vstream: restoring pending chunk for %s: %w", id, err)
		}
		enc.SeedPending(tail)
	}

	w := &StreamWriter{
		engine:     e,
		id:         id,
		lock:       lock,
		file:       f,
		enc:        enc,
		replicated: replicated,
		startLen:   rec.head.Head.Len,
		sessionID:  uuid.New(),
		state:      stateWriting,
	}
	e.log.Debugf("vstream: opened writer %s for %s (replicated=%v)", w.sessionID, id, replicated)
	return w, nil
}

// Write appends chunk to the data file and feeds it to the incremental
// hash-tree encoder. No KV update occurs until Commit.
func (w *StreamWriter) Write(chunk []byte) (int, error) {
	if w.state != stateWriting {
		return 0, ErrWriterClosed
	}
	n, err := w.file.Write(chunk)
	if n > 0 {
		if _, encErr := w.enc.Write(chunk[:n]); encErr != nil {
			return n, encErr
		}
	}
	if err != nil {
		return n, fmt.Errorf("vstream: writing %s: %w", w.id, err)
	}
	return n, nil
}

// Commit finalizes the encoder, signs the resulting head with the engine's
// key, writes the updated record to the KV, and releases the lock. Only
// valid for a local (non-replicated) writer; replicated writers use
// CommitReplicated. If syncing the data file or writing the KV record
// fails, the writer moves to Aborted and its lock is released -- the data
// file may remain longer than the last committed head, which the next
// Open's recovery pass reconciles.
func (w *StreamWriter) Commit() (Head, error) {
	if w.replicated {
		return Head{}, fmt.Errorf("vstream: Commit called on a replicated writer, use CommitReplicated")
	}
	if w.state != stateWriting {
		return Head{}, ErrWriterClosed
	}

	started := time.Now()
	if err := w.file.Sync(); err != nil {
		w.abort()
		return Head{}, fmt.Errorf("vstream: syncing %s: %w", w.id, err)
	}

	outboard, root, length := w.enc.Finish()
	head := Head{ID: w.id, Hash: [HashBytes]byte(root), Len: length}
	signed := head.Sign(w.engine.priv)
	rec := record{head: signed, outboard: outboard}

	if err := w.engine.idx.Put(idKey(w.id), rec.encode()); err != nil {
		w.abort()
		return Head{}, fmt.Errorf("vstream: committing %s: %w", w.id, err)
	}

	w.state = stateCommitted
	w.lock.Release()
	w.engine.metrics.observeCommit(length-w.startLen, time.Since(started).Seconds())
	w.engine.log.Debugf("vstream: writer %s committed %s: len=%d elapsed=%s", w.sessionID, w.id, length, time.Since(started))
	return head, nil
}

// CommitReplicated verifies expected against id's peer, decodes sliceBytes
// as the proof for the newly appended range [currentLen, expected.Head.Len)
// under expected.Head.Hash, and -- only if decoding succeeds and the local
// encoder independently agrees with the supplied root and length -- appends
// the verified plaintext and commits expected as the new record. Any
// mismatch fails atomically with ErrSignatureMismatch or ErrIntegrity and
// leaves the KV record unchanged; the on-disk file may still have been
// extended, which the next Open's recovery pass truncates back.
func (w *StreamWriter) CommitReplicated(sliceBytes []byte, expected SignedHead) (Head, error) {
	if !w.replicated {
		return Head{}, fmt.Errorf("vstream: CommitReplicated called on a local writer, use Commit")
	}
	if w.state != stateWriting {
		return Head{}, ErrWriterClosed
	}
	if expected.Head.ID != w.id {
		return Head{}, ErrSignatureMismatch
	}
	if err := expected.Verify(); err != nil {
		return Head{}, err
	}
	if expected.Head.Len < w.startLen {
		w.engine.metrics.observeIntegrityError()
		return Head{}, fmt.Errorf("%w: new length %d is before current length %d", ErrIntegrity, expected.Head.Len, w.startLen)
	}

	appendLen := expected.Head.Len - w.startLen
	plaintext, err := hashtree.DecodeSlice(sliceBytes, hashtree.Hash(expected.Head.Hash), w.startLen, appendLen)
	if err != nil {
		w.engine.metrics.observeIntegrityError()
		if errors.Is(err, hashtree.ErrIntegrity) {
			return Head{}, ErrIntegrity
		}
		return Head{}, fmt.Errorf("vstream: decoding replicated slice for %s: %w", w.id, err)
	}

	started := time.Now()
	n, werr := w.file.Write(plaintext)
	if n > 0 {
		if _, encErr := w.enc.Write(plaintext[:n]); encErr != nil {
			w.abort()
			return Head{}, encErr
		}
	}
	if werr != nil {
		w.abort()
		return Head{}, fmt.Errorf("vstream: writing replicated data for %s: %w", w.id, werr)
	}
	if err := w.file.Sync(); err != nil {
		w.abort()
		return Head{}, fmt.Errorf("vstream: syncing %s: %w", w.id, err)
	}

	outboard, root, length := w.enc.Finish()
	if [HashBytes]byte(root) != expected.Head.Hash || length != expected.Head.Len {
		w.engine.metrics.observeIntegrityError()
		w.abort()
		return Head{}, ErrIntegrity
	}

	rec := record{head: expected, outboard: outboard}
	if err := w.engine.idx.Put(idKey(w.id), rec.encode()); err != nil {
		w.abort()
		return Head{}, fmt.Errorf("vstream: committing %s: %w", w.id, err)
	}

	w.state = stateCommitted
	w.lock.Release()
	w.engine.metrics.observeCommit(appendLen, time.Since(started).Seconds())
	w.engine.log.Debugf("vstream: writer %s committed replicated %s: len=%d", w.sessionID, w.id, length)
	return expected.Head, nil
}

// Close releases the writer's lock and closes its data file handle. If the
// writer has not committed, it moves to Aborted: the KV record is
// unchanged, and any bytes already written to the data file are reconciled
// by the next Open's recovery pass. Calling Close after Commit is safe and
// only closes the file handle.
func (w *StreamWriter) Close() error {
	if w.state == stateWriting {
		w.abort()
	}
	return w.file.Close()
}

func (w *StreamWriter) abort() {
	w.state = stateAborted
	w.lock.Release()
}
