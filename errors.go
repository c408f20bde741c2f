package vstream

import "errors"

// Sentinel error kinds. Callers should use errors.Is against these; wrapped
// I/O and KV errors are still reachable through errors.As on the concrete
// *os.PathError / bbolt error underneath.
var (
	ErrMalformedID       = errors.New("vstream: malformed stream id")
	ErrNotFound          = errors.New("vstream: stream not found")
	ErrAlreadyExists     = errors.New("vstream: stream already exists")
	ErrBusy              = errors.New("vstream: stream is locked by another operation")
	ErrNotLocal          = errors.New("vstream: id does not belong to the local peer")
	ErrRangeOutOfBounds  = errors.New("vstream: requested range is out of bounds")
	ErrIntegrity         = errors.New("vstream: slice failed integrity verification")
	ErrInvalidKey        = errors.New("vstream: invalid ed25519 public key")
	ErrSignatureMismatch = errors.New("vstream: signature verification failed")

	// ErrWriterClosed is returned by Write/Commit calls made after a writer
	// has already left the Writing state.
	ErrWriterClosed = errors.New("vstream: writer is no longer open")
)
