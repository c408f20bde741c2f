package vstream

import (
	"fmt"
	"os"
)

// recover walks every record in the KV index and truncates its data file to
// the committed head.len if the file is longer. This reconciles the state a
// crashed or aborted writer leaves behind (spec.md §4.6/§7, scenario S7):
// a writer may have extended the data file and fed the incremental encoder
// before dying without committing, which leaves the file longer than the
// last committed head but never mutates the KV, so invariant I2 (file
// length equals head.len) is restored by truncation alone.
func (e *Engine) recover() error {
	type fix struct {
		id  StreamId
		len uint64
	}
	var fixes []fix

	err := e.Streams(func(id StreamId, head SignedHead) error {
		path := e.streamPath(id)
		info, statErr := os.Stat(path)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				// No data file for this record (the record is inserted
				// before ensureDataFile creates the file); nothing to
				// reconcile.
				return nil
			}
			return fmt.Errorf("stat %s: %w", path, statErr)
		}
		if uint64(info.Size()) > head.Head.Len {
			fixes = append(fixes, fix{id: id, len: head.Head.Len})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, f := range fixes {
		path := e.streamPath(f.id)
		if err := os.Truncate(path, int64(f.len)); err != nil {
			return fmt.Errorf("truncating %s to %d: %w", path, f.len, err)
		}
		e.log.Debugf("vstream: recovery truncated %s to %d bytes", f.id, f.len)
	}
	return nil
}
