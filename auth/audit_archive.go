package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"
)

var archiveBucket = []byte("events")

// ArchiveSink appends security events to a BBolt database so high-value
// events survive the process. Keys are timestamp-prefixed, so a cursor
// walk returns events in time order.
type ArchiveSink struct {
	db *bbolt.DB
}

// NewArchiveSink opens (or creates) the archive database at path.
func NewArchiveSink(path string) (*ArchiveSink, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening audit archive: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(archiveBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit archive bucket: %w", err)
	}
	return &ArchiveSink{db: db}, nil
}

// Emit writes the event. Failures are logged, never surfaced; the
// archive must not break request handling.
func (s *ArchiveSink) Emit(e Event) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(archiveBucket)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%020d:%s", e.Timestamp.UnixNano(), e.ID)
		return b.Put([]byte(key), data)
	})
	if err != nil {
		slog.Warn("audit archive: write failed", "error", err)
	}
}

// Recent returns up to limit archived events, newest first.
func (s *ArchiveSink) Recent(limit int) ([]Event, error) {
	var out []Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(archiveBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (s *ArchiveSink) Close() error {
	return s.db.Close()
}
