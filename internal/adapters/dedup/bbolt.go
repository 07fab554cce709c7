package dedup

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
)

var classBuckets = map[ports.DedupClass][]byte{
	ports.DedupSMS:  []byte("dedup_sms"),
	ports.DedupCall: []byte("dedup_call"),
	ports.DedupFile: []byte("dedup_file"),
}

// BboltGate implements ports.DedupGate over an embedded bbolt file. bbolt
// holds an exclusive file lock, so one file serves one process at a time;
// others wait up to the open timeout.
type BboltGate struct {
	db     *bolt.DB
	window time.Duration
	now    func() time.Time
}

var _ ports.DedupGate = (*BboltGate)(nil)

// NewBboltGate opens or creates the database at path.
func NewBboltGate(path string, window time.Duration) (*BboltGate, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("dedup db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range classBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BboltGate{db: db, window: window, now: time.Now}, nil
}

// Keys sort by identity then timestamp. The sign bit is flipped so negative
// timestamps order correctly.
func encodeTS(ms int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ms)^(1<<63))
	return b[:]
}

func decodeTS(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func identityPrefix(identity string) []byte {
	return append([]byte(identity), 0)
}

func entryKey(identity string, ms int64) []byte {
	return append(identityPrefix(identity), encodeTS(ms)...)
}

func bucketFor(tx *bolt.Tx, class ports.DedupClass) (*bolt.Bucket, error) {
	name, ok := classBuckets[class]
	if !ok {
		return nil, errors.New("unknown dedup class " + string(class))
	}
	b := tx.Bucket(name)
	if b == nil {
		return nil, errors.New("missing bucket " + string(name))
	}
	return b, nil
}

// CheckAndMark reports whether key was seen and records it if not.
func (g *BboltGate) CheckAndMark(_ context.Context, key ports.DedupKey) (bool, error) {
	var seen bool
	err := g.db.Update(func(tx *bolt.Tx) error {
		b, err := bucketFor(tx, key.Class)
		if err != nil {
			return err
		}

		ts := key.Timestamp.UnixMilli()
		w := g.window.Milliseconds()
		prefix := identityPrefix(key.Identity)

		k, _ := b.Cursor().Seek(entryKey(key.Identity, ts-w))
		if k != nil && bytes.HasPrefix(k, prefix) && len(k) == len(prefix)+8 && decodeTS(k[len(prefix):]) <= ts+w {
			seen = true
			return nil
		}
		return b.Put(entryKey(key.Identity, ts), encodeTS(g.now().UnixMilli()))
	})
	return seen, err
}

// Prune removes keys recorded before cutoff.
func (g *BboltGate) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	limit := cutoff.UnixMilli()
	err := g.db.Update(func(tx *bolt.Tx) error {
		for _, name := range classBuckets {
			b := tx.Bucket(name)
			if b == nil {
				continue
			}
			// Deleting inside ForEach is not allowed.
			var stale [][]byte
			if err := b.ForEach(func(k, v []byte) error {
				if len(v) == 8 && decodeTS(v) < limit {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			}); err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			removed += int64(len(stale))
		}
		return nil
	})
	return removed, err
}

// Stats counts stored keys per class.
func (g *BboltGate) Stats(context.Context) (ports.DedupStats, error) {
	stats := ports.DedupStats{ByClass: make(map[string]int64)}
	err := g.db.View(func(tx *bolt.Tx) error {
		for class, name := range classBuckets {
			b := tx.Bucket(name)
			if b == nil {
				continue
			}
			n := int64(b.Stats().KeyN)
			stats.ByClass[string(class)] = n
			stats.Entries += n
		}
		return nil
	})
	return stats, err
}

// Close closes the database file.
func (g *BboltGate) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}
