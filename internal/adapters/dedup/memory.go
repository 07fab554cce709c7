// Package dedup provides the dedup gate backends and a factory over them.
package dedup

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
)

type memoryEntry struct {
	ts     int64
	seenAt time.Time
}

// MemoryGate implements ports.DedupGate in process memory. It only
// deduplicates within one process.
type MemoryGate struct {
	mu      sync.Mutex
	entries map[string][]memoryEntry
	window  time.Duration
	now     func() time.Time
}

var _ ports.DedupGate = (*MemoryGate)(nil)

// NewMemoryGate creates an in-memory gate.
func NewMemoryGate(window time.Duration) *MemoryGate {
	return &MemoryGate{
		entries: make(map[string][]memoryEntry),
		window:  window,
		now:     time.Now,
	}
}

func memoryKey(key ports.DedupKey) string {
	return string(key.Class) + "\x00" + key.Identity
}

// CheckAndMark reports whether key was seen and records it if not.
func (m *MemoryGate) CheckAndMark(_ context.Context, key ports.DedupKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memoryKey(key)
	ts := key.Timestamp.UnixMilli()
	w := m.window.Milliseconds()
	for _, e := range m.entries[k] {
		if e.ts >= ts-w && e.ts <= ts+w {
			return true, nil
		}
	}
	m.entries[k] = append(m.entries[k], memoryEntry{ts: ts, seenAt: m.now()})
	return false, nil
}

// Prune removes keys recorded before cutoff.
func (m *MemoryGate) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for k, list := range m.entries {
		kept := list[:0]
		for _, e := range list {
			if e.seenAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(m.entries, k)
		} else {
			m.entries[k] = kept
		}
	}
	return removed, nil
}

// Stats counts stored keys.
func (m *MemoryGate) Stats(context.Context) (ports.DedupStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ports.DedupStats{ByClass: make(map[string]int64)}
	for k, list := range m.entries {
		class, _, _ := strings.Cut(k, "\x00")
		stats.ByClass[class] += int64(len(list))
		stats.Entries += int64(len(list))
	}
	return stats, nil
}

// Close drops all keys.
func (m *MemoryGate) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]memoryEntry)
	return nil
}
