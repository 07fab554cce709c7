package ports

import (
	"context"
	"time"
)

// DedupClass groups notifications that share a dedup key space.
type DedupClass string

const (
	DedupSMS  DedupClass = "sms"
	DedupCall DedupClass = "call"
	DedupFile DedupClass = "file"
)

// DedupKey identifies one surfaced notification.
type DedupKey struct {
	Class     DedupClass
	Identity  string    // Content identity, e.g. thread id or file url
	Timestamp time.Time // Event time; compared within the gate's window
}

// DedupStats summarizes a gate's stored keys.
type DedupStats struct {
	Entries int64            `json:"entries"`
	ByClass map[string]int64 `json:"by_class"`
}

// DedupGate answers "was this already surfaced?" across processes.
type DedupGate interface {
	// CheckAndMark reports whether key was already seen, and records it if not.
	// Two keys of one class and identity are the same when their timestamps
	// are within the gate's window of each other; a zero window means equal.
	CheckAndMark(ctx context.Context, key DedupKey) (seen bool, err error)

	// Prune removes keys recorded before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Stats reports the number of stored keys.
	Stats(ctx context.Context) (DedupStats, error)

	// Close releases the backing store.
	Close() error
}
