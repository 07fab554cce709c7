// Package metrics provides domain types for sync history and its aggregates.
package metrics

import (
	"sort"
	"time"
)

// OutcomeAborted marks a run that ended without reaching a deadline, either
// because it was cancelled or because the consumer stopped pulling.
const OutcomeAborted = "aborted"

// SyncRecord is the outcome of one sync run.
type SyncRecord struct {
	ID          string        // Sequence id
	Profile     string        // conversation_list or conversation_thread
	DeviceID    string        // Device synced
	ThreadID    int64         // Thread synced, 0 for the conversation list
	Outcome     string        // Completion reason, or OutcomeAborted
	Warm        bool          // A cache was replayed before listening
	Cached      int           // Cached items replayed
	Received    int           // Live items received
	Total       uint64        // Count reported by the store marker
	Errors      int           // Recoverable errors, e.g. reconnects
	Elapsed     time.Duration // Listening time reported at completion
	StartedAt   time.Time     // First pull
	CompletedAt time.Time     // Last event
}

// Completed reports whether the run ended on a deadline.
func (r SyncRecord) Completed() bool {
	return r.Outcome != "" && r.Outcome != OutcomeAborted
}

// Duration returns the wall time between start and completion.
func (r SyncRecord) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// ProfileMetrics aggregates runs of one profile.
type ProfileMetrics struct {
	Profile       string           // Profile name
	TotalRuns     int64            // Number of runs
	AbortedRuns   int64            // Runs that never completed
	ByOutcome     map[string]int64 // Runs per completion reason
	WarmRuns      int64            // Runs that replayed a cache
	ItemsReceived int64            // Live items across all runs
	Errors        int64            // Recoverable errors across all runs
	AvgDuration   time.Duration    // Average wall time
	MaxDuration   time.Duration    // Longest wall time
}

// TimePeriod represents a time period for metrics aggregation.
type TimePeriod struct {
	Start time.Time
	End   time.Time
}

// Duration returns the duration of the time period.
func (p TimePeriod) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Summary is the history of a period.
type Summary struct {
	Period    TimePeriod
	TotalRuns int64
	Profiles  []ProfileMetrics // Sorted by profile name
}

// Summarize aggregates records per profile.
func Summarize(records []SyncRecord, period TimePeriod) *Summary {
	byProfile := make(map[string]*ProfileMetrics)
	var order []string
	total := make(map[string]time.Duration)

	for _, r := range records {
		pm, ok := byProfile[r.Profile]
		if !ok {
			pm = &ProfileMetrics{Profile: r.Profile, ByOutcome: make(map[string]int64)}
			byProfile[r.Profile] = pm
			order = append(order, r.Profile)
		}
		pm.TotalRuns++
		if r.Completed() {
			pm.ByOutcome[r.Outcome]++
		} else {
			pm.AbortedRuns++
		}
		if r.Warm {
			pm.WarmRuns++
		}
		pm.ItemsReceived += int64(r.Received)
		pm.Errors += int64(r.Errors)

		d := r.Duration()
		total[r.Profile] += d
		if d > pm.MaxDuration {
			pm.MaxDuration = d
		}
	}

	sort.Strings(order)
	s := &Summary{Period: period, TotalRuns: int64(len(records))}
	for _, name := range order {
		pm := byProfile[name]
		pm.AvgDuration = total[name] / time.Duration(pm.TotalRuns)
		s.Profiles = append(s.Profiles, *pm)
	}
	return s
}

// Filter defines criteria for querying sync history.
type Filter struct {
	Profile   string    // Filter by profile (empty for all)
	DeviceID  string    // Filter by device (empty for all)
	StartDate time.Time // Include runs started from this time (zero for no lower bound)
	EndDate   time.Time // Include runs started until this time (zero for no upper bound)
	Limit     int       // Maximum number of records (0 for no limit)
}

// WithPeriod sets the time period for the filter.
func (f Filter) WithPeriod(start, end time.Time) Filter {
	f.StartDate = start
	f.EndDate = end
	return f
}

// WithDevice sets the device filter.
func (f Filter) WithDevice(deviceID string) Filter {
	f.DeviceID = deviceID
	return f
}

// Since returns a filter for runs started within d of now.
func Since(d time.Duration) Filter {
	now := time.Now()
	return Filter{StartDate: now.Add(-d), EndDate: now}
}

// Last24Hours returns a filter for the last 24 hours.
func Last24Hours() Filter {
	return Since(24 * time.Hour)
}

// Last7Days returns a filter for the last 7 days.
func Last7Days() Filter {
	return Since(7 * 24 * time.Hour)
}
