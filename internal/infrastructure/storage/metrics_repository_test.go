package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/domain/metrics"
)

func openMetrics(t *testing.T) *MetricsRepository {
	t.Helper()
	conn, err := NewConnection(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	if err := conn.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	repo := NewMetricsRepository(conn)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func record(id, profile, device string, started time.Time) *metrics.SyncRecord {
	return &metrics.SyncRecord{
		ID:          id,
		Profile:     profile,
		DeviceID:    device,
		Outcome:     "activity_deadline",
		Warm:        true,
		Cached:      3,
		Received:    2,
		Total:       7,
		Errors:      1,
		Elapsed:     1500 * time.Millisecond,
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
	}
}

func TestMetricsRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := openMetrics(t)
	base := time.UnixMilli(1_700_000_000_000)

	want := record("a", "conversation_list", "phone", base)
	if err := repo.SaveSync(ctx, want); err != nil {
		t.Fatalf("SaveSync() error = %v", err)
	}
	if err := repo.SaveSync(ctx, record("b", "conversation_thread", "phone", base.Add(time.Minute))); err != nil {
		t.Fatalf("SaveSync() error = %v", err)
	}

	got, err := repo.GetSyncs(ctx, metrics.Filter{})
	if err != nil {
		t.Fatalf("GetSyncs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "b" {
		t.Errorf("expected most recent first, got %q", got[0].ID)
	}

	a := got[1]
	if a.Profile != want.Profile || a.DeviceID != want.DeviceID || a.Outcome != want.Outcome {
		t.Errorf("unexpected record: %+v", a)
	}
	if !a.Warm || a.Cached != 3 || a.Received != 2 || a.Total != 7 || a.Errors != 1 {
		t.Errorf("counters not round-tripped: %+v", a)
	}
	if a.Elapsed != want.Elapsed || !a.StartedAt.Equal(want.StartedAt) || !a.CompletedAt.Equal(want.CompletedAt) {
		t.Errorf("times not round-tripped: %+v", a)
	}
}

func TestMetricsRepository_SaveNil(t *testing.T) {
	if err := openMetrics(t).SaveSync(context.Background(), nil); err == nil {
		t.Error("expected error for nil record")
	}
}

func TestMetricsRepository_Filters(t *testing.T) {
	ctx := context.Background()
	repo := openMetrics(t)
	base := time.UnixMilli(1_700_000_000_000)

	for i, dev := range []string{"phone", "tablet", "phone"} {
		rec := record(string(rune('a'+i)), "conversation_list", dev, base.Add(time.Duration(i)*time.Hour))
		if err := repo.SaveSync(ctx, rec); err != nil {
			t.Fatalf("SaveSync() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter metrics.Filter
		want   int
	}{
		{"all", metrics.Filter{}, 3},
		{"device", metrics.Filter{}.WithDevice("phone"), 2},
		{"profile", metrics.Filter{Profile: "conversation_thread"}, 0},
		{"period", metrics.Filter{}.WithPeriod(base.Add(30*time.Minute), base.Add(90*time.Minute)), 1},
		{"limit", metrics.Filter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetSyncs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetSyncs() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(got))
			}
		})
	}
}

func TestMetricsRepository_SummaryAndPrune(t *testing.T) {
	ctx := context.Background()
	repo := openMetrics(t)
	base := time.UnixMilli(1_700_000_000_000)

	_ = repo.SaveSync(ctx, record("a", "conversation_list", "phone", base))
	_ = repo.SaveSync(ctx, record("b", "conversation_list", "phone", base.Add(time.Hour)))

	summary, err := repo.GetSummary(ctx, metrics.Filter{Limit: 1})
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if summary.TotalRuns != 2 || len(summary.Profiles) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Profiles[0].ItemsReceived != 4 {
		t.Errorf("expected 4 items, got %d", summary.Profiles[0].ItemsReceived)
	}

	n, err := repo.Prune(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
}
