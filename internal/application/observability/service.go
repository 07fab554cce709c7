// Package observability records the outcome of sync runs so their history
// can be queried later.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/domain/metrics"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

// Service hands out observers that persist sync records.
type Service struct {
	logger         *logging.Logger
	metricsStorage ports.MetricsStoragePort
	now            func() time.Time
}

// ServiceConfig holds configuration for the observability service.
type ServiceConfig struct {
	Logger         *logging.Logger
	MetricsStorage ports.MetricsStoragePort // nil disables recording
	Clock          func() time.Time
}

// NewService creates a new observability service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		logger:         logger,
		metricsStorage: cfg.MetricsStorage,
		now:            now,
	}
}

// SyncObserver accumulates the events of one sync run. It is an EventSink;
// Finish writes the record.
type SyncObserver struct {
	service *Service

	mu       sync.Mutex
	record   metrics.SyncRecord
	finished bool
}

var _ ports.EventSink = (*SyncObserver)(nil)

// StartSync begins observing the run id of profile against target.
func (s *Service) StartSync(id, profile string, target syncdomain.Target) *SyncObserver {
	return &SyncObserver{
		service: s,
		record: metrics.SyncRecord{
			ID:        id,
			Profile:   profile,
			DeviceID:  target.DeviceID,
			ThreadID:  target.ThreadID,
			Outcome:   metrics.OutcomeAborted,
			StartedAt: s.now(),
		},
	}
}

// Publish updates the record from one sequence event.
func (o *SyncObserver) Publish(evt syncdomain.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch e := evt.(type) {
	case syncdomain.ItemReceived:
		if e.Cached {
			o.record.Cached++
		}
	case syncdomain.SyncStarted:
		o.record.Warm = e.Warm
	case syncdomain.Error:
		o.record.Errors++
	case syncdomain.SyncComplete:
		o.record.Outcome = string(e.Reason)
		o.record.Received = e.Received
		o.record.Total = e.Total
		o.record.Elapsed = e.Elapsed
	}
}

// Record returns a copy of the record so far.
func (o *SyncObserver) Record() metrics.SyncRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.record
}

// Finish stamps the completion time and saves the record. Runs that never
// completed are saved as aborted. Later calls are no-ops.
func (o *SyncObserver) Finish(ctx context.Context) error {
	o.mu.Lock()
	if o.finished {
		o.mu.Unlock()
		return nil
	}
	o.finished = true
	o.record.CompletedAt = o.service.now()
	rec := o.record
	o.mu.Unlock()

	store := o.service.metricsStorage
	if store == nil {
		return nil
	}
	// The run may have ended because ctx was cancelled; the record is still wanted.
	if err := store.SaveSync(context.WithoutCancel(ctx), &rec); err != nil {
		o.service.logger.Error("failed to save sync record",
			"error", err,
			"session_id", rec.ID,
		)
		return err
	}
	o.service.logger.Debug("sync recorded",
		"session_id", rec.ID,
		"outcome", rec.Outcome,
		"duration", rec.Duration(),
	)
	return nil
}
