// Package config provides configuration structs and utilities for connectsync.
package config

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Config represents the root configuration.
type Config struct {
	DefaultDevice string              `yaml:"default_device"` // Device id used when a command does not name one
	Bus           BusConfig           `yaml:"bus"`
	Sync          SyncConfig          `yaml:"sync"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Dedup         DedupConfig         `yaml:"dedup"`
	Server        ServerConfig        `yaml:"server"`
	History       HistoryConfig       `yaml:"history"`
	Logging       LoggingConfig       `yaml:"logging"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// BusConfig holds session bus settings.
type BusConfig struct {
	Address    string        `yaml:"address,omitempty"` // Empty uses DBUS_SESSION_BUS_ADDRESS
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// TimeoutsConfig holds the deadlines of one sync profile.
type TimeoutsConfig struct {
	Hard         time.Duration `yaml:"hard"`
	ColdPeerWait time.Duration `yaml:"cold_peer_wait"`
	WarmPeerWait time.Duration `yaml:"warm_peer_wait"`
	Activity     time.Duration `yaml:"activity"`
}

// SyncConfig holds per-profile sync settings.
type SyncConfig struct {
	List            TimeoutsConfig `yaml:"list"`
	Thread          TimeoutsConfig `yaml:"thread"`
	MessagesPerPage int            `yaml:"messages_per_page"`
}

// NotificationsConfig controls which events are surfaced and how.
type NotificationsConfig struct {
	SMS             bool          `yaml:"sms"`
	Calls           bool          `yaml:"calls"`
	Files           bool          `yaml:"files"`
	Devices         bool          `yaml:"devices"`
	SMSShowSender   bool          `yaml:"sms_show_sender"`
	SMSShowContent  bool          `yaml:"sms_show_content"`
	CallShowName    bool          `yaml:"call_show_name"`
	CallShowNumber  bool          `yaml:"call_show_number"`
	TimeoutSecs     int           `yaml:"timeout_secs"`
	RefreshDebounce time.Duration `yaml:"refresh_debounce"`
}

// DedupConfig selects the cross-process dedup store.
type DedupConfig struct {
	Backend       string        `yaml:"backend"` // sqlite, bbolt, memory
	Path          string        `yaml:"path,omitempty"`
	Window        time.Duration `yaml:"window"`
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// ServerConfig holds the websocket server settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HistoryConfig controls the record of past sync runs.
type HistoryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path,omitempty"` // Empty uses ~/.connectsync/connectsync.db
	Retention time.Duration `yaml:"retention"`      // 0 keeps everything
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// Default configuration values.
const (
	DefaultRetryDelay = 5 * time.Second

	DefaultMessagesPerPage = 50

	DefaultNotificationTimeoutSecs = 5
	MinNotificationTimeoutSecs     = 1
	MaxNotificationTimeoutSecs     = 30
	DefaultRefreshDebounce         = 3 * time.Second

	DefaultDedupBackend       = "sqlite"
	DefaultDedupWindow        = 2 * time.Second
	DefaultDedupRetention     = 7 * 24 * time.Hour
	DefaultDedupPruneInterval = time.Hour

	DefaultServerAddress = "127.0.0.1:8787"

	DefaultHistoryRetention = 30 * 24 * time.Hour

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "connectsync"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

var validDedupBackends = map[string]bool{
	"sqlite": true,
	"bbolt":  true,
	"memory": true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			RetryDelay: DefaultRetryDelay,
		},
		Sync: SyncConfig{
			List: TimeoutsConfig{
				Hard:         20 * time.Second,
				ColdPeerWait: 8 * time.Second,
				WarmPeerWait: 3 * time.Second,
				Activity:     3 * time.Second,
			},
			Thread: TimeoutsConfig{
				Hard:         20 * time.Second,
				ColdPeerWait: 20 * time.Second,
				WarmPeerWait: 3 * time.Second,
				Activity:     8 * time.Second,
			},
			MessagesPerPage: DefaultMessagesPerPage,
		},
		Notifications: NotificationsConfig{
			SMS:             true,
			Calls:           true,
			Files:           true,
			Devices:         true,
			SMSShowSender:   true,
			SMSShowContent:  true,
			CallShowName:    true,
			CallShowNumber:  true,
			TimeoutSecs:     DefaultNotificationTimeoutSecs,
			RefreshDebounce: DefaultRefreshDebounce,
		},
		Dedup: DedupConfig{
			Backend:       DefaultDedupBackend,
			Window:        DefaultDedupWindow,
			Retention:     DefaultDedupRetention,
			PruneInterval: DefaultDedupPruneInterval,
		},
		Server: ServerConfig{
			Address: DefaultServerAddress,
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: DefaultHistoryRetention,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Tracing: TracingConfig{
			ExporterType: DefaultTracingExporterType,
			SampleRate:   DefaultTracingSampleRate,
			ServiceName:  DefaultTracingServiceName,
		},
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Bus.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bus: %w", err))
	}
	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := c.Notifications.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
	}
	if err := c.Dedup.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dedup: %w", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if c.History.Retention < 0 {
		errs = append(errs, errors.New("history: retention must be non-negative"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks if the BusConfig is valid.
func (b *BusConfig) Validate() error {
	if b.RetryDelay < 0 {
		return errors.New("retry_delay must be non-negative")
	}
	return nil
}

// Validate checks that every deadline is positive and the hard cap is the
// longest.
func (t *TimeoutsConfig) Validate() error {
	var errs []error
	fields := []struct {
		name string
		d    time.Duration
	}{
		{"hard", t.Hard},
		{"cold_peer_wait", t.ColdPeerWait},
		{"warm_peer_wait", t.WarmPeerWait},
		{"activity", t.Activity},
	}
	for _, f := range fields {
		if f.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", f.name))
		}
	}
	if t.ColdPeerWait > t.Hard || t.WarmPeerWait > t.Hard {
		errs = append(errs, errors.New("peer waits must not exceed hard"))
	}
	return errors.Join(errs...)
}

// Validate checks if the SyncConfig is valid.
func (s *SyncConfig) Validate() error {
	var errs []error
	if err := s.List.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("list: %w", err))
	}
	if err := s.Thread.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("thread: %w", err))
	}
	if s.MessagesPerPage <= 0 {
		errs = append(errs, errors.New("messages_per_page must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks if the NotificationsConfig is valid.
func (n *NotificationsConfig) Validate() error {
	var errs []error
	if n.TimeoutSecs < MinNotificationTimeoutSecs || n.TimeoutSecs > MaxNotificationTimeoutSecs {
		errs = append(errs, fmt.Errorf("timeout_secs must be between %d and %d", MinNotificationTimeoutSecs, MaxNotificationTimeoutSecs))
	}
	if n.RefreshDebounce < 0 {
		errs = append(errs, errors.New("refresh_debounce must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks if the DedupConfig is valid.
func (d *DedupConfig) Validate() error {
	var errs []error
	if !validDedupBackends[d.Backend] {
		errs = append(errs, fmt.Errorf("invalid backend %q: must be one of sqlite, bbolt, memory", d.Backend))
	}
	if d.Window < 0 {
		errs = append(errs, errors.New("window must be non-negative"))
	}
	if d.Retention < 0 || d.PruneInterval < 0 {
		errs = append(errs, errors.New("retention and prune_interval must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks if the ServerConfig is valid.
func (s *ServerConfig) Validate() error {
	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", s.Address, err)
	}
	return nil
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}

	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	return errors.Join(errs...)
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	return errors.Join(errs...)
}
