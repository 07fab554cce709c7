package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/infrastructure/testutil"
)

func TestLoader_LoadMissingReturnsDefaults(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	testutil.AssertNoError(t, err)

	cfg, err := loader.Load("")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.Bus.RetryDelay, DefaultRetryDelay)
	if loader.Exists() {
		t.Error("Exists() = true for a missing file")
	}
}

func TestLoader_LoadMergesDefaults(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, ConfigFileName, `
default_device: a1b2c3
bus:
  retry_delay: 2s
sync:
  thread:
    activity: 500ms
dedup:
  backend: bbolt
notifications:
  sms_show_content: false
`)
	loader, _ := NewLoader(dir)

	cfg, err := loader.Load("")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.DefaultDevice, "a1b2c3")
	testutil.AssertEqual(t, cfg.Bus.RetryDelay, 2*time.Second)
	testutil.AssertEqual(t, cfg.Sync.Thread.Activity, 500*time.Millisecond)
	testutil.AssertEqual(t, cfg.Sync.Thread.Hard, 20*time.Second)
	testutil.AssertEqual(t, cfg.Dedup.Backend, "bbolt")
	testutil.AssertEqual(t, cfg.Notifications.SMSShowContent, false)
	testutil.AssertEqual(t, cfg.Notifications.SMS, true)
	testutil.AssertEqual(t, cfg.Sync.MessagesPerPage, DefaultMessagesPerPage)
}

func TestLoader_LoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()
	loader, _ := NewLoader(dir)

	if _, err := loader.LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}

	path := testutil.WriteFile(t, dir, "bad.yaml", "bus: [unclosed")
	if _, err := loader.LoadFromFile(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	loader, _ := NewLoader(filepath.Join(dir, "nested"))

	cfg := NewDefaultConfig()
	cfg.DefaultDevice = "dev"
	cfg.Sync.List.Hard = 45 * time.Second
	testutil.AssertNoError(t, loader.Save(cfg, ""))

	if !loader.Exists() {
		t.Fatal("Exists() = false after Save")
	}
	got, err := loader.Load("")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.DefaultDevice, "dev")
	testutil.AssertEqual(t, got.Sync.List.Hard, 45*time.Second)
	testutil.AssertNoError(t, got.Validate())
}
