package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/testutil"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	loader, _ := NewLoader(dir)
	testutil.AssertNoError(t, loader.Save(NewDefaultConfig(), ""))

	w, err := NewWatcher(loader, "", 20*time.Millisecond, logging.Discard())
	testutil.AssertNoError(t, err)
	defer w.Close()

	var mu sync.Mutex
	var got []*Config
	w.Subscribe(func(c *Config) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	testutil.AssertNoError(t, w.Start())

	// Invalid content is ignored.
	testutil.AssertNoError(t, os.WriteFile(loader.DefaultConfigPath(), []byte("dedup:\n  backend: redis\n"), 0600))
	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	if len(got) != 0 {
		t.Fatalf("expected invalid config to be ignored, got %d reloads", len(got))
	}
	mu.Unlock()

	testutil.AssertNoError(t, os.WriteFile(loader.DefaultConfigPath(), []byte("logging:\n  level: debug\n"), 0600))
	testutil.Eventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Logging.Level == "debug"
	}, "expected a reload with the new level")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	loader, _ := NewLoader(dir)

	w, err := NewWatcher(loader, "", 20*time.Millisecond, logging.Discard())
	testutil.AssertNoError(t, err)
	defer w.Close()

	calls := 0
	var mu sync.Mutex
	w.Subscribe(func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	testutil.AssertNoError(t, w.Start())

	testutil.AssertNoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0600))
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("expected no reloads, got %d", calls)
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	loader, _ := NewLoader(t.TempDir())
	w, err := NewWatcher(loader, "", 0, nil)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, w.Start())
	testutil.AssertNoError(t, w.Close())
	testutil.AssertNoError(t, w.Close())
}

func TestWatcher_NotifiesEverySubscriber(t *testing.T) {
	dir := t.TempDir()
	loader, _ := NewLoader(dir)
	testutil.AssertNoError(t, loader.Save(NewDefaultConfig(), ""))

	w, err := NewWatcher(loader, "", 20*time.Millisecond, logging.Discard())
	testutil.AssertNoError(t, err)
	defer w.Close()

	var mu sync.Mutex
	first, second := 0, 0
	w.Subscribe(func(*Config) {
		mu.Lock()
		first++
		mu.Unlock()
	})
	w.Subscribe(func(*Config) {
		mu.Lock()
		second++
		mu.Unlock()
		// Subscribing during delivery must not block on the subscriber lock.
		w.Subscribe(func(*Config) {})
	})
	testutil.AssertNoError(t, w.Start())

	testutil.AssertNoError(t, os.WriteFile(loader.DefaultConfigPath(), []byte("logging:\n  level: warn\n"), 0600))
	testutil.Eventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return first > 0 && second > 0
	}, "expected both subscribers to see the reload")
}
