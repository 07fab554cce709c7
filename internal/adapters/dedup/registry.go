package dedup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/storage"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBbolt  = "bbolt"
	BackendMemory = "memory"
)

// Backends lists the supported backends, default first.
func Backends() []string {
	return []string{BackendSQLite, BackendBbolt, BackendMemory}
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string // Empty means the backend's default file
	Window  time.Duration // Zero means config.DefaultDedupWindow
}

// New opens the gate described by opts.
func New(opts Options) (ports.DedupGate, error) {
	if opts.Window <= 0 {
		// Call and file keys are stamped at receipt, so they need a window to match.
		opts.Window = config.DefaultDedupWindow
	}
	switch opts.Backend {
	case "", BackendSQLite:
		conn, err := storage.NewConnection(opts.Path)
		if err != nil {
			return nil, err
		}
		if err := conn.Open(); err != nil {
			return nil, domerrors.NewError(domerrors.CodeStorage, "open dedup database", err)
		}
		return storage.NewDedupRepository(conn, opts.Window), nil

	case BackendBbolt:
		path := opts.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine home directory: %w", err)
			}
			path = filepath.Join(home, ".connectsync", "dedup.bolt")
		}
		gate, err := NewBboltGate(path, opts.Window)
		if err != nil {
			return nil, domerrors.NewError(domerrors.CodeStorage, "open dedup database", err)
		}
		return gate, nil

	case BackendMemory:
		return NewMemoryGate(opts.Window), nil
	}
	return nil, domerrors.WithContext(
		domerrors.NewError(domerrors.CodeConfiguration, "unknown dedup backend", domerrors.ErrUnknownBackend),
		"backend", opts.Backend,
	)
}
