// Package migrate versions persisted data, upgrades it between versions, and
// exports or imports complete backups.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tessro/encore/internal/blobstore"
	"github.com/tessro/encore/internal/prefs"
)

// CurrentVersion is the storage version written by this build.
const CurrentVersion = 2

// Migration upgrades persisted data to Version.
type Migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, m *Migrator) error
}

// Migrations lists every migration in version order.
var Migrations = []Migration{
	{Version: 2, Name: "trim lists and expire queue", Apply: trimAndExpire},
}

// Migrator runs migrations and backups over the preferences file and the
// blob store.
type Migrator struct {
	prefs  *prefs.Store
	store  blobstore.Store
	logger *slog.Logger

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// New creates a Migrator.
func New(p *prefs.Store, store blobstore.Store, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		prefs:  p,
		store:  store,
		logger: logger.With("component", "migrate"),
		Now:    time.Now,
	}
}

// Version returns the recorded storage version. Data written before
// versioning is treated as version 1.
func (m *Migrator) Version() int {
	if v := m.prefs.StorageVersion(); v > 0 {
		return v
	}
	return 1
}

// Run applies every migration newer than the recorded version and records
// each version as it completes. It returns the versions applied.
func (m *Migrator) Run(ctx context.Context) ([]int, error) {
	current := m.Version()
	var applied []int
	for _, mig := range Migrations {
		if mig.Version <= current {
			continue
		}
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		m.logger.Info("applying migration", "version", mig.Version, "name", mig.Name)
		if err := mig.Apply(ctx, m); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if err := m.prefs.SetStorageVersion(mig.Version); err != nil {
			return applied, fmt.Errorf("failed to record version %d: %w", mig.Version, err)
		}
		current = mig.Version
		applied = append(applied, mig.Version)
	}
	if m.prefs.StorageVersion() != current {
		if err := m.prefs.SetStorageVersion(current); err != nil {
			return applied, fmt.Errorf("failed to record version %d: %w", current, err)
		}
	}
	return applied, nil
}

// trimAndExpire caps the history lists and drops an expired queue snapshot.
func trimAndExpire(_ context.Context, m *Migrator) error {
	caps := map[string]int{
		prefs.KeyRecentlyPlayed: prefs.MaxRecentlyPlayed,
		prefs.KeyHistory:        prefs.MaxHistory,
		prefs.KeySearchHistory:  prefs.MaxSearchHistory,
	}
	for key, limit := range caps {
		raw, ok := m.prefs.Raw(key)
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			m.logger.Warn("dropping unreadable list", "key", key, "error", err)
			if err := m.prefs.Delete(key); err != nil {
				return err
			}
			continue
		}
		if len(items) <= limit {
			continue
		}
		data, err := json.Marshal(items[:limit])
		if err != nil {
			return err
		}
		if err := m.prefs.SetRaw(key, data); err != nil {
			return err
		}
	}

	// LoadQueue removes expired and unreadable snapshots.
	_, err := m.prefs.LoadQueue()
	return err
}
