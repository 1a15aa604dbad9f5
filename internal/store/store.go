// Package store opens the configured core.Store backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/JonMunkholm/racereg/internal/config"
	"github.com/JonMunkholm/racereg/internal/core"
	"github.com/JonMunkholm/racereg/internal/store/postgres"
	"github.com/JonMunkholm/racereg/internal/store/sqlite"
)

// Confirmer decides whether a missing database file may be created.
type Confirmer interface {
	ConfirmCreate(path string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(path string) (bool, error)

// ConfirmCreate implements Confirmer.
func (f ConfirmFunc) ConfirmCreate(path string) (bool, error) { return f(path) }

// AlwaysCreate creates missing databases without asking.
var AlwaysCreate = ConfirmFunc(func(string) (bool, error) { return true, nil })

// Open returns the store selected by cfg.Driver. For SQLite a missing file
// is only created when confirm agrees; otherwise ErrStoreNotCreated is
// returned and nothing is written.
func Open(ctx context.Context, cfg config.StoreConfig, confirm Confirmer) (core.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg)

	case config.DriverSQLite:
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			if confirm == nil {
				confirm = AlwaysCreate
			}
			ok, err := confirm.ConfirmCreate(cfg.Path)
			if err != nil {
				return nil, fmt.Errorf("confirm create: %w", err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: %s", core.ErrStoreNotCreated, cfg.Path)
			}
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", cfg.Path, err)
		}
		return sqlite.Open(ctx, cfg.Path)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
