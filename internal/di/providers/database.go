package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/logger"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/openshelf/openshelf-server/internal/store/badgerdb"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the persistence engine selected by configuration.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Storage.Engine {
	case config.EngineBadger:
		st, err = badgerdb.Open(filepath.Join(cfg.Storage.DataPath, "badger"), log.Logger)
	default:
		st, err = sqlite.Open(filepath.Join(cfg.Storage.DataPath, "openshelf.db"), log.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized",
		"engine", cfg.Storage.Engine,
		"path", cfg.Storage.DataPath,
	)

	return &StoreHandle{Store: st}, nil
}
