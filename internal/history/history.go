// Package history stores the per-session conversation exchanged with the
// brain. The in-memory log is the default; the SQLite log survives restarts
// and is a drop-in replacement behind the same Log contract.
package history

import (
	"fmt"

	"github.com/Varamadon/auto-refactor/internal/config"
)

// Open builds the Log selected by cfg.Backend. SQLite logs must be closed
// by the caller.
func Open(cfg config.HistoryConfig) (Log, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryLog(), nil
	case config.BackendSQLite:
		l, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported history backend %q", cfg.Backend)
	}
}
