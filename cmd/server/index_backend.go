package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autoequip.ai/internal/persistence/indexdb"
)

// openIndex returns nil when the index is disabled by flag or by
// AUTOEQUIP_INDEX_BACKEND.
func openIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("AUTOEQUIP_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "autoequip.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported AUTOEQUIP_INDEX_BACKEND: %s", backend)
	}
}
