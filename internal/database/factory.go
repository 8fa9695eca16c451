package database

import (
	"fmt"
	"os"
	"path/filepath"

	"ingester-go/internal/config"
	"ingester-go/internal/ingest"
)

// DatabaseFileName is the ledger file inside the configured data dir.
const DatabaseFileName = "ingester.db"

// NewLedgerFromConfig creates a ledger based on the database config type.
func NewLedgerFromConfig(cfg config.DatabaseConfig, clock ingest.Clock) (*SQLiteLedger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteLedger(filepath.Join(cfg.DataDir, DatabaseFileName), clock)
	case "memory":
		return NewSQLiteLedger(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
