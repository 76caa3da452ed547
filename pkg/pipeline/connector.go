package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smith-xyz/golang-check-elider/pkg/config"
	"github.com/smith-xyz/golang-check-elider/pkg/oracle"
	"github.com/smith-xyz/golang-check-elider/pkg/oracle/neo4jstore"
	"github.com/smith-xyz/golang-check-elider/pkg/oracle/sqlitestore"
	"github.com/smith-xyz/golang-check-elider/pkg/utils"
)

// NewConnector opens the oracle backend named by cfg, wrapped in a result
// cache when [oracle] cache_size is positive. It returns a nil connector when
// classification is disabled.
func NewConnector(ctx context.Context, logger *slog.Logger, cfg *config.Config) (oracle.Connector, error) {
	if !cfg.Classifier.Enabled || cfg.Oracle.Backend == config.BackendNone {
		return nil, nil
	}

	var inner oracle.Connector
	switch cfg.Oracle.Backend {
	case config.BackendNeo4j:
		store, err := neo4jstore.Connect(ctx, logger, neo4jstore.Config{
			URI:      cfg.Oracle.URI,
			Username: cfg.Oracle.Username,
			Password: cfg.Oracle.Password,
			Database: cfg.Oracle.Database,
		})
		if err != nil {
			return nil, err
		}
		inner = store
	case config.BackendSQLite:
		if !utils.FileExists(cfg.Oracle.Path) {
			return nil, fmt.Errorf("attack graph database %s does not exist", cfg.Oracle.Path)
		}
		store, err := sqlitestore.Open(cfg.Oracle.Path)
		if err != nil {
			return nil, err
		}
		inner = store
	case config.BackendFile:
		records, err := oracle.LoadFile(cfg.Oracle.Path)
		if err != nil {
			return nil, err
		}
		inner = oracle.NewStatic(records)
	default:
		return nil, fmt.Errorf("unsupported oracle backend %q", cfg.Oracle.Backend)
	}
	logger.Debug("Opened oracle", "backend", cfg.Oracle.Backend, "cache_size", cfg.Oracle.CacheSize)

	if cfg.Oracle.CacheSize <= 0 {
		return inner, nil
	}
	cached, err := oracle.NewCached(inner, cfg.Oracle.CacheSize)
	if err != nil {
		_ = inner.Close(ctx)
		return nil, err
	}
	return cached, nil
}

// ImportAttackGraph loads attack-graph records from a JSON file into the
// SQLite database at dbPath and returns how many were imported.
func ImportAttackGraph(ctx context.Context, logger *slog.Logger, recordsFile, dbPath string) (int, error) {
	records, err := oracle.LoadFile(recordsFile)
	if err != nil {
		return 0, err
	}

	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = store.Close(ctx) }()

	if err := store.Import(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to import %s into %s: %w", recordsFile, dbPath, err)
	}
	logger.Info("Imported attack graph", "records", len(records), "database", dbPath)
	return len(records), nil
}
