// Package stores opens the graph store backend selected by configuration.
package stores

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"socialgraph/backend/internal/graphstore"
	"socialgraph/backend/internal/graphstore/badgerstore"
	"socialgraph/backend/internal/graphstore/dgraphstore"
	"socialgraph/backend/internal/graphstore/neo4jstore"
	"socialgraph/backend/pkg/config"
)

// Open opens the configured graph store and installs its schema. The caller
// owns the returned store and must close it.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (graphstore.Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.StoreBackend {
	case config.BackendDgraph:
		store, err := dgraphstore.Open(ctx, cfg.DgraphAddr, log.Named("dgraph"))
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close(ctx)
			return nil, fmt.Errorf("failed to install dgraph schema: %w", err)
		}
		return store, nil
	case config.BackendNeo4j:
		store, err := neo4jstore.Open(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close(ctx)
			return nil, fmt.Errorf("failed to install neo4j constraints: %w", err)
		}
		return store, nil
	case config.BackendBadger:
		if !cfg.BadgerInMemory {
			if err := os.MkdirAll(cfg.BadgerDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create badger dir: %w", err)
			}
		}
		store, err := badgerstore.Open(badgerstore.Options{
			Dir:      cfg.BadgerDir,
			InMemory: cfg.BadgerInMemory,
			Logger:   log.Named("badger"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
