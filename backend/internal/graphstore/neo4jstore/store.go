// Package neo4jstore implements graphstore.Store on Neo4j. Node kinds are
// labels, edge labels are relationship types and the edge weight is the
// relationship's facet property.
package neo4jstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"socialgraph/backend/internal/graphstore"
	"socialgraph/backend/pkg/logger"
)

// Store handles all Neo4j database operations
type Store struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewStore wraps an existing driver.
func NewStore(driver neo4j.DriverWithContext) *Store {
	return &Store{
		driver: driver,
		logger: logger.Named("neo4jstore"),
	}
}

// Open creates a driver and verifies connectivity.
func Open(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return NewStore(driver), nil
}

// Close closes the Neo4j driver connection
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Migrate installs one uniqueness constraint per node key. The constraint is
// what makes CreateNode a guarded insert.
func (s *Store) Migrate(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, kind := range graphstore.Kinds {
		spec := graphstore.Spec(kind)
		query := fmt.Sprintf(
			"CREATE CONSTRAINT %s_%s_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			kind, spec.Key, kind, spec.Key,
		)
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create constraint for %s: %w", kind, err)
		}
		s.logger.Info("Constraint ensured", zap.String("kind", string(kind)), zap.String("key", spec.Key))
	}
	return nil
}

// Wipe removes every node. Used by tests and the seed script.
func (s *Store) Wipe(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	return err
}

// NewTxn opens a session and an explicit transaction on it.
func (s *Store) NewTxn(ctx context.Context, readOnly bool) (graphstore.Txn, error) {
	mode := neo4j.AccessModeWrite
	if readOnly {
		mode = neo4j.AccessModeRead
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		session.Close(ctx)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txn{session: session, tx: tx, readOnly: readOnly}, nil
}
