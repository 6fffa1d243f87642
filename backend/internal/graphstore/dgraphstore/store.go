// Package dgraphstore implements graphstore.Store on Dgraph. Edges are
// [uid] predicates with @reverse and @count; the edge weight is the
// "weight" facet.
package dgraphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/dgo/v240"
	"github.com/dgraph-io/dgo/v240/protos/api"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"socialgraph/backend/internal/graphstore"
)

// Store is a graphstore.Store backed by a Dgraph alpha.
type Store struct {
	conn   *grpc.ClientConn
	dg     *dgo.Dgraph
	logger *zap.Logger
}

// Open connects to the alpha at addr (host:port of the gRPC endpoint).
func Open(ctx context.Context, addr string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dgraph: %w", err)
	}
	s := &Store{
		conn:   conn,
		dg:     dgo.NewDgraphClient(api.NewDgraphClient(conn)),
		logger: logger,
	}
	logger.Info("Dgraph client created", zap.String("address", addr))
	return s, nil
}

// Migrate installs the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.dg.Alter(ctx, &api.Operation{Schema: Schema()}); err != nil {
		return fmt.Errorf("failed to alter schema: %w", err)
	}
	s.logger.Info("Dgraph schema installed")
	return nil
}

// DropAll wipes data and schema. Used by tests and the seed script.
func (s *Store) DropAll(ctx context.Context) error {
	return s.dg.Alter(ctx, &api.Operation{DropAll: true})
}

// NewTxn starts a transaction.
func (s *Store) NewTxn(ctx context.Context, readOnly bool) (graphstore.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var tx *dgo.Txn
	if readOnly {
		tx = s.dg.NewReadOnlyTxn()
	} else {
		tx = s.dg.NewTxn()
	}
	return &txn{tx: tx, readOnly: readOnly}, nil
}

// Close closes the gRPC connection.
func (s *Store) Close(_ context.Context) error {
	return s.conn.Close()
}

// Schema renders the DQL schema: one exact, upsert-guarded index per unique
// key, typed scalar attributes, and reverse-indexed counted uid edges.
func Schema() string {
	var b strings.Builder
	for _, kind := range graphstore.Kinds {
		spec := graphstore.Spec(kind)
		fmt.Fprintf(&b, "%s: string @index(exact) @upsert .\n", graphstore.Predicate(kind, spec.Key))
		for _, p := range spec.Props {
			fmt.Fprintf(&b, "%s: %s .\n", graphstore.Predicate(kind, p.Name), scalarType(p.Type))
		}
	}
	for _, label := range graphstore.Labels {
		fmt.Fprintf(&b, "%s: [uid] @reverse @count .\n", label)
	}
	for _, kind := range graphstore.Kinds {
		fmt.Fprintf(&b, "type %s {\n", kind)
		for _, pred := range typeFields(kind) {
			fmt.Fprintf(&b, "  %s\n", pred)
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func scalarType(t graphstore.PropType) string {
	switch t {
	case graphstore.PropBool:
		return "bool"
	case graphstore.PropInt:
		return "int @index(int)"
	default:
		return "string"
	}
}

// typeFields lists the predicates of a type. Outgoing edge labels belong to
// the type named by their prefix, so "<uid> * *" deletes them too.
func typeFields(kind graphstore.Kind) []string {
	spec := graphstore.Spec(kind)
	fields := []string{graphstore.Predicate(kind, spec.Key)}
	for _, p := range spec.Props {
		fields = append(fields, graphstore.Predicate(kind, p.Name))
	}
	for _, label := range graphstore.Labels {
		if strings.HasPrefix(string(label), string(kind)+".") {
			fields = append(fields, string(label))
		}
	}
	return fields
}

// scalarFields lists every scalar predicate of every kind, for hydration.
func scalarFields() []string {
	var fields []string
	for _, kind := range graphstore.Kinds {
		spec := graphstore.Spec(kind)
		fields = append(fields, graphstore.Predicate(kind, spec.Key))
		for _, p := range spec.Props {
			fields = append(fields, graphstore.Predicate(kind, p.Name))
		}
	}
	return fields
}
