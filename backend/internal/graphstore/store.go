// Package graphstore defines the transactional graph store the social engine
// persists into, plus the schema shared by every backend.
package graphstore

import (
	"context"
	"errors"
)

// NodeID is the store-internal node identifier. It never leaves the
// identity resolver.
type NodeID string

// Props holds node attributes. Values are string, bool or int64.
type Props map[string]any

// Node is a hydrated node.
type Node struct {
	ID    NodeID
	Kind  Kind
	Key   string
	Props Props
}

// String returns the string property name, or "".
func (n Node) String(name string) string {
	s, _ := n.Props[name].(string)
	return s
}

// Bool returns the boolean property name, or false.
func (n Node) Bool(name string) bool {
	b, _ := n.Props[name].(bool)
	return b
}

// Int returns the integer property name, or 0.
func (n Node) Int(name string) int64 {
	switch v := n.Props[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Edge is one directed edge. Facet is the per-edge weight; zero means
// "leave as is" on add (new edges get 1).
type Edge struct {
	From  NodeID
	Label Label
	To    NodeID
	Facet int
}

// Neighbor is an edge endpoint with the edge's facet.
type Neighbor struct {
	ID    NodeID
	Facet int
}

var (
	// ErrNotFound is returned when a lookup or node read finds nothing.
	ErrNotFound = errors.New("graphstore: not found")
	// ErrKeyExists is returned when CreateNode collides with the unique index.
	ErrKeyExists = errors.New("graphstore: unique key already exists")
	// ErrReadOnly is returned when a read-only transaction is asked to write.
	ErrReadOnly = errors.New("graphstore: read-only transaction")
	// ErrTxnDone is returned when a finished transaction is used again.
	ErrTxnDone = errors.New("graphstore: transaction already finished")
	// ErrConflict is returned when a commit loses a race with a concurrent
	// transaction. The whole transaction may be retried.
	ErrConflict = errors.New("graphstore: transaction conflict")
)

// Store opens transactions. Implementations are safe for concurrent use.
type Store interface {
	NewTxn(ctx context.Context, readOnly bool) (Txn, error)
	Close(ctx context.Context) error
}

// Txn is a single short-lived transaction. It is not safe for concurrent use.
// Discard after Commit is a no-op, so callers always defer Discard.
type Txn interface {
	// Lookup resolves a unique business key through the exact-match index.
	Lookup(ctx context.Context, kind Kind, key string) (NodeID, error)
	// CreateNode creates a node guarded by the unique index on key.
	CreateNode(ctx context.Context, kind Kind, key string, props Props) (NodeID, error)
	// Nodes hydrates the given ids, skipping ids that do not exist.
	Nodes(ctx context.Context, ids ...NodeID) ([]Node, error)
	SetProps(ctx context.Context, id NodeID, props Props) error
	// DeleteNode removes the node, its attributes and every incident edge
	// in both directions.
	DeleteNode(ctx context.Context, id NodeID) error
	// Scan lists every node of a kind.
	Scan(ctx context.Context, kind Kind) ([]NodeID, error)

	AddEdges(ctx context.Context, edges ...Edge) error
	RemoveEdges(ctx context.Context, edges ...Edge) error
	// Out lists targets of id's outgoing label edges.
	Out(ctx context.Context, id NodeID, label Label) ([]Neighbor, error)
	// In lists sources of label edges pointing at id.
	In(ctx context.Context, id NodeID, label Label) ([]Neighbor, error)
	// Facet returns the edge weight and whether the edge exists.
	Facet(ctx context.Context, e Edge) (int, bool, error)
	// Counts returns the out-degree of label for each id.
	Counts(ctx context.Context, label Label, ids ...NodeID) (map[NodeID]int, error)

	Commit(ctx context.Context) error
	Discard(ctx context.Context) error
}

// IDs strips facets from neighbors.
func IDs(ns []Neighbor) []NodeID {
	out := make([]NodeID, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

// Set builds a membership set from neighbors.
func Set(ns []Neighbor) map[NodeID]struct{} {
	out := make(map[NodeID]struct{}, len(ns))
	for _, n := range ns {
		out[n.ID] = struct{}{}
	}
	return out
}
