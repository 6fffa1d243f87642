// Package badgerstore is an embedded graph store on BadgerDB. Every edge is
// written twice, under a forward key and a reverse-index key, so traversal
// and wildcard deletes work from either endpoint.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"socialgraph/backend/internal/graphstore"
)

const (
	prefixNode    = "n/"
	prefixIndex   = "x/"
	prefixKind    = "k/"
	prefixForward = "e/"
	prefixReverse = "r/"
	uidSequence   = "seq/uid"
)

// Options configures the store.
type Options struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	Logger   *zap.Logger
}

// Store is a graphstore.Store backed by BadgerDB.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *zap.Logger
}

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badgerstore: Dir is required for on-disk mode")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{opts.Logger.Sugar()})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(uidSequence), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open uid sequence: %w", err)
	}
	return &Store{db: db, seq: seq, logger: opts.Logger}, nil
}

// NewTxn starts a transaction.
func (s *Store) NewTxn(ctx context.Context, readOnly bool) (graphstore.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &txn{store: s, tx: s.db.NewTransaction(!readOnly), readOnly: readOnly}, nil
}

// Close releases the sequence and closes the database.
func (s *Store) Close(_ context.Context) error {
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("Failed to release uid sequence", zap.Error(err))
	}
	return s.db.Close()
}

func (s *Store) nextID() (graphstore.NodeID, error) {
	n, err := s.seq.Next()
	if err != nil {
		return "", err
	}
	return graphstore.NodeID(fmt.Sprintf("0x%x", n+1)), nil
}

type record struct {
	Kind  graphstore.Kind  `json:"kind"`
	Key   string           `json:"key"`
	Props graphstore.Props `json:"props,omitempty"`
}

func nodeKey(id graphstore.NodeID) []byte {
	return []byte(prefixNode + string(id))
}

func indexKey(kind graphstore.Kind, key string) []byte {
	return []byte(prefixIndex + string(kind) + "/" + key)
}

func kindKey(kind graphstore.Kind, id graphstore.NodeID) []byte {
	return []byte(prefixKind + string(kind) + "/" + string(id))
}

func forwardKey(from graphstore.NodeID, label graphstore.Label, to graphstore.NodeID) []byte {
	return []byte(prefixForward + string(from) + "/" + string(label) + "/" + string(to))
}

func reverseKey(to graphstore.NodeID, label graphstore.Label, from graphstore.NodeID) []byte {
	return []byte(prefixReverse + string(to) + "/" + string(label) + "/" + string(from))
}

func encodeFacet(f int) []byte {
	return []byte(strconv.Itoa(f))
}

func decodeFacet(b []byte) int {
	f, err := strconv.Atoi(string(b))
	if err != nil || f < 1 {
		return 1
	}
	return f
}

// badgerLogger routes badger's internal logging into zap, dropping info and
// debug chatter.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf("[badger] "+f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf("[badger] "+f, v...) }
func (l badgerLogger) Infof(string, ...interface{})        {}
func (l badgerLogger) Debugf(string, ...interface{})       {}

// decodeRecord parses a node record and coerces its attributes.
func decodeRecord(val []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return record{}, fmt.Errorf("corrupt node record: %w", err)
	}
	rec.Props = graphstore.Spec(rec.Kind).Normalize(rec.Props)
	return rec, nil
}
