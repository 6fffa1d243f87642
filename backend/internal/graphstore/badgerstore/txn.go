package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"socialgraph/backend/internal/graphstore"
)

type txn struct {
	store    *Store
	tx       *badger.Txn
	readOnly bool
	done     bool
}

func (t *txn) check(ctx context.Context, write bool) error {
	if t.done {
		return graphstore.ErrTxnDone
	}
	if write && t.readOnly {
		return graphstore.ErrReadOnly
	}
	return ctx.Err()
}

func (t *txn) Lookup(ctx context.Context, kind graphstore.Kind, key string) (graphstore.NodeID, error) {
	if err := t.check(ctx, false); err != nil {
		return "", err
	}
	item, err := t.tx.Get(indexKey(kind, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", graphstore.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return graphstore.NodeID(val), nil
}

// CreateNode reads the index key before writing it, so two transactions
// racing on the same key conflict at commit and only one survives.
func (t *txn) CreateNode(ctx context.Context, kind graphstore.Kind, key string, props graphstore.Props) (graphstore.NodeID, error) {
	if err := t.check(ctx, true); err != nil {
		return "", err
	}
	if _, err := t.Lookup(ctx, kind, key); err == nil {
		return "", graphstore.ErrKeyExists
	} else if !errors.Is(err, graphstore.ErrNotFound) {
		return "", err
	}

	id, err := t.store.nextID()
	if err != nil {
		return "", fmt.Errorf("failed to allocate uid: %w", err)
	}
	rec := record{Kind: kind, Key: key, Props: graphstore.Spec(kind).Normalize(props)}
	val, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := t.tx.Set(nodeKey(id), val); err != nil {
		return "", err
	}
	if err := t.tx.Set(indexKey(kind, key), []byte(id)); err != nil {
		return "", err
	}
	if err := t.tx.Set(kindKey(kind, id), nil); err != nil {
		return "", err
	}
	return id, nil
}

func (t *txn) load(id graphstore.NodeID) (record, error) {
	item, err := t.tx.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, graphstore.ErrNotFound
	}
	if err != nil {
		return record{}, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return record{}, err
	}
	return decodeRecord(val)
}

func (t *txn) Nodes(ctx context.Context, ids ...graphstore.NodeID) ([]graphstore.Node, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	out := make([]graphstore.Node, 0, len(ids))
	for _, id := range ids {
		rec, err := t.load(id)
		if errors.Is(err, graphstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, graphstore.Node{ID: id, Kind: rec.Kind, Key: rec.Key, Props: rec.Props})
	}
	return out, nil
}

func (t *txn) SetProps(ctx context.Context, id graphstore.NodeID, props graphstore.Props) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	rec, err := t.load(id)
	if err != nil {
		return err
	}
	if rec.Props == nil {
		rec.Props = graphstore.Props{}
	}
	for k, v := range graphstore.Spec(rec.Kind).Normalize(props) {
		rec.Props[k] = v
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.tx.Set(nodeKey(id), val)
}

func (t *txn) DeleteNode(ctx context.Context, id graphstore.NodeID) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	rec, err := t.load(id)
	if err != nil {
		return err
	}

	var doomed [][]byte
	// outgoing edges and the reverse-index entries of their targets
	for _, suffix := range t.keysWithPrefix(prefixForward + string(id) + "/") {
		label, other, ok := splitEdgeSuffix(suffix)
		if !ok {
			continue
		}
		doomed = append(doomed, forwardKey(id, label, other), reverseKey(other, label, id))
	}
	// incoming edges, including the paired inverses held by other nodes
	for _, suffix := range t.keysWithPrefix(prefixReverse + string(id) + "/") {
		label, other, ok := splitEdgeSuffix(suffix)
		if !ok {
			continue
		}
		doomed = append(doomed, reverseKey(id, label, other), forwardKey(other, label, id))
	}
	doomed = append(doomed, nodeKey(id), indexKey(rec.Kind, rec.Key), kindKey(rec.Kind, id))

	for _, k := range doomed {
		if err := t.tx.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Scan(ctx context.Context, kind graphstore.Kind) ([]graphstore.NodeID, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	suffixes := t.keysWithPrefix(prefixKind + string(kind) + "/")
	out := make([]graphstore.NodeID, len(suffixes))
	for i, s := range suffixes {
		out[i] = graphstore.NodeID(s)
	}
	return out, nil
}

func (t *txn) AddEdges(ctx context.Context, edges ...graphstore.Edge) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	for _, e := range edges {
		for _, id := range []graphstore.NodeID{e.From, e.To} {
			if _, err := t.tx.Get(nodeKey(id)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("edge %s endpoint %s: %w", e.Label, id, graphstore.ErrNotFound)
				}
				return err
			}
		}
		facet := e.Facet
		if facet < 1 {
			current, exists, err := t.facet(e)
			if err != nil {
				return err
			}
			facet = 1
			if exists {
				facet = current
			}
		}
		val := encodeFacet(facet)
		if err := t.tx.Set(forwardKey(e.From, e.Label, e.To), val); err != nil {
			return err
		}
		if err := t.tx.Set(reverseKey(e.To, e.Label, e.From), val); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) RemoveEdges(ctx context.Context, edges ...graphstore.Edge) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	for _, e := range edges {
		if err := t.tx.Delete(forwardKey(e.From, e.Label, e.To)); err != nil {
			return err
		}
		if err := t.tx.Delete(reverseKey(e.To, e.Label, e.From)); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Out(ctx context.Context, id graphstore.NodeID, label graphstore.Label) ([]graphstore.Neighbor, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	return t.neighbors(prefixForward + string(id) + "/" + string(label) + "/")
}

func (t *txn) In(ctx context.Context, id graphstore.NodeID, label graphstore.Label) ([]graphstore.Neighbor, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	return t.neighbors(prefixReverse + string(id) + "/" + string(label) + "/")
}

func (t *txn) Facet(ctx context.Context, e graphstore.Edge) (int, bool, error) {
	if err := t.check(ctx, false); err != nil {
		return 0, false, err
	}
	return t.facet(e)
}

func (t *txn) facet(e graphstore.Edge) (int, bool, error) {
	item, err := t.tx.Get(forwardKey(e.From, e.Label, e.To))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}
	return decodeFacet(val), true, nil
}

func (t *txn) Counts(ctx context.Context, label graphstore.Label, ids ...graphstore.NodeID) (map[graphstore.NodeID]int, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	out := make(map[graphstore.NodeID]int, len(ids))
	for _, id := range ids {
		prefix := []byte(prefixForward + string(id) + "/" + string(label) + "/")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := t.tx.NewIterator(opts)
		n := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		it.Close()
		out[id] = n
	}
	return out, nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.check(ctx, false); err != nil {
		return err
	}
	t.done = true
	if t.readOnly {
		t.tx.Discard()
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("%w: %v", graphstore.ErrConflict, err)
		}
		return err
	}
	return nil
}

func (t *txn) Discard(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.tx.Discard()
	return nil
}

// keysWithPrefix returns the key suffixes after prefix.
func (t *txn) keysWithPrefix(prefix string) []string {
	p := []byte(prefix)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = p
	it := t.tx.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		out = append(out, strings.TrimPrefix(string(it.Item().Key()), prefix))
	}
	return out
}

func (t *txn) neighbors(prefix string) ([]graphstore.Neighbor, error) {
	p := []byte(prefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = p
	it := t.tx.NewIterator(opts)
	defer it.Close()

	var out []graphstore.Neighbor
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, graphstore.Neighbor{
			ID:    graphstore.NodeID(strings.TrimPrefix(string(item.Key()), prefix)),
			Facet: decodeFacet(val),
		})
	}
	return out, nil
}

// splitEdgeSuffix splits "<label>/<id>" as found after an endpoint prefix.
func splitEdgeSuffix(suffix string) (graphstore.Label, graphstore.NodeID, bool) {
	i := strings.LastIndex(suffix, "/")
	if i <= 0 || i == len(suffix)-1 {
		return "", "", false
	}
	return graphstore.Label(suffix[:i]), graphstore.NodeID(suffix[i+1:]), true
}
