package dgraphstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/dgo/v240"
	"github.com/dgraph-io/dgo/v240/protos/api"
	json "github.com/goccy/go-json"

	"socialgraph/backend/internal/graphstore"
)

// ============================================================================
// Query templates
// ============================================================================

const (
	lookupTemplate = `query lookup($key: string) {
  q(func: eq(%s, $key)) @filter(type(%s)) { uid }
}`
	existsTemplate = `{
  q(func: uid(%s)) @filter(has(dgraph.type)) { uid }
}`
	nodesTemplate = `{
  q(func: uid(%s)) @filter(has(dgraph.type)) { uid dgraph.type %s }
}`
	incomingTemplate = `{
  q(func: uid(%s)) @filter(has(dgraph.type)) { uid dgraph.type %s }
}`
	scanTemplate = `{
  q(func: type(%s)) { uid }
}`
	outTemplate = `{
  q(func: uid(%s)) { %s @facets(weight) { uid } }
}`
	reverseTemplate = `{
  q(func: uid(%s)) { ~%s { uid } }
}`
	facetTemplate = `{
  q(func: uid(%s)) { uid %s @facets(weight) @filter(uid(%s)) { uid } }
}`
	countTemplate = `{
  q(func: uid(%s)) { uid c: count(%s) }
}`
)

type uidRows struct {
	Q []struct {
		UID string `json:"uid"`
	} `json:"q"`
}

type countRows struct {
	Q []struct {
		UID string `json:"uid"`
		C   int    `json:"c"`
	} `json:"q"`
}

type mapRows struct {
	Q []map[string]any `json:"q"`
}

// ============================================================================
// Transaction
// ============================================================================

type txn struct {
	tx       *dgo.Txn
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

func (t *txn) query(ctx context.Context, q string, vars map[string]string, out any) error {
	resp, err := t.tx.QueryWithVars(ctx, q, vars)
	if err != nil {
		return mapErr(err)
	}
	if err := json.Unmarshal(resp.Json, out); err != nil {
		return fmt.Errorf("failed to decode dgraph response: %w", err)
	}
	return nil
}

func (t *txn) mutate(ctx context.Context, mu *api.Mutation) (*api.Response, error) {
	resp, err := t.tx.Mutate(ctx, mu)
	if err != nil {
		return nil, mapErr(err)
	}
	return resp, nil
}

func mapErr(err error) error {
	if errors.Is(err, dgo.ErrAborted) {
		return fmt.Errorf("%w: %v", graphstore.ErrConflict, err)
	}
	return err
}

func (t *txn) Lookup(ctx context.Context, kind graphstore.Kind, key string) (graphstore.NodeID, error) {
	if err := t.check(ctx, false); err != nil {
		return "", err
	}
	spec := graphstore.Spec(kind)
	q := fmt.Sprintf(lookupTemplate, graphstore.Predicate(kind, spec.Key), kind)
	var rows uidRows
	if err := t.query(ctx, q, map[string]string{"$key": key}, &rows); err != nil {
		return "", err
	}
	if len(rows.Q) == 0 {
		return "", graphstore.ErrNotFound
	}
	return graphstore.NodeID(rows.Q[0].UID), nil
}

// CreateNode reads the @upsert index before writing, so Dgraph aborts one of
// two transactions creating the same key.
func (t *txn) CreateNode(ctx context.Context, kind graphstore.Kind, key string, props graphstore.Props) (graphstore.NodeID, error) {
	if err := t.check(ctx, true); err != nil {
		return "", err
	}
	if _, err := t.Lookup(ctx, kind, key); err == nil {
		return "", graphstore.ErrKeyExists
	} else if !errors.Is(err, graphstore.ErrNotFound) {
		return "", err
	}

	spec := graphstore.Spec(kind)
	doc := map[string]any{
		"uid":         "_:n",
		"dgraph.type": string(kind),
	}
	doc[graphstore.Predicate(kind, spec.Key)] = key
	for name, v := range spec.Normalize(props) {
		if name == spec.Key {
			continue
		}
		doc[graphstore.Predicate(kind, name)] = v
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	resp, err := t.mutate(ctx, &api.Mutation{SetJson: body})
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", kind, err)
	}
	uid, ok := resp.Uids["n"]
	if !ok {
		return "", fmt.Errorf("dgraph returned no uid for new %s", kind)
	}
	return graphstore.NodeID(uid), nil
}

func (t *txn) Nodes(ctx context.Context, ids ...graphstore.NodeID) ([]graphstore.Node, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	list := uidList(ids)
	if list == "" {
		return []graphstore.Node{}, nil
	}
	var rows mapRows
	q := fmt.Sprintf(nodesTemplate, list, strings.Join(scalarFields(), " "))
	if err := t.query(ctx, q, nil, &rows); err != nil {
		return nil, err
	}

	byID := make(map[graphstore.NodeID]graphstore.Node, len(rows.Q))
	for _, row := range rows.Q {
		if n, ok := decodeNode(row); ok {
			byID[n.ID] = n
		}
	}
	// dgraph answers in uid order; callers expect request order
	out := make([]graphstore.Node, 0, len(byID))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func decodeNode(row map[string]any) (graphstore.Node, bool) {
	uid, _ := row["uid"].(string)
	types, _ := row["dgraph.type"].([]any)
	if uid == "" || len(types) == 0 {
		return graphstore.Node{}, false
	}
	name, _ := types[0].(string)
	kind := graphstore.Kind(name)
	spec := graphstore.Spec(kind)

	key, _ := row[graphstore.Predicate(kind, spec.Key)].(string)
	props := graphstore.Props{}
	for _, p := range spec.Props {
		if v, ok := row[graphstore.Predicate(kind, p.Name)]; ok {
			props[p.Name] = v
		}
	}
	return graphstore.Node{ID: graphstore.NodeID(uid), Kind: kind, Key: key, Props: spec.Normalize(props)}, true
}

func (t *txn) SetProps(ctx context.Context, id graphstore.NodeID, props graphstore.Props) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	nodes, err := t.Nodes(ctx, id)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return graphstore.ErrNotFound
	}
	kind := nodes[0].Kind
	spec := graphstore.Spec(kind)
	doc := map[string]any{"uid": string(id)}
	for name, v := range spec.Normalize(props) {
		if name == spec.Key {
			continue
		}
		doc[graphstore.Predicate(kind, name)] = v
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = t.mutate(ctx, &api.Mutation{SetJson: body})
	return err
}

// DeleteNode drops the node's own predicates with a wildcard and removes
// every edge pointing at it, found through the reverse indexes.
func (t *txn) DeleteNode(ctx context.Context, id graphstore.NodeID) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	if !validUID(id) {
		return graphstore.ErrNotFound
	}
	reverse := make([]string, len(graphstore.Labels))
	for i, label := range graphstore.Labels {
		reverse[i] = "~" + string(label) + " { uid }"
	}
	var rows mapRows
	if err := t.query(ctx, fmt.Sprintf(incomingTemplate, id, strings.Join(reverse, " ")), nil, &rows); err != nil {
		return err
	}
	if len(rows.Q) == 0 {
		return graphstore.ErrNotFound
	}

	var del strings.Builder
	fmt.Fprintf(&del, "<%s> * * .\n<%s> <dgraph.type> * .\n", id, id)
	for _, label := range graphstore.Labels {
		for _, src := range neighborsOf(rows.Q[0], "~"+string(label), "") {
			fmt.Fprintf(&del, "<%s> <%s> <%s> .\n", src.ID, label, id)
		}
	}
	_, err := t.mutate(ctx, &api.Mutation{DelNquads: []byte(del.String())})
	return err
}

func (t *txn) Scan(ctx context.Context, kind graphstore.Kind) ([]graphstore.NodeID, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	var rows uidRows
	if err := t.query(ctx, fmt.Sprintf(scanTemplate, kind), nil, &rows); err != nil {
		return nil, err
	}
	out := make([]graphstore.NodeID, len(rows.Q))
	for i, r := range rows.Q {
		out[i] = graphstore.NodeID(r.UID)
	}
	return out, nil
}

func (t *txn) AddEdges(ctx context.Context, edges ...graphstore.Edge) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	if err := t.requireNodes(ctx, edges); err != nil {
		return err
	}

	var set strings.Builder
	for _, e := range edges {
		facet := e.Facet
		if facet < 1 {
			current, exists, err := t.facet(ctx, e)
			if err != nil {
				return err
			}
			facet = 1
			if exists {
				facet = current
			}
		}
		fmt.Fprintf(&set, "<%s> <%s> <%s> (weight=%d) .\n", e.From, e.Label, e.To, facet)
	}
	_, err := t.mutate(ctx, &api.Mutation{SetNquads: []byte(set.String())})
	return err
}

// requireNodes fails with ErrNotFound unless every endpoint exists. Dgraph
// would otherwise accept an edge to a bare uid.
func (t *txn) requireNodes(ctx context.Context, edges []graphstore.Edge) error {
	want := make(map[graphstore.NodeID]struct{})
	var ids []graphstore.NodeID
	for _, e := range edges {
		for _, id := range []graphstore.NodeID{e.From, e.To} {
			if !validUID(id) {
				return fmt.Errorf("edge %s endpoint %s: %w", e.Label, id, graphstore.ErrNotFound)
			}
			if _, ok := want[id]; !ok {
				want[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	var rows uidRows
	if err := t.query(ctx, fmt.Sprintf(existsTemplate, uidList(ids)), nil, &rows); err != nil {
		return err
	}
	found := make(map[graphstore.NodeID]struct{}, len(rows.Q))
	for _, r := range rows.Q {
		found[graphstore.NodeID(r.UID)] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("edge endpoint %s: %w", id, graphstore.ErrNotFound)
		}
	}
	return nil
}

func (t *txn) RemoveEdges(ctx context.Context, edges ...graphstore.Edge) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	var del strings.Builder
	for _, e := range edges {
		if !validUID(e.From) || !validUID(e.To) {
			continue
		}
		fmt.Fprintf(&del, "<%s> <%s> <%s> .\n", e.From, e.Label, e.To)
	}
	if del.Len() == 0 {
		return nil
	}
	_, err := t.mutate(ctx, &api.Mutation{DelNquads: []byte(del.String())})
	return err
}

func (t *txn) Out(ctx context.Context, id graphstore.NodeID, label graphstore.Label) ([]graphstore.Neighbor, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	if !validUID(id) {
		return nil, nil
	}
	var rows mapRows
	if err := t.query(ctx, fmt.Sprintf(outTemplate, id, label), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows.Q) == 0 {
		return nil, nil
	}
	return neighborsOf(rows.Q[0], string(label), string(label)+"|weight"), nil
}

// In walks the reverse index, then reads the weights from the forward edges
// since facets live on the forward posting.
func (t *txn) In(ctx context.Context, id graphstore.NodeID, label graphstore.Label) ([]graphstore.Neighbor, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	if !validUID(id) {
		return nil, nil
	}
	var rows mapRows
	if err := t.query(ctx, fmt.Sprintf(reverseTemplate, id, label), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows.Q) == 0 {
		return nil, nil
	}
	sources := neighborsOf(rows.Q[0], "~"+string(label), "")
	if len(sources) == 0 {
		return nil, nil
	}

	var facets mapRows
	q := fmt.Sprintf(facetTemplate, uidList(graphstore.IDs(sources)), label, id)
	if err := t.query(ctx, q, nil, &facets); err != nil {
		return nil, err
	}
	weights := make(map[graphstore.NodeID]int, len(facets.Q))
	for _, row := range facets.Q {
		uid, _ := row["uid"].(string)
		for _, n := range neighborsOf(row, string(label), string(label)+"|weight") {
			weights[graphstore.NodeID(uid)] = n.Facet
		}
	}
	for i := range sources {
		if w, ok := weights[sources[i].ID]; ok {
			sources[i].Facet = w
		}
	}
	return sources, nil
}

func (t *txn) Facet(ctx context.Context, e graphstore.Edge) (int, bool, error) {
	if err := t.check(ctx, false); err != nil {
		return 0, false, err
	}
	return t.facet(ctx, e)
}

func (t *txn) facet(ctx context.Context, e graphstore.Edge) (int, bool, error) {
	if !validUID(e.From) || !validUID(e.To) {
		return 0, false, nil
	}
	var rows mapRows
	if err := t.query(ctx, fmt.Sprintf(facetTemplate, e.From, e.Label, e.To), nil, &rows); err != nil {
		return 0, false, err
	}
	if len(rows.Q) == 0 {
		return 0, false, nil
	}
	ns := neighborsOf(rows.Q[0], string(e.Label), string(e.Label)+"|weight")
	if len(ns) == 0 {
		return 0, false, nil
	}
	return ns[0].Facet, true, nil
}

func (t *txn) Counts(ctx context.Context, label graphstore.Label, ids ...graphstore.NodeID) (map[graphstore.NodeID]int, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	out := make(map[graphstore.NodeID]int, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	list := uidList(ids)
	if list == "" {
		return out, nil
	}
	var rows countRows
	if err := t.query(ctx, fmt.Sprintf(countTemplate, list, label), nil, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows.Q {
		out[graphstore.NodeID(r.UID)] = r.C
	}
	return out, nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.check(ctx, false); err != nil {
		return err
	}
	t.done = true
	if t.readOnly {
		return nil
	}
	return mapErr(t.tx.Commit(ctx))
}

func (t *txn) Discard(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Discard(ctx)
}

// ============================================================================
// Helpers
// ============================================================================

// neighborsOf reads the uid list under field, taking weights from facetKey
// when set.
func neighborsOf(row map[string]any, field, facetKey string) []graphstore.Neighbor {
	list, _ := row[field].([]any)
	out := make([]graphstore.Neighbor, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uid, _ := m["uid"].(string)
		if uid == "" {
			continue
		}
		n := graphstore.Neighbor{ID: graphstore.NodeID(uid), Facet: 1}
		if facetKey != "" {
			if w, ok := m[facetKey].(float64); ok && w >= 1 {
				n.Facet = int(w)
			}
		}
		out = append(out, n)
	}
	return out
}

func validUID(id graphstore.NodeID) bool {
	s := string(id)
	if !strings.HasPrefix(s, "0x") || len(s) < 3 {
		return false
	}
	_, err := strconv.ParseUint(s[2:], 16, 64)
	return err == nil
}

// uidList renders the valid ids for a uid() function; invalid ids are
// dropped since they cannot name a node.
func uidList(ids []graphstore.NodeID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUID(id) {
			parts = append(parts, string(id))
		}
	}
	return strings.Join(parts, ", ")
}
