package neo4jstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"socialgraph/backend/internal/graphstore"
)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

type txn struct {
	session  neo4j.SessionWithContext
	tx       neo4j.ExplicitTransaction
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

func (t *txn) run(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, mapErr(err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return records, nil
}

// mapErr turns unique-constraint races and transient failures into
// graphstore.ErrConflict so the caller retries the transaction.
func mapErr(err error) error {
	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) && nerr.Code == constraintViolation {
		return fmt.Errorf("%w: %v", graphstore.ErrConflict, err)
	}
	if neo4j.IsRetryable(err) {
		return fmt.Errorf("%w: %v", graphstore.ErrConflict, err)
	}
	return err
}

func (t *txn) Lookup(ctx context.Context, kind graphstore.Kind, key string) (graphstore.NodeID, error) {
	if err := t.check(ctx, false); err != nil {
		return "", err
	}
	query := fmt.Sprintf("MATCH (n:%s {%s: $key}) RETURN elementId(n) AS id LIMIT 1", kind, graphstore.Spec(kind).Key)
	records, err := t.run(ctx, query, map[string]interface{}{"key": key})
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", kind, err)
	}
	if len(records) == 0 {
		return "", graphstore.ErrNotFound
	}
	return graphstore.NodeID(getStringFromRecord(records[0], "id")), nil
}

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
	values := map[string]interface{}(spec.Normalize(props))
	values[spec.Key] = key

	query := fmt.Sprintf("CREATE (n:%s) SET n = $props RETURN elementId(n) AS id", kind)
	records, err := t.run(ctx, query, map[string]interface{}{"props": values})
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", kind, err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("neo4j returned no id for new %s", kind)
	}
	return graphstore.NodeID(getStringFromRecord(records[0], "id")), nil
}

func (t *txn) Nodes(ctx context.Context, ids ...graphstore.NodeID) ([]graphstore.Node, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []graphstore.Node{}, nil
	}
	query := `
		MATCH (n) WHERE elementId(n) IN $ids
		RETURN elementId(n) AS id, labels(n) AS labels, properties(n) AS props
	`
	records, err := t.run(ctx, query, map[string]interface{}{"ids": stringIDs(ids)})
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	byID := make(map[graphstore.NodeID]graphstore.Node, len(records))
	for _, record := range records {
		kind, ok := kindOf(getStringSliceFromRecord(record, "labels"))
		if !ok {
			continue
		}
		spec := graphstore.Spec(kind)
		props := getMapFromRecord(record, "props")
		key, _ := props[spec.Key].(string)
		delete(props, spec.Key)
		id := graphstore.NodeID(getStringFromRecord(record, "id"))
		byID[id] = graphstore.Node{ID: id, Kind: kind, Key: key, Props: spec.Normalize(props)}
	}
	out := make([]graphstore.Node, 0, len(byID))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (t *txn) SetProps(ctx context.Context, id graphstore.NodeID, props graphstore.Props) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	records, err := t.run(ctx, "MATCH (n) WHERE elementId(n) = $id RETURN labels(n) AS labels", map[string]interface{}{"id": string(id)})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return graphstore.ErrNotFound
	}
	kind, ok := kindOf(getStringSliceFromRecord(records[0], "labels"))
	if !ok {
		return graphstore.ErrNotFound
	}
	spec := graphstore.Spec(kind)
	values := spec.Normalize(props)
	delete(values, spec.Key)

	_, err = t.run(ctx, "MATCH (n) WHERE elementId(n) = $id SET n += $props", map[string]interface{}{
		"id":    string(id),
		"props": map[string]interface{}(values),
	})
	return err
}

func (t *txn) DeleteNode(ctx context.Context, id graphstore.NodeID) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	result, err := t.tx.Run(ctx, "MATCH (n) WHERE elementId(n) = $id DETACH DELETE n", map[string]interface{}{"id": string(id)})
	if err != nil {
		return mapErr(err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return mapErr(err)
	}
	if summary.Counters().NodesDeleted() == 0 {
		return graphstore.ErrNotFound
	}
	return nil
}

func (t *txn) Scan(ctx context.Context, kind graphstore.Kind) ([]graphstore.NodeID, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	records, err := t.run(ctx, fmt.Sprintf("MATCH (n:%s) RETURN elementId(n) AS id", kind), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
	}
	out := make([]graphstore.NodeID, len(records))
	for i, record := range records {
		out[i] = graphstore.NodeID(getStringFromRecord(record, "id"))
	}
	return out, nil
}

func (t *txn) AddEdges(ctx context.Context, edges ...graphstore.Edge) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	for _, e := range edges {
		query := fmt.Sprintf(`
			MATCH (a), (b) WHERE elementId(a) = $from AND elementId(b) = $to
			MERGE (a)-[r:%s]->(b)
			ON CREATE SET r.facet = 1
			SET r.facet = CASE WHEN $facet > 0 THEN $facet ELSE r.facet END
			RETURN r.facet AS facet
		`, relType(e.Label))
		records, err := t.run(ctx, query, map[string]interface{}{
			"from":  string(e.From),
			"to":    string(e.To),
			"facet": int64(e.Facet),
		})
		if err != nil {
			return fmt.Errorf("failed to add %s edge: %w", e.Label, err)
		}
		if len(records) == 0 {
			return fmt.Errorf("edge %s endpoints %s -> %s: %w", e.Label, e.From, e.To, graphstore.ErrNotFound)
		}
	}
	return nil
}

func (t *txn) RemoveEdges(ctx context.Context, edges ...graphstore.Edge) error {
	if err := t.check(ctx, true); err != nil {
		return err
	}
	for _, e := range edges {
		query := fmt.Sprintf(
			"MATCH (a)-[r:%s]->(b) WHERE elementId(a) = $from AND elementId(b) = $to DELETE r",
			relType(e.Label),
		)
		if _, err := t.run(ctx, query, map[string]interface{}{"from": string(e.From), "to": string(e.To)}); err != nil {
			return fmt.Errorf("failed to remove %s edge: %w", e.Label, err)
		}
	}
	return nil
}

func (t *txn) Out(ctx context.Context, id graphstore.NodeID, label graphstore.Label) ([]graphstore.Neighbor, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"MATCH (a)-[r:%s]->(b) WHERE elementId(a) = $id RETURN elementId(b) AS id, r.facet AS facet",
		relType(label),
	)
	return t.neighbors(ctx, query, id)
}

func (t *txn) In(ctx context.Context, id graphstore.NodeID, label graphstore.Label) ([]graphstore.Neighbor, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"MATCH (b)-[r:%s]->(a) WHERE elementId(a) = $id RETURN elementId(b) AS id, r.facet AS facet",
		relType(label),
	)
	return t.neighbors(ctx, query, id)
}

func (t *txn) neighbors(ctx context.Context, query string, id graphstore.NodeID) ([]graphstore.Neighbor, error) {
	records, err := t.run(ctx, query, map[string]interface{}{"id": string(id)})
	if err != nil {
		return nil, err
	}
	out := make([]graphstore.Neighbor, 0, len(records))
	for _, record := range records {
		out = append(out, graphstore.Neighbor{
			ID:    graphstore.NodeID(getStringFromRecord(record, "id")),
			Facet: facetFromRecord(record),
		})
	}
	return out, nil
}

func (t *txn) Facet(ctx context.Context, e graphstore.Edge) (int, bool, error) {
	if err := t.check(ctx, false); err != nil {
		return 0, false, err
	}
	query := fmt.Sprintf(
		"MATCH (a)-[r:%s]->(b) WHERE elementId(a) = $from AND elementId(b) = $to RETURN r.facet AS facet LIMIT 1",
		relType(e.Label),
	)
	records, err := t.run(ctx, query, map[string]interface{}{"from": string(e.From), "to": string(e.To)})
	if err != nil {
		return 0, false, err
	}
	if len(records) == 0 {
		return 0, false, nil
	}
	return facetFromRecord(records[0]), true, nil
}

func (t *txn) Counts(ctx context.Context, label graphstore.Label, ids ...graphstore.NodeID) (map[graphstore.NodeID]int, error) {
	if err := t.check(ctx, false); err != nil {
		return nil, err
	}
	out := make(map[graphstore.NodeID]int, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	if len(ids) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
		UNWIND $ids AS id
		MATCH (a) WHERE elementId(a) = id
		RETURN id, COUNT { (a)-[:%s]->() } AS c
	`, relType(label))
	records, err := t.run(ctx, query, map[string]interface{}{"ids": stringIDs(ids)})
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", label, err)
	}
	for _, record := range records {
		out[graphstore.NodeID(getStringFromRecord(record, "id"))] = getIntFromRecord(record, "c")
	}
	return out, nil
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.check(ctx, false); err != nil {
		return err
	}
	t.done = true
	defer t.session.Close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (t *txn) Discard(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.session.Close(ctx)
	return t.tx.Rollback(ctx)
}
