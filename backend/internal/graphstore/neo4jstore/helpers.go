package neo4jstore

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"socialgraph/backend/internal/graphstore"
)

// ============================================================================
// Helper Functions
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

func getMapFromRecord(record *neo4j.Record, key string) graphstore.Props {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return graphstore.Props{}
	}
	if m, ok := val.(map[string]interface{}); ok {
		return graphstore.Props(m)
	}
	return graphstore.Props{}
}

// facetFromRecord reads the edge weight, defaulting to 1 for edges written
// without one.
func facetFromRecord(record *neo4j.Record) int {
	if f := getIntFromRecord(record, "facet"); f > 0 {
		return f
	}
	return 1
}

func kindOf(labels []string) (graphstore.Kind, bool) {
	for _, l := range labels {
		for _, k := range graphstore.Kinds {
			if graphstore.Kind(l) == k {
				return k, true
			}
		}
	}
	return "", false
}

// relType quotes an edge label for use as a relationship type; labels
// contain dots.
func relType(label graphstore.Label) string {
	return "`" + string(label) + "`"
}

func stringIDs(ids []graphstore.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
