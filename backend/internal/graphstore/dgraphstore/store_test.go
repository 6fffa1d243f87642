package dgraphstore

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/backend/internal/graphstore"
	"socialgraph/backend/internal/graphstore/storetest"
)

func TestSchema(t *testing.T) {
	schema := Schema()

	assert.Contains(t, schema, "Profile.username: string @index(exact) @upsert .")
	assert.Contains(t, schema, "Hashtag.hashtag: string @index(exact) @upsert .")
	assert.Contains(t, schema, "Post.timestamp: int @index(int) .")
	assert.Contains(t, schema, "Profile.isVerified: bool .")
	assert.Contains(t, schema, "Profile.following: [uid] @reverse @count .")
	assert.Contains(t, schema, "Comment.likes: [uid] @reverse @count .")
	assert.Contains(t, schema, "type Hashtag {")

	for _, label := range graphstore.Labels {
		assert.Equal(t, 1, strings.Count(schema, string(label)+": [uid]"), label)
	}
}

func TestTypeFields_OwnOutgoingEdgesOnly(t *testing.T) {
	fields := typeFields(graphstore.KindComment)
	assert.Contains(t, fields, "Comment.commentId")
	assert.Contains(t, fields, "Comment.username")
	assert.NotContains(t, fields, "Profile.comments")
}

func TestValidUID(t *testing.T) {
	assert.True(t, validUID("0x1f"))
	assert.False(t, validUID("0x"))
	assert.False(t, validUID("31"))
	assert.False(t, validUID("0x1) { uid }"))
	assert.Equal(t, "0x1, 0x2", uidList([]graphstore.NodeID{"0x1", "bogus", "0x2"}))
}

func TestNeighborsOf(t *testing.T) {
	row := map[string]any{
		"Profile.clickedOn": []any{
			map[string]any{"uid": "0x2", "Profile.clickedOn|weight": float64(4)},
			map[string]any{"uid": "0x3"},
		},
	}
	ns := neighborsOf(row, "Profile.clickedOn", "Profile.clickedOn|weight")
	require.Len(t, ns, 2)
	assert.Equal(t, graphstore.Neighbor{ID: "0x2", Facet: 4}, ns[0])
	assert.Equal(t, graphstore.Neighbor{ID: "0x3", Facet: 1}, ns[1])
}

// TestConformance requires a running Dgraph alpha at DGRAPH_ADDR. It drops
// all data before each subtest.
func TestConformance(t *testing.T) {
	addr := os.Getenv("DGRAPH_ADDR")
	if testing.Short() || addr == "" {
		t.Skip("Skipping integration test")
	}
	storetest.Run(t, func(t *testing.T) graphstore.Store {
		ctx := context.Background()
		s, err := Open(ctx, addr, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close(ctx) })
		require.NoError(t, s.DropAll(ctx))
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
