// Package storetest is a conformance suite every graphstore backend runs.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/backend/internal/graphstore"
)

// Opener returns an empty store. It is called once per subtest.
type Opener func(t *testing.T) graphstore.Store

// Run executes the suite.
func Run(t *testing.T, open Opener) {
	t.Run("LookupAndCreate", func(t *testing.T) { testLookupAndCreate(t, open(t)) })
	t.Run("PairedEdges", func(t *testing.T) { testPairedEdges(t, open(t)) })
	t.Run("FacetReinforce", func(t *testing.T) { testFacetReinforce(t, open(t)) })
	t.Run("DeleteNode", func(t *testing.T) { testDeleteNode(t, open(t)) })
	t.Run("ScanAndProps", func(t *testing.T) { testScanAndProps(t, open(t)) })
}

func update(t *testing.T, s graphstore.Store, fn func(ctx context.Context, tx graphstore.Txn)) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.NewTxn(ctx, false)
	require.NoError(t, err)
	defer tx.Discard(ctx)
	fn(ctx, tx)
	require.NoError(t, tx.Commit(ctx))
}

func view(t *testing.T, s graphstore.Store, fn func(ctx context.Context, tx graphstore.Txn)) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.NewTxn(ctx, true)
	require.NoError(t, err)
	defer tx.Discard(ctx)
	fn(ctx, tx)
}

func create(t *testing.T, ctx context.Context, tx graphstore.Txn, kind graphstore.Kind, key string, props graphstore.Props) graphstore.NodeID {
	t.Helper()
	id, err := tx.CreateNode(ctx, kind, key, props)
	require.NoError(t, err)
	return id
}

func testLookupAndCreate(t *testing.T, s graphstore.Store) {
	var alice graphstore.NodeID
	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		alice = create(t, ctx, tx, graphstore.KindProfile, "alice", graphstore.Props{graphstore.PropRealName: "Alice"})
	})

	view(t, s, func(ctx context.Context, tx graphstore.Txn) {
		id, err := tx.Lookup(ctx, graphstore.KindProfile, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice, id)

		_, err = tx.Lookup(ctx, graphstore.KindProfile, "nobody")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)

		nodes, err := tx.Nodes(ctx, alice)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, graphstore.KindProfile, nodes[0].Kind)
		assert.Equal(t, "alice", nodes[0].Key)
		assert.Equal(t, "Alice", nodes[0].String(graphstore.PropRealName))
	})

	ctx := context.Background()
	tx, err := s.NewTxn(ctx, false)
	require.NoError(t, err)
	defer tx.Discard(ctx)
	_, err = tx.CreateNode(ctx, graphstore.KindProfile, "alice", nil)
	assert.ErrorIs(t, err, graphstore.ErrKeyExists)
}

func testPairedEdges(t *testing.T, s graphstore.Store) {
	var alice, bob, post graphstore.NodeID
	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		alice = create(t, ctx, tx, graphstore.KindProfile, "alice", nil)
		bob = create(t, ctx, tx, graphstore.KindProfile, "bob", nil)
		post = create(t, ctx, tx, graphstore.KindPost, "p1", graphstore.Props{graphstore.PropTimestamp: int64(1)})
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairFollow.Edges(alice, bob, 0)...))
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairLikePost.Edges(alice, post, 0)...))
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairLikePost.Edges(bob, post, 0)...))
	})

	view(t, s, func(ctx context.Context, tx graphstore.Txn) {
		following, err := tx.Out(ctx, alice, graphstore.ProfileFollowing)
		require.NoError(t, err)
		assert.Equal(t, []graphstore.NodeID{bob}, graphstore.IDs(following))

		followers, err := tx.Out(ctx, bob, graphstore.ProfileFollowers)
		require.NoError(t, err)
		assert.Equal(t, []graphstore.NodeID{alice}, graphstore.IDs(followers))

		likers, err := tx.In(ctx, post, graphstore.ProfileLikes)
		require.NoError(t, err)
		assert.ElementsMatch(t, []graphstore.NodeID{alice, bob}, graphstore.IDs(likers))

		counts, err := tx.Counts(ctx, graphstore.PostLikes, post)
		require.NoError(t, err)
		assert.Equal(t, 2, counts[post])
	})

	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		require.NoError(t, tx.RemoveEdges(ctx, graphstore.PairFollow.Edges(alice, bob, 0)...))
	})
	view(t, s, func(ctx context.Context, tx graphstore.Txn) {
		following, err := tx.Out(ctx, alice, graphstore.ProfileFollowing)
		require.NoError(t, err)
		assert.Empty(t, following)
		followers, err := tx.Out(ctx, bob, graphstore.ProfileFollowers)
		require.NoError(t, err)
		assert.Empty(t, followers)
	})
}

func testFacetReinforce(t *testing.T, s graphstore.Store) {
	var alice, post graphstore.NodeID
	click := func() graphstore.Edge {
		return graphstore.Edge{From: alice, Label: graphstore.ProfileClickedOn, To: post}
	}
	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		alice = create(t, ctx, tx, graphstore.KindProfile, "alice", nil)
		post = create(t, ctx, tx, graphstore.KindPost, "p1", nil)
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairClick.Edges(alice, post, 0)...))
	})
	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		f, ok, err := tx.Facet(ctx, click())
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairClick.Edges(alice, post, f+2)...))
	})
	view(t, s, func(ctx context.Context, tx graphstore.Txn) {
		f, ok, err := tx.Facet(ctx, click())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, f)

		out, err := tx.Out(ctx, alice, graphstore.ProfileClickedOn)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 3, out[0].Facet)

		in, err := tx.In(ctx, post, graphstore.ProfileClickedOn)
		require.NoError(t, err)
		require.Len(t, in, 1)
		assert.Equal(t, 3, in[0].Facet)

		counts, err := tx.Counts(ctx, graphstore.PostClickedOn, post)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[post], "membership stays a set")
	})
}

func testDeleteNode(t *testing.T, s graphstore.Store) {
	var alice, bob graphstore.NodeID
	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		alice = create(t, ctx, tx, graphstore.KindProfile, "alice", nil)
		bob = create(t, ctx, tx, graphstore.KindProfile, "bob", nil)
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairFollow.Edges(alice, bob, 0)...))
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairFollow.Edges(bob, alice, 0)...))
		require.NoError(t, tx.AddEdges(ctx, graphstore.PairBlock.Edges(bob, alice, 0)...))
	})
	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		require.NoError(t, tx.DeleteNode(ctx, alice))
	})
	view(t, s, func(ctx context.Context, tx graphstore.Txn) {
		_, err := tx.Lookup(ctx, graphstore.KindProfile, "alice")
		assert.ErrorIs(t, err, graphstore.ErrNotFound)

		for _, label := range []graphstore.Label{graphstore.ProfileFollowing, graphstore.ProfileFollowers, graphstore.ProfileBlockedUsers} {
			out, err := tx.Out(ctx, bob, label)
			require.NoError(t, err)
			assert.Empty(t, out, label)
		}
		nodes, err := tx.Nodes(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})
}

func testScanAndProps(t *testing.T, s graphstore.Store) {
	var tag graphstore.NodeID
	update(t, s, func(ctx context.Context, tx graphstore.Txn) {
		tag = create(t, ctx, tx, graphstore.KindHashtag, "go", nil)
		create(t, ctx, tx, graphstore.KindHashtag, "rust", nil)
		p := create(t, ctx, tx, graphstore.KindProfile, "alice", graphstore.Props{graphstore.PropIsPrivate: false})
		require.NoError(t, tx.SetProps(ctx, p, graphstore.Props{graphstore.PropIsPrivate: true}))
	})
	view(t, s, func(ctx context.Context, tx graphstore.Txn) {
		ids, err := tx.Scan(ctx, graphstore.KindHashtag)
		require.NoError(t, err)
		assert.Len(t, ids, 2)
		assert.Contains(t, ids, tag)

		id, err := tx.Lookup(ctx, graphstore.KindProfile, "alice")
		require.NoError(t, err)
		nodes, err := tx.Nodes(ctx, id)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.True(t, nodes[0].Bool(graphstore.PropIsPrivate))
	})
}
