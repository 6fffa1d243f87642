package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

func TestFollow_PairedSymmetry(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")

	require.NoError(t, e.Follow(ctx, "alice", "bob", true))

	following, err := e.GetFollowing(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, usernames(following))
	followers, err := e.GetFollowers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, usernames(followers))

	bob, err := e.GetProfile(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, bob.Followers)
	assert.True(t, bob.IsFollowing)

	// following twice is a no-op
	require.NoError(t, e.Follow(ctx, "alice", "bob", true))
	bob, err = e.GetProfile(ctx, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, 1, bob.Followers)

	require.NoError(t, e.Follow(ctx, "alice", "bob", false))
	following, err = e.GetFollowing(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, following)
	followers, err = e.GetFollowers(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, followers)

	// removing again is a no-op
	assert.NoError(t, e.Follow(ctx, "alice", "bob", false))
}

func TestFollow_UnknownTargetWritesNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice")

	assertOutcome(t, apperrors.ResultNotFound, e.Follow(ctx, "alice", "ghost", true))
	assertOutcome(t, apperrors.ResultNotFound, e.Follow(ctx, "ghost", "alice", true))

	alice, err := e.GetProfile(ctx, "alice", "")
	require.NoError(t, err)
	assert.Zero(t, alice.Following)
	assert.Zero(t, alice.Followers)
}

func TestFollow_Rejections(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")

	assertOutcome(t, apperrors.ResultInvalid, e.Follow(ctx, "alice", "alice", true))

	require.NoError(t, e.Block(ctx, "bob", "alice", true))
	assertOutcome(t, apperrors.ResultForbidden, e.Follow(ctx, "alice", "bob", true))

	// the blocker can still follow
	assert.NoError(t, e.Follow(ctx, "bob", "alice", true))
}

func TestLikePost(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")
	mustPost(t, e, "alice", "p1", "go")

	require.NoError(t, e.LikePost(ctx, "bob", "p1", true))
	require.NoError(t, e.LikePost(ctx, "bob", "p1", true))

	post, err := e.GetPost(ctx, "p1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, post.Counts.Likes)
	assert.True(t, post.Liked)

	liked, err := e.DidLikePost(ctx, "bob", "p1")
	require.NoError(t, err)
	assert.True(t, liked)

	readTxn(t, store, func(ctx context.Context, tx graphstore.Txn) {
		p, err := tx.Lookup(ctx, graphstore.KindPost, "p1")
		require.NoError(t, err)
		likers, err := tx.Out(ctx, p, graphstore.PostLikes)
		require.NoError(t, err)
		assert.Len(t, likers, post.Counts.Likes)
	})

	require.NoError(t, e.LikePost(ctx, "bob", "p1", false))
	post, err = e.GetPost(ctx, "p1", "bob")
	require.NoError(t, err)
	assert.Zero(t, post.Counts.Likes)
	assert.False(t, post.Liked)

	assertOutcome(t, apperrors.ResultNotFound, e.LikePost(ctx, "bob", "missing", true))
}

func TestRecordView_DistinctViewers(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	mustPost(t, e, "alice", "p1", "go")

	for i := 0; i < 3; i++ {
		require.NoError(t, e.RecordView(ctx, "bob", "p1"))
	}
	post, err := e.GetPost(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, post.Counts.Views)

	require.NoError(t, e.RecordView(ctx, "carol", "p1"))
	post, err = e.GetPost(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, post.Counts.Views)
}

func TestRecordClick_ReinforcesFacet(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")
	mustPost(t, e, "alice", "p1", "go")

	for i := 0; i < 3; i++ {
		require.NoError(t, e.RecordClick(ctx, "bob", "p1"))
	}

	post, err := e.GetPost(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, post.Counts.Clicks)

	readTxn(t, store, func(ctx context.Context, tx graphstore.Txn) {
		bob, err := tx.Lookup(ctx, graphstore.KindProfile, "bob")
		require.NoError(t, err)
		p1, err := tx.Lookup(ctx, graphstore.KindPost, "p1")
		require.NoError(t, err)

		facet, ok, err := tx.Facet(ctx, graphstore.Edge{From: bob, Label: graphstore.ProfileClickedOn, To: p1})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, facet)

		facet, ok, err = tx.Facet(ctx, graphstore.Edge{From: p1, Label: graphstore.PostClickedOn, To: bob})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, facet)
	})
}

func TestLikeComment_SharedReverseEdge(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")
	mustPost(t, e, "alice", "p1", "go")
	commentID, err := e.CreateComment(ctx, "alice", "p1", "first")
	require.NoError(t, err)

	require.NoError(t, e.LikeComment(ctx, "bob", commentID, true))
	require.NoError(t, e.SetLikedComment(ctx, "bob", commentID, true))

	comment, err := e.GetComment(ctx, commentID)
	require.NoError(t, err)
	assert.Equal(t, 1, comment.Likes)

	// the likedComments edge still holds the reverse side
	require.NoError(t, e.LikeComment(ctx, "bob", commentID, false))
	comment, err = e.GetComment(ctx, commentID)
	require.NoError(t, err)
	assert.Equal(t, 1, comment.Likes)

	require.NoError(t, e.SetLikedComment(ctx, "bob", commentID, false))
	comment, err = e.GetComment(ctx, commentID)
	require.NoError(t, err)
	assert.Zero(t, comment.Likes)
}

func TestPinHashtag(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice")

	assertOutcome(t, apperrors.ResultInvalid, e.PinHashtag(ctx, "alice", "#!!", true))
	assertOutcome(t, apperrors.ResultNotFound, e.PinHashtag(ctx, "alice", "rust", false))

	require.NoError(t, e.PinHashtag(ctx, "alice", "#Rust", true))
	require.NoError(t, e.PinHashtag(ctx, "alice", "go", true))

	pinned, err := e.GetPinnedHashtags(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pinned, 2)
	assert.Equal(t, "go", pinned[0].Hashtag)
	assert.Equal(t, "rust", pinned[1].Hashtag)
	assert.Equal(t, 1, pinned[1].PinnedBy)

	require.NoError(t, e.PinHashtag(ctx, "alice", "rust", false))
	pinned, err = e.GetPinnedHashtags(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, "go", pinned[0].Hashtag)

	// the hashtag outlives its last pin
	top, err := e.GetMostPinnedHashtags(ctx, Page{Size: 10})
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")

	assertOutcome(t, apperrors.ResultInvalid, e.Block(ctx, "alice", "alice", true))

	require.NoError(t, e.Block(ctx, "alice", "bob", true))
	blocked, err := e.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, blocked)

	// one-directional
	blocked, err = e.IsBlocked(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, blocked)

	list, err := e.GetBlockedUsers(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, usernames(list))

	require.NoError(t, e.Block(ctx, "alice", "bob", false))
	blocked, err = e.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, blocked)
}
