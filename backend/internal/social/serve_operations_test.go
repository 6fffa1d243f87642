package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "socialgraph/backend/pkg/errors"
)

func TestServePosts_RecordsViews(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) { o.ServedViewWorkers = 2 })
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")
	mustPost(t, e, "alice", "p1", "go")
	mustPost(t, e, "alice", "p2", "go")
	mustPost(t, e, "alice", "p3", "go")

	posts, err := e.GetTopPosts(ctx, "bob", Page{Size: 5})
	require.NoError(t, err)
	require.Len(t, posts, 3)

	// an unknown post is logged and skipped
	served := append(posts, Post{PostID: "gone"})
	assert.NotPanics(t, func() { e.ServePosts(ctx, "bob", served) })

	history, err := e.GetHistoryPosts(ctx, "bob", Page{Size: 5})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, postIDs(history))

	// served posts drop out of the viewer's trending feed
	posts, err = e.GetTopPosts(ctx, "bob", Page{Size: 5})
	require.NoError(t, err)
	assert.Empty(t, posts)

	// anonymous serving writes nothing
	e.ServePosts(ctx, "", []Post{{PostID: "p1"}})
	post, err := e.GetPost(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, post.Counts.Views)
}

func TestOpenPost(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")
	mustPost(t, e, "alice", "p1", "go")
	require.NoError(t, e.LikePost(ctx, "bob", "p1", true))

	post, err := e.OpenPost(ctx, "bob", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, post.Counts.Clicks)
	assert.Equal(t, 1, post.Counts.Views)
	assert.True(t, post.Liked)

	post, err = e.OpenPost(ctx, "bob", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, post.Counts.Clicks)

	require.NoError(t, e.Block(ctx, "bob", "alice", true))
	_, err = e.OpenPost(ctx, "bob", "p1")
	assertOutcome(t, apperrors.ResultForbidden, err)

	_, err = e.OpenPost(ctx, "bob", "missing")
	assertOutcome(t, apperrors.ResultNotFound, err)
}

func TestHydrateRanked(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	mustPost(t, e, "alice", "p1", "go")
	mustPost(t, e, "bob", "p2", "go")
	mustPost(t, e, "alice", "p3", "go")

	posts, err := e.HydrateRanked(ctx, "", []string{"p3", "unknown", "p2", "p1", "p3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p1"}, postIDs(posts))

	require.NoError(t, e.Block(ctx, "carol", "bob", true))
	posts, err = e.HydrateRanked(ctx, "carol", []string{"p3", "p2", "p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, postIDs(posts))

	posts, err = e.HydrateRanked(ctx, "", nil)
	require.NoError(t, err)
	assert.Empty(t, posts)
}
