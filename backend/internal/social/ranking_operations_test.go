package social

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "socialgraph/backend/pkg/errors"
)

func TestGetHashtagPosts_RanksByScore(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "u1", "u2", "u3")
	mustPost(t, e, "alice", "P1", "x")
	mustPost(t, e, "alice", "P2", "x")
	for _, u := range []string{"u1", "u2", "u3"} {
		require.NoError(t, e.LikePost(ctx, u, "P2", true))
	}

	posts, err := e.GetHashtagPosts(ctx, "", "x", Page{Num: 0, Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P1"}, postIDs(posts))
	assert.Equal(t, 3, posts[0].Counts.Likes)
	assert.InDelta(t, 0.3, posts[0].Score, 1e-9)
}

func TestGetHashtagPosts_BackfillsWithNewest(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "carol")
	mustPost(t, e, "alice", "p1", "x")
	mustPost(t, e, "alice", "p2", "x")
	mustPost(t, e, "alice", "other", "y")
	// carol already saw p1, so only p2 is scored for her
	require.NoError(t, e.RecordView(ctx, "carol", "p1"))

	posts, err := e.GetHashtagPosts(ctx, "carol", "x", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, postIDs(posts))

	seen := map[string]bool{}
	for _, p := range posts {
		assert.False(t, seen[p.PostID], "duplicate %s", p.PostID)
		seen[p.PostID] = true
		assert.Equal(t, "x", p.Hashtag)
	}
}

func TestGetHashtagPosts_Errors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice")

	_, err := e.GetHashtagPosts(ctx, "", "missing", Page{})
	assertOutcome(t, apperrors.ResultNotFound, err)
	_, err = e.GetHashtagPosts(ctx, "", "??", Page{})
	assertOutcome(t, apperrors.ResultInvalid, err)
	mustPost(t, e, "alice", "p1", "x")
	_, err = e.GetHashtagPosts(ctx, "ghost", "x", Page{})
	assertOutcome(t, apperrors.ResultNotFound, err)
}

func TestGetNewestHashtagPosts(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")
	for i := 1; i <= 4; i++ {
		mustPost(t, e, "alice", fmt.Sprintf("p%d", i), "x")
	}
	require.NoError(t, e.LikePost(ctx, "bob", "p1", true))

	posts, err := e.GetNewestHashtagPosts(ctx, "", "x", Page{Size: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p3", "p2"}, postIDs(posts))

	posts, err = e.GetNewestHashtagPosts(ctx, "", "x", Page{Num: 1, Size: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, postIDs(posts))
}

func TestGetTopPosts_PageSizeClamp(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice")
	for i := 0; i < 60; i++ {
		mustPost(t, e, "alice", fmt.Sprintf("p%02d", i), "x")
	}

	posts, err := e.GetTopPosts(ctx, "", Page{Size: 1000})
	require.NoError(t, err)
	assert.Len(t, posts, 50)

	posts, err = e.GetHashtagPosts(ctx, "", "x", Page{Size: 1000})
	require.NoError(t, err)
	assert.Len(t, posts, 50)

	posts, err = e.GetTopPosts(ctx, "", Page{Num: 1, Size: 1000})
	require.NoError(t, err)
	assert.Len(t, posts, 10)

	posts, err = e.GetTopPosts(ctx, "", Page{})
	require.NoError(t, err)
	assert.Len(t, posts, 5)
}

func TestRankingFlows_PageSizeClamp(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	for i := 0; i < 60; i++ {
		mustProfiles(t, e, fmt.Sprintf("u%02d", i))
		mustPost(t, e, "carol", fmt.Sprintf("p%02d", i), fmt.Sprintf("t%02d", i))
		require.NoError(t, e.RecordClick(ctx, "bob", fmt.Sprintf("p%02d", i)))
		require.NoError(t, e.Follow(ctx, "bob", fmt.Sprintf("u%02d", i), true))
	}
	require.NoError(t, e.RecordClick(ctx, "alice", "p00"))
	require.NoError(t, e.Follow(ctx, "alice", "bob", true))

	posts, err := e.CollaborativeFiltering(ctx, "alice", Page{Size: 1000})
	require.NoError(t, err)
	assert.Len(t, posts, 50)

	friends, err := e.RecommendFriends(ctx, "alice", Page{Size: 1000})
	require.NoError(t, err)
	assert.Len(t, friends, 50)

	hashtags, err := e.RecommendHashtags(ctx, "alice", Page{Size: 1000})
	require.NoError(t, err)
	assert.Len(t, hashtags, 50)
}

func TestGetTopPosts_OrdersByScoreThenNewest(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	mustPost(t, e, "alice", "old", "x")
	mustPost(t, e, "alice", "mid", "y")
	mustPost(t, e, "alice", "new", "z")
	require.NoError(t, e.LikePost(ctx, "bob", "old", true))
	require.NoError(t, e.RecordClick(ctx, "bob", "old"))
	_, err := e.CreateComment(ctx, "bob", "mid", "hi")
	require.NoError(t, err)

	posts, err := e.GetTopPosts(ctx, "", Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "mid", "new"}, postIDs(posts))
	assert.InDelta(t, 0.2, posts[0].Score, 1e-9)
	assert.InDelta(t, 0.1, posts[1].Score, 1e-9)
	assert.Zero(t, posts[2].Score)
}

func TestGetTopPosts_ViewerFilters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	mustPost(t, e, "bob", "P3", "x")
	mustPost(t, e, "carol", "P4", "x")
	mustPost(t, e, "carol", "P5", "x")
	require.NoError(t, e.Block(ctx, "alice", "bob", true))
	require.NoError(t, e.RecordView(ctx, "alice", "P5"))
	require.NoError(t, e.LikePost(ctx, "alice", "P4", true))

	posts, err := e.GetTopPosts(ctx, "alice", Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"P4"}, postIDs(posts))
	assert.True(t, posts[0].Liked)

	posts, err = e.GetTopPosts(ctx, "", Page{Size: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"P3", "P4", "P5"}, postIDs(posts))
	for _, p := range posts {
		assert.False(t, p.Liked)
	}
}

// collabFixture: erin authors p1, p2, p4, p5 and frank authors p3, all in
// hashtag x, created in that order. alice clicked p1; bob clicked p1 and
// p2 twice; carol clicked p1 and p3; dave clicked p4 only.
func collabFixture(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol", "dave", "erin", "frank")
	mustPost(t, e, "erin", "p1", "x")
	mustPost(t, e, "erin", "p2", "x")
	mustPost(t, e, "frank", "p3", "x")
	mustPost(t, e, "erin", "p4", "x")
	mustPost(t, e, "erin", "p5", "x")

	clicks := []struct{ user, post string }{
		{"alice", "p1"},
		{"bob", "p1"}, {"bob", "p2"}, {"bob", "p2"},
		{"carol", "p1"}, {"carol", "p3"},
		{"dave", "p4"},
	}
	for _, c := range clicks {
		require.NoError(t, e.RecordClick(ctx, c.user, c.post))
	}
}

func TestCollaborativeFiltering(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	collabFixture(t, e)

	// bob and carol share p1 with alice: affinity 1+1 each.
	// p2 scores 2*2 through bob, p3 scores 2*1 through carol.
	posts, err := e.CollaborativeFiltering(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, postIDs(posts))
	assert.InDelta(t, 4.0, posts[0].Score, 1e-9)
	assert.InDelta(t, 2.0, posts[1].Score, 1e-9)

	require.NoError(t, e.RecordView(ctx, "alice", "p2"))
	posts, err = e.CollaborativeFiltering(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, postIDs(posts))

	require.NoError(t, e.Block(ctx, "alice", "frank", true))
	posts, err = e.CollaborativeFiltering(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCollaborativeFiltering_SimilarUserLimit(t *testing.T) {
	e, _ := newTestEngine(t, func(o *Options) { o.SimilarUserLimit = 1 })
	ctx := context.Background()
	collabFixture(t, e)
	// bob now outweighs carol
	require.NoError(t, e.RecordClick(ctx, "bob", "p1"))

	posts, err := e.CollaborativeFiltering(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, postIDs(posts))
	assert.InDelta(t, 6.0, posts[0].Score, 1e-9)
}

func TestCollaborativeFiltering_Errors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.CollaborativeFiltering(ctx, "", Page{})
	assertOutcome(t, apperrors.ResultInvalid, err)
	_, err = e.CollaborativeFiltering(ctx, "ghost", Page{})
	assertOutcome(t, apperrors.ResultNotFound, err)

	mustProfiles(t, e, "alice")
	posts, err := e.CollaborativeFiltering(ctx, "alice", Page{})
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestGetFeed_BackfillsWithTrending(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	collabFixture(t, e)

	// trending: p1 has three clickers; p2, p3 and p4 tie and go newest first
	posts, err := e.GetFeed(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p1", "p4", "p5"}, postIDs(posts))

	posts, err = e.GetFeed(ctx, "", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p4", "p3", "p2", "p5"}, postIDs(posts))
}
