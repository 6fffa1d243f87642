package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "socialgraph/backend/pkg/errors"
)

func hashtagTexts(tags []Hashtag) []string {
	out := make([]string, len(tags))
	for i, h := range tags {
		out[i] = h.Hashtag
	}
	return out
}

func TestRecommendFriends_MutualConnections(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol", "dave", "erin", "mallory")
	follows := [][2]string{
		{"alice", "bob"}, {"alice", "erin"},
		{"bob", "carol"}, {"erin", "carol"},
		{"bob", "dave"},
		{"bob", "alice"},
		{"erin", "mallory"},
	}
	for _, f := range follows {
		require.NoError(t, e.Follow(ctx, f[0], f[1], true))
	}
	require.NoError(t, e.Block(ctx, "alice", "mallory", true))

	friends, err := e.RecommendFriends(ctx, "alice", Page{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "dave"}, usernames(friends))
	assert.InDelta(t, 2.0, friends[0].Score, 1e-9)
	assert.InDelta(t, 1.0, friends[1].Score, 1e-9)
	assert.Equal(t, 2, friends[0].Followers)
}

func TestRecommendFriends_BackfillDeduplicates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol", "dave")
	require.NoError(t, e.Follow(ctx, "alice", "bob", true))
	require.NoError(t, e.Follow(ctx, "bob", "carol", true))
	require.NoError(t, e.Follow(ctx, "dave", "carol", true))
	require.NoError(t, e.Follow(ctx, "dave", "bob", true))

	// primary: carol. most followed: bob and carol with two followers each,
	// then dave; alice is the caller.
	friends, err := e.RecommendFriends(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "dave"}, usernames(friends))
}

func TestRecommendFriends_FallsBackToMostFollowed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol", "dave")
	require.NoError(t, e.Follow(ctx, "bob", "carol", true))
	require.NoError(t, e.Follow(ctx, "dave", "carol", true))
	require.NoError(t, e.Follow(ctx, "carol", "alice", true))
	require.NoError(t, e.Follow(ctx, "carol", "dave", true))

	friends, err := e.RecommendFriends(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "dave", "bob"}, usernames(friends))
	for _, f := range friends {
		assert.NotEqual(t, "alice", f.Username)
	}
}

func TestRecommendFriends_Errors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RecommendFriends(ctx, "", Page{})
	assertOutcome(t, apperrors.ResultInvalid, err)
	_, err = e.RecommendFriends(ctx, "ghost", Page{})
	assertOutcome(t, apperrors.ResultNotFound, err)
}

func TestGetMostFollowed(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	require.NoError(t, e.Follow(ctx, "alice", "carol", true))
	require.NoError(t, e.Follow(ctx, "bob", "carol", true))
	require.NoError(t, e.Follow(ctx, "carol", "bob", true))

	top, err := e.GetMostFollowed(ctx, "", Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "alice"}, usernames(top))
	assert.Equal(t, 2, top[0].Followers)

	require.NoError(t, e.Block(ctx, "alice", "bob", true))
	top, err = e.GetMostFollowed(ctx, "alice", Page{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, usernames(top))
}

func TestRecommendHashtags_RelatedFirst(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	require.NoError(t, e.PinHashtag(ctx, "alice", "go", true))
	require.NoError(t, e.PinHashtag(ctx, "bob", "go", true))
	require.NoError(t, e.PinHashtag(ctx, "bob", "rust", true))
	mustPost(t, e, "carol", "p1", "python")
	mustPost(t, e, "carol", "p2", "go")
	mustPost(t, e, "carol", "p3", "zig")
	mustPost(t, e, "carol", "p4", "zig")
	require.NoError(t, e.RecordClick(ctx, "alice", "p1"))
	require.NoError(t, e.RecordClick(ctx, "alice", "p2"))

	tags, err := e.RecommendHashtags(ctx, "alice", Page{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "rust"}, hashtagTexts(tags))
	for _, h := range tags {
		assert.InDelta(t, 1.0, h.Score, 1e-9)
	}

	// topped up with popular hashtags alice has not pinned
	tags, err = e.RecommendHashtags(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "rust", "zig"}, hashtagTexts(tags))
}

func TestRecommendHashtags_FallsBackToMostPinned(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob", "carol")
	require.NoError(t, e.PinHashtag(ctx, "bob", "go", true))
	require.NoError(t, e.PinHashtag(ctx, "carol", "go", true))
	require.NoError(t, e.PinHashtag(ctx, "carol", "rust", true))

	tags, err := e.RecommendHashtags(ctx, "alice", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, hashtagTexts(tags))
	assert.Equal(t, 2, tags[0].PinnedBy)

	anonymous, err := e.RecommendHashtags(ctx, "", Page{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, tags, anonymous)
}

func TestGetMostPinnedHashtags(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustProfiles(t, e, "alice", "bob")
	require.NoError(t, e.PinHashtag(ctx, "alice", "go", true))
	require.NoError(t, e.PinHashtag(ctx, "bob", "go", true))
	mustPost(t, e, "alice", "p1", "rust")
	mustPost(t, e, "alice", "p2", "rust")
	mustPost(t, e, "alice", "p3", "rust")
	mustPost(t, e, "alice", "p4", "zig")

	tags, err := e.GetMostPinnedHashtags(ctx, Page{Size: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"rust", "go", "zig"}, hashtagTexts(tags))
	assert.InDelta(t, 1.5, tags[0].Score, 1e-9)
	assert.Equal(t, 3, tags[0].Posts)
	assert.InDelta(t, 1.0, tags[1].Score, 1e-9)
	assert.Equal(t, 2, tags[1].PinnedBy)

	empty, err := e.GetMostPinnedHashtags(ctx, Page{Num: 5})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
