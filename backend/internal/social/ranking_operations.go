package social

import (
	"context"
	"sort"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

// ============================================================================
// Post Rankings
// ============================================================================

// GetTopPosts ranks every post by composite score. With a viewer, posts the
// viewer already viewed and posts by blocked authors are excluded.
func (e *Engine) GetTopPosts(ctx context.Context, viewerName string, page Page) ([]Post, error) {
	offset, limit := e.window(page)
	var out []Post
	err := e.view(ctx, "get_top_posts", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, viewerName)
		if err != nil {
			return err
		}
		rows, err := e.topPosts(ctx, tx, v)
		if err != nil {
			return err
		}
		out = postsOf(slice(rows, offset, limit))
		return nil
	})
	return out, err
}

func (e *Engine) topPosts(ctx context.Context, tx graphstore.Txn, v *viewer) ([]postRow, error) {
	ids, err := tx.Scan(ctx, graphstore.KindPost)
	if err != nil {
		return nil, err
	}
	rows, err := loadPosts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	rows = filterPosts(rows, v, true)
	e.scorePosts(rows)
	sortByScore(rows)
	v.markLiked(rows)
	return rows, nil
}

// GetHashtagPosts ranks a hashtag's posts by composite score. A short page
// is topped up with the hashtag's newest posts, skipping duplicates.
func (e *Engine) GetHashtagPosts(ctx context.Context, viewerName, hashtag string, page Page) ([]Post, error) {
	offset, limit := e.window(page)
	var out []Post
	err := e.view(ctx, "get_hashtag_posts", func(ctx context.Context, tx graphstore.Txn) error {
		v, rows, err := e.hashtagPosts(ctx, tx, viewerName, hashtag)
		if err != nil {
			return err
		}
		scored := filterPosts(rows, v, true)
		e.scorePosts(scored)
		sortByScore(scored)

		newest := filterPosts(rows, v, false)
		sortByNewest(newest)

		out = backfill("hashtag_posts",
			postsOf(slice(scored, offset, limit)),
			postsOf(slice(newest, offset, limit)),
			limit, postKey)
		return nil
	})
	return out, err
}

// GetNewestHashtagPosts lists a hashtag's posts newest first.
func (e *Engine) GetNewestHashtagPosts(ctx context.Context, viewerName, hashtag string, page Page) ([]Post, error) {
	offset, limit := e.window(page)
	var out []Post
	err := e.view(ctx, "get_newest_hashtag_posts", func(ctx context.Context, tx graphstore.Txn) error {
		v, rows, err := e.hashtagPosts(ctx, tx, viewerName, hashtag)
		if err != nil {
			return err
		}
		rows = filterPosts(rows, v, false)
		sortByNewest(rows)
		out = postsOf(slice(rows, offset, limit))
		return nil
	})
	return out, err
}

// hashtagPosts loads the viewer and every post of the hashtag, unfiltered.
func (e *Engine) hashtagPosts(ctx context.Context, tx graphstore.Txn, viewerName, hashtag string) (*viewer, []postRow, error) {
	text := NormalizeHashtag(hashtag)
	if text == "" {
		return nil, nil, apperrors.NewInvalidInput("hashtag", "must contain letters or digits")
	}
	v, err := loadViewer(ctx, tx, viewerName)
	if err != nil {
		return nil, nil, err
	}
	tag, err := resolveHashtag(ctx, tx, text)
	if err != nil {
		return nil, nil, err
	}
	members, err := tx.Out(ctx, tag, graphstore.HashtagPosts)
	if err != nil {
		return nil, nil, err
	}
	rows, err := loadPosts(ctx, tx, graphstore.IDs(members))
	if err != nil {
		return nil, nil, err
	}
	v.markLiked(rows)
	return v, rows, nil
}

// ============================================================================
// Collaborative Filtering
// ============================================================================

// CollaborativeFiltering recommends posts clicked by users whose clicks
// overlap the caller's. Users are weighted by shared-click affinity, then
// candidate posts by the affinity of the users who clicked them. Posts the
// caller clicked or viewed and posts by blocked authors are excluded.
func (e *Engine) CollaborativeFiltering(ctx context.Context, username string, page Page) ([]Post, error) {
	offset, limit := e.window(page)
	var out []Post
	err := e.view(ctx, "collaborative_filtering", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, username)
		if err != nil {
			return err
		}
		if v == nil {
			return apperrors.NewInvalidInput("username", "must not be empty")
		}
		rows, err := e.collaborative(ctx, tx, v)
		if err != nil {
			return err
		}
		out = postsOf(slice(rows, offset, limit))
		return nil
	})
	return out, err
}

func (e *Engine) collaborative(ctx context.Context, tx graphstore.Txn, v *viewer) ([]postRow, error) {
	similar, err := e.similarUsers(ctx, tx, v)
	if err != nil {
		return nil, err
	}

	scores := map[graphstore.NodeID]float64{}
	for _, u := range similar {
		clicks, err := tx.Out(ctx, u.id, graphstore.ProfileClickedOn)
		if err != nil {
			return nil, err
		}
		for _, c := range clicks {
			if _, clicked := v.clicked[c.ID]; clicked || v.hasViewed(c.ID) {
				continue
			}
			scores[c.ID] += u.affinity * float64(c.Facet)
		}
	}

	ids := make([]graphstore.NodeID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	rows, err := loadPosts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	rows = filterPosts(rows, v, false)
	for i := range rows {
		rows[i].post.Score = scores[rows[i].id]
	}
	sortByScore(rows)
	v.markLiked(rows)
	return rows, nil
}

type similarUser struct {
	id       graphstore.NodeID
	affinity float64
}

// similarUsers scores every other user who clicked a post the caller clicked
// by the summed click facets on those shared posts, keeping the strongest.
func (e *Engine) similarUsers(ctx context.Context, tx graphstore.Txn, v *viewer) ([]similarUser, error) {
	affinity := map[graphstore.NodeID]float64{}
	for post, own := range v.clicked {
		clickers, err := tx.In(ctx, post, graphstore.ProfileClickedOn)
		if err != nil {
			return nil, err
		}
		for _, c := range clickers {
			if c.ID == v.id {
				continue
			}
			affinity[c.ID] += float64(c.Facet + own)
		}
	}

	out := make([]similarUser, 0, len(affinity))
	for id, a := range affinity {
		out = append(out, similarUser{id: id, affinity: a})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].affinity != out[j].affinity {
			return out[i].affinity > out[j].affinity
		}
		return out[i].id < out[j].id
	})
	if len(out) > e.opts.SimilarUserLimit {
		out = out[:e.opts.SimilarUserLimit]
	}
	return out, nil
}

// GetFeed serves collaborative filtering to signed-in callers, topped up
// with trending posts, and trending posts to anonymous callers.
func (e *Engine) GetFeed(ctx context.Context, viewerName string, page Page) ([]Post, error) {
	if viewerName == "" {
		return e.GetTopPosts(ctx, "", page)
	}
	offset, limit := e.window(page)
	var out []Post
	err := e.view(ctx, "get_feed", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, viewerName)
		if err != nil {
			return err
		}
		personal, err := e.collaborative(ctx, tx, v)
		if err != nil {
			return err
		}
		out = postsOf(slice(personal, offset, limit))
		if len(out) >= limit {
			return nil
		}
		trending, err := e.topPosts(ctx, tx, v)
		if err != nil {
			return err
		}
		out = backfill("feed", out, postsOf(slice(trending, offset, limit)), limit, postKey)
		return nil
	})
	return out, err
}
