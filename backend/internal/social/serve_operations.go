package social

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

// ============================================================================
// Serving
// ============================================================================

// ServePosts records a view by viewerName for every served post. Each view is
// its own transaction; failures are logged and never reach the caller.
func (e *Engine) ServePosts(ctx context.Context, viewerName string, posts []Post) {
	if viewerName == "" || len(posts) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(e.opts.ServedViewWorkers)
	for _, p := range posts {
		postID := p.PostID
		g.Go(func() error {
			if err := e.RecordView(ctx, viewerName, postID); err != nil {
				e.logger.Warn("Failed to record served view",
					zap.String("username", viewerName),
					zap.String("post_id", postID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// OpenPost records a click and a view by viewerName and returns the post
// with its updated counters. Posts by authors the viewer blocked are
// Forbidden.
func (e *Engine) OpenPost(ctx context.Context, viewerName, postID string) (*Post, error) {
	var out *Post
	err := e.update(ctx, "open_post", func(ctx context.Context, tx graphstore.Txn) error {
		from, to, err := resolveViewerPost(ctx, tx, viewerName, postID)
		if err != nil {
			return err
		}
		author, err := firstOut(ctx, tx, to, graphstore.PostUsername)
		if err != nil {
			return err
		}
		if author != "" {
			_, blocked, err := tx.Facet(ctx, graphstore.Edge{From: from, Label: graphstore.ProfileBlockedUsers, To: author})
			if err != nil {
				return err
			}
			if blocked {
				return apperrors.NewForbidden(viewerName, "post "+postID)
			}
		}
		if err := recordClick(ctx, tx, from, to); err != nil {
			return err
		}
		if err := applyPair(ctx, tx, graphstore.PairView, from, to, true); err != nil {
			return err
		}

		rows, err := loadPosts(ctx, tx, []graphstore.NodeID{to})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return graphstore.ErrNotFound
		}
		_, rows[0].post.Liked, err = tx.Facet(ctx, graphstore.Edge{From: from, Label: graphstore.ProfileLikes, To: to})
		if err != nil {
			return err
		}
		out = &rows[0].post
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HydrateRanked hydrates post ids ranked by an external collaborator such as
// vector search. Unknown ids and posts by blocked authors are dropped; the
// given order is kept.
func (e *Engine) HydrateRanked(ctx context.Context, viewerName string, postIDs []string) ([]Post, error) {
	var out []Post
	err := e.view(ctx, "hydrate_ranked", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, viewerName)
		if err != nil {
			return err
		}
		ids := make([]graphstore.NodeID, 0, len(postIDs))
		seen := make(map[string]struct{}, len(postIDs))
		for _, postID := range postIDs {
			if _, dup := seen[postID]; dup {
				continue
			}
			seen[postID] = struct{}{}
			id, err := resolvePost(ctx, tx, postID)
			if apperrors.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		rows, err := loadPosts(ctx, tx, ids)
		if err != nil {
			return err
		}
		rows = filterPosts(rows, v, false)
		v.markLiked(rows)
		out = postsOf(rows)
		return nil
	})
	return out, err
}
