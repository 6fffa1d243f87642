package social

import (
	"context"
	"fmt"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

// ============================================================================
// Paired Edge Mutations
// ============================================================================

// applyPair writes or removes both sides of a relationship in tx. A shared
// reverse edge survives removal while a sibling forward edge still holds it.
func applyPair(ctx context.Context, tx graphstore.Txn, pair graphstore.EdgePair, from, to graphstore.NodeID, add bool) error {
	if add {
		if err := tx.AddEdges(ctx, pair.Edges(from, to, 0)...); err != nil {
			return fmt.Errorf("failed to add %s edge: %w", pair.Name, err)
		}
		return nil
	}

	edges := pair.Edges(from, to, 0)
	for _, sib := range pair.Siblings() {
		_, held, err := tx.Facet(ctx, graphstore.Edge{From: from, Label: sib.Forward, To: to})
		if err != nil {
			return fmt.Errorf("failed to check %s edge: %w", sib.Name, err)
		}
		if held {
			edges = edges[:1]
			break
		}
	}
	if err := tx.RemoveEdges(ctx, edges...); err != nil {
		return fmt.Errorf("failed to remove %s edge: %w", pair.Name, err)
	}
	return nil
}

// Follow makes username follow target, or unfollows when add is false.
func (e *Engine) Follow(ctx context.Context, username, target string, add bool) error {
	if username == target {
		return apperrors.NewInvalidInput("target", "profiles cannot follow themselves")
	}
	return e.update(ctx, "follow", func(ctx context.Context, tx graphstore.Txn) error {
		from, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		to, err := resolveProfile(ctx, tx, target)
		if err != nil {
			return err
		}
		if add {
			_, blocked, err := tx.Facet(ctx, graphstore.Edge{From: to, Label: graphstore.ProfileBlockedUsers, To: from})
			if err != nil {
				return err
			}
			if blocked {
				return apperrors.NewForbidden(username, target)
			}
		}
		return applyPair(ctx, tx, graphstore.PairFollow, from, to, add)
	})
}

// LikePost likes or unlikes a post.
func (e *Engine) LikePost(ctx context.Context, username, postID string, add bool) error {
	return e.update(ctx, "like_post", func(ctx context.Context, tx graphstore.Txn) error {
		from, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		to, err := resolvePost(ctx, tx, postID)
		if err != nil {
			return err
		}
		return applyPair(ctx, tx, graphstore.PairLikePost, from, to, add)
	})
}

// LikeComment likes or unlikes a comment through the shared likes edge.
func (e *Engine) LikeComment(ctx context.Context, username, commentID string, add bool) error {
	return e.commentEdge(ctx, "like_comment", graphstore.PairLikeComment, username, commentID, add)
}

// SetLikedComment writes the likedComments edge. It shares the comment's
// likes counter with LikeComment but is a separate relationship.
func (e *Engine) SetLikedComment(ctx context.Context, username, commentID string, add bool) error {
	return e.commentEdge(ctx, "liked_comment", graphstore.PairLikedComment, username, commentID, add)
}

func (e *Engine) commentEdge(ctx context.Context, op string, pair graphstore.EdgePair, username, commentID string, add bool) error {
	return e.update(ctx, op, func(ctx context.Context, tx graphstore.Txn) error {
		from, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		to, err := resolveComment(ctx, tx, commentID)
		if err != nil {
			return err
		}
		return applyPair(ctx, tx, pair, from, to, add)
	})
}

// RecordView marks the post as seen by username. Views are a set: repeated
// calls leave the post's view count unchanged.
func (e *Engine) RecordView(ctx context.Context, username, postID string) error {
	return e.update(ctx, "record_view", func(ctx context.Context, tx graphstore.Txn) error {
		from, to, err := resolveViewerPost(ctx, tx, username, postID)
		if err != nil {
			return err
		}
		return applyPair(ctx, tx, graphstore.PairView, from, to, true)
	})
}

// RecordClick marks the post as opened by username. The click count stays a
// distinct-clicker count; the edge facet is reinforced on every call and
// weights collaborative filtering.
func (e *Engine) RecordClick(ctx context.Context, username, postID string) error {
	return e.update(ctx, "record_click", func(ctx context.Context, tx graphstore.Txn) error {
		from, to, err := resolveViewerPost(ctx, tx, username, postID)
		if err != nil {
			return err
		}
		return recordClick(ctx, tx, from, to)
	})
}

func recordClick(ctx context.Context, tx graphstore.Txn, from, to graphstore.NodeID) error {
	facet, held, err := tx.Facet(ctx, graphstore.Edge{From: from, Label: graphstore.ProfileClickedOn, To: to})
	if err != nil {
		return err
	}
	next := 1
	if held {
		next = facet + 1
	}
	if err := tx.AddEdges(ctx, graphstore.PairClick.Edges(from, to, next)...); err != nil {
		return fmt.Errorf("failed to add click edge: %w", err)
	}
	return nil
}

func resolveViewerPost(ctx context.Context, tx graphstore.Txn, username, postID string) (graphstore.NodeID, graphstore.NodeID, error) {
	from, err := resolveProfile(ctx, tx, username)
	if err != nil {
		return "", "", err
	}
	to, err := resolvePost(ctx, tx, postID)
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

// PinHashtag pins or unpins a hashtag. Pinning creates the hashtag on first
// use; unpinning an unknown hashtag is NotFound.
func (e *Engine) PinHashtag(ctx context.Context, username, hashtag string, add bool) error {
	text := NormalizeHashtag(hashtag)
	if text == "" {
		return apperrors.NewInvalidInput("hashtag", "must contain letters or digits")
	}
	return e.update(ctx, "pin_hashtag", func(ctx context.Context, tx graphstore.Txn) error {
		from, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		var to graphstore.NodeID
		if add {
			to, err = resolveOrCreateHashtag(ctx, tx, text)
		} else {
			to, err = resolveHashtag(ctx, tx, text)
		}
		if err != nil {
			return err
		}
		return applyPair(ctx, tx, graphstore.PairPinHashtag, from, to, add)
	})
}

// Block blocks or unblocks target. The edge is one-directional.
func (e *Engine) Block(ctx context.Context, username, target string, add bool) error {
	if username == target {
		return apperrors.NewInvalidInput("target", "profiles cannot block themselves")
	}
	return e.update(ctx, "block", func(ctx context.Context, tx graphstore.Txn) error {
		from, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		to, err := resolveProfile(ctx, tx, target)
		if err != nil {
			return err
		}
		return applyPair(ctx, tx, graphstore.PairBlock, from, to, add)
	})
}
