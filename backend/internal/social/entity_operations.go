package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

// ============================================================================
// Profiles
// ============================================================================

// CreateProfile creates a profile. A taken username is Invalid.
func (e *Engine) CreateProfile(ctx context.Context, in ProfileInput) error {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return apperrors.NewInvalidInput("username", "must not be empty")
	}
	return e.update(ctx, "create_profile", func(ctx context.Context, tx graphstore.Txn) error {
		_, err := tx.CreateNode(ctx, graphstore.KindProfile, username, graphstore.Props{
			graphstore.PropRealName:          in.Name,
			graphstore.PropProfilePicture:    in.ProfilePicture,
			graphstore.PropBackgroundPicture: in.BackgroundPicture,
			graphstore.PropAccent:            in.Accent,
			graphstore.PropIsVerified:        false,
			graphstore.PropIsBanned:          false,
			graphstore.PropIsPrivate:         false,
		})
		if errors.Is(err, graphstore.ErrKeyExists) {
			return apperrors.NewInvalidInput("username", "already taken")
		}
		return err
	})
}

// EditProfile overwrites the non-empty fields of edit.
func (e *Engine) EditProfile(ctx context.Context, username string, edit ProfileEdit) error {
	props := graphstore.Props{}
	for name, v := range map[string]string{
		graphstore.PropRealName:          edit.Name,
		graphstore.PropProfilePicture:    edit.ProfilePicture,
		graphstore.PropBackgroundPicture: edit.BackgroundPicture,
		graphstore.PropAccent:            edit.Accent,
	} {
		if v != "" {
			props[name] = v
		}
	}
	return e.setProfileProps(ctx, "edit_profile", username, props)
}

// SetVerified sets the profile's verification flag.
func (e *Engine) SetVerified(ctx context.Context, username string, verified bool) error {
	return e.setProfileProps(ctx, "set_verified", username, graphstore.Props{graphstore.PropIsVerified: verified})
}

// SetPrivate sets the profile's private flag.
func (e *Engine) SetPrivate(ctx context.Context, username string, private bool) error {
	return e.setProfileProps(ctx, "set_private", username, graphstore.Props{graphstore.PropIsPrivate: private})
}

func (e *Engine) setProfileProps(ctx context.Context, op, username string, props graphstore.Props) error {
	return e.update(ctx, op, func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		if len(props) == 0 {
			return nil
		}
		return tx.SetProps(ctx, id, props)
	})
}

// DeleteProfile deletes the profile and severs every edge touching it. With
// CascadeProfileDelete the profile's posts and comments go too; otherwise
// they stay without an author.
func (e *Engine) DeleteProfile(ctx context.Context, username string) error {
	return e.update(ctx, "delete_profile", func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		if e.opts.CascadeProfileDelete {
			posts, err := tx.Out(ctx, id, graphstore.ProfilePosts)
			if err != nil {
				return err
			}
			for _, p := range posts {
				if err := deletePost(ctx, tx, p.ID); err != nil {
					return err
				}
			}
			comments, err := tx.In(ctx, id, graphstore.CommentUsername)
			if err != nil {
				return err
			}
			if err := deleteNodes(ctx, tx, graphstore.IDs(comments)...); err != nil {
				return err
			}
		}
		if err := tx.DeleteNode(ctx, id); err != nil {
			return err
		}
		e.logger.Info("Deleted profile",
			zap.String("username", username),
			zap.Bool("cascade", e.opts.CascadeProfileDelete))
		return nil
	})
}

// ============================================================================
// Posts and Comments
// ============================================================================

// CreatePost creates a post authored by username in hashtag, creating the
// hashtag on first use. The post, its author edge and its hashtag edge are
// written together or not at all.
func (e *Engine) CreatePost(ctx context.Context, username, postID, hashtag string) error {
	if postID == "" {
		return apperrors.NewInvalidInput("postId", "must not be empty")
	}
	text := NormalizeHashtag(hashtag)
	if text == "" {
		return apperrors.NewInvalidInput("hashtag", "must contain letters or digits")
	}
	return e.update(ctx, "create_post", func(ctx context.Context, tx graphstore.Txn) error {
		author, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		post, err := tx.CreateNode(ctx, graphstore.KindPost, postID, graphstore.Props{
			graphstore.PropTimestamp: e.nowMillis(),
		})
		if errors.Is(err, graphstore.ErrKeyExists) {
			return apperrors.NewInvalidInput("postId", "already exists")
		}
		if err != nil {
			return err
		}
		tag, err := resolveOrCreateHashtag(ctx, tx, text)
		if err != nil {
			return err
		}
		edges := graphstore.PairAuthorPost.Edges(author, post, 0)
		edges = append(edges, graphstore.PairPostHashtag.Edges(post, tag, 0)...)
		if err := tx.AddEdges(ctx, edges...); err != nil {
			return fmt.Errorf("failed to link post: %w", err)
		}
		return nil
	})
}

// DeletePost deletes a post and its comments. Only the author may delete it.
func (e *Engine) DeletePost(ctx context.Context, username, postID string) error {
	return e.update(ctx, "delete_post", func(ctx context.Context, tx graphstore.Txn) error {
		caller, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		post, err := resolvePost(ctx, tx, postID)
		if err != nil {
			return err
		}
		owner, err := firstOut(ctx, tx, post, graphstore.PostUsername)
		if err != nil {
			return err
		}
		if owner != caller {
			return apperrors.NewForbidden(username, "post "+postID)
		}
		return deletePost(ctx, tx, post)
	})
}

func deletePost(ctx context.Context, tx graphstore.Txn, post graphstore.NodeID) error {
	comments, err := tx.Out(ctx, post, graphstore.PostComments)
	if err != nil {
		return err
	}
	if err := deleteNodes(ctx, tx, graphstore.IDs(comments)...); err != nil {
		return err
	}
	return deleteNodes(ctx, tx, post)
}

// deleteNodes deletes ids, skipping ones an earlier cascade step removed.
func deleteNodes(ctx context.Context, tx graphstore.Txn, ids ...graphstore.NodeID) error {
	for _, id := range ids {
		if err := tx.DeleteNode(ctx, id); err != nil && !errors.Is(err, graphstore.ErrNotFound) {
			return err
		}
	}
	return nil
}

// CreateComment comments on a post and returns the new comment id.
func (e *Engine) CreateComment(ctx context.Context, username, postID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewInvalidInput("comment", "must not be empty")
	}
	commentID := e.newID()
	err := e.update(ctx, "create_comment", func(ctx context.Context, tx graphstore.Txn) error {
		author, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		post, err := resolvePost(ctx, tx, postID)
		if err != nil {
			return err
		}
		comment, err := tx.CreateNode(ctx, graphstore.KindComment, commentID, graphstore.Props{
			graphstore.PropComment:   text,
			graphstore.PropTimestamp: e.nowMillis(),
		})
		if err != nil {
			return err
		}
		edges := graphstore.PairPostComment.Edges(post, comment, 0)
		edges = append(edges, graphstore.PairAuthorComment.Edges(comment, author, 0)...)
		if err := tx.AddEdges(ctx, edges...); err != nil {
			return fmt.Errorf("failed to link comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return commentID, nil
}

// DeleteComment deletes a comment. Only its author may delete it.
func (e *Engine) DeleteComment(ctx context.Context, username, commentID string) error {
	return e.update(ctx, "delete_comment", func(ctx context.Context, tx graphstore.Txn) error {
		caller, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		comment, err := resolveComment(ctx, tx, commentID)
		if err != nil {
			return err
		}
		owner, err := firstOut(ctx, tx, comment, graphstore.CommentUsername)
		if err != nil {
			return err
		}
		if owner != caller {
			return apperrors.NewForbidden(username, "comment "+commentID)
		}
		return tx.DeleteNode(ctx, comment)
	})
}
