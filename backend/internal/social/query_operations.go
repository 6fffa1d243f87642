package social

import (
	"context"
	"sort"

	"socialgraph/backend/internal/graphstore"
	apperrors "socialgraph/backend/pkg/errors"
)

// ============================================================================
// Single Entity Reads
// ============================================================================

// GetProfile returns a profile with its follower counts. IsFollowing is set
// when viewerName follows it.
func (e *Engine) GetProfile(ctx context.Context, username, viewerName string) (*Profile, error) {
	var out *Profile
	err := e.view(ctx, "get_profile", func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		nodes, err := tx.Nodes(ctx, id)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return graphstore.ErrNotFound
		}
		n := nodes[0]
		followers, err := tx.Counts(ctx, graphstore.ProfileFollowers, id)
		if err != nil {
			return err
		}
		following, err := tx.Counts(ctx, graphstore.ProfileFollowing, id)
		if err != nil {
			return err
		}
		out = &Profile{
			Author:            authorOf(n),
			BackgroundPicture: n.String(graphstore.PropBackgroundPicture),
			Accent:            n.String(graphstore.PropAccent),
			IsBanned:          n.Bool(graphstore.PropIsBanned),
			IsPrivate:         n.Bool(graphstore.PropIsPrivate),
			Followers:         followers[id],
			Following:         following[id],
		}
		if viewerName != "" && viewerName != username {
			v, err := resolveProfile(ctx, tx, viewerName)
			if err != nil {
				return err
			}
			_, out.IsFollowing, err = tx.Facet(ctx, graphstore.Edge{From: v, Label: graphstore.ProfileFollowing, To: id})
			return err
		}
		return nil
	})
	return out, err
}

// GetPost returns a post with its counters. Liked is set for viewerName.
func (e *Engine) GetPost(ctx context.Context, postID, viewerName string) (*Post, error) {
	var out *Post
	err := e.view(ctx, "get_post", func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolvePost(ctx, tx, postID)
		if err != nil {
			return err
		}
		v, err := loadViewer(ctx, tx, viewerName)
		if err != nil {
			return err
		}
		rows, err := loadPosts(ctx, tx, []graphstore.NodeID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return graphstore.ErrNotFound
		}
		v.markLiked(rows)
		out = &rows[0].post
		return nil
	})
	return out, err
}

// GetComment returns a single comment.
func (e *Engine) GetComment(ctx context.Context, commentID string) (*Comment, error) {
	var out *Comment
	err := e.view(ctx, "get_comment", func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolveComment(ctx, tx, commentID)
		if err != nil {
			return err
		}
		rows, err := loadComments(ctx, tx, []graphstore.NodeID{id})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return graphstore.ErrNotFound
		}
		out = &rows[0].comment
		return nil
	})
	return out, err
}

// ============================================================================
// Comments
// ============================================================================

type commentRow struct {
	id      graphstore.NodeID
	author  graphstore.NodeID
	comment Comment
}

func loadComments(ctx context.Context, tx graphstore.Txn, ids []graphstore.NodeID) ([]commentRow, error) {
	if len(ids) == 0 {
		return []commentRow{}, nil
	}
	nodes, err := tx.Nodes(ctx, ids...)
	if err != nil {
		return nil, err
	}
	likes, err := tx.Counts(ctx, graphstore.CommentLikes, ids...)
	if err != nil {
		return nil, err
	}
	rows := make([]commentRow, 0, len(nodes))
	var authorIDs []graphstore.NodeID
	for _, n := range nodes {
		author, err := firstOut(ctx, tx, n.ID, graphstore.CommentUsername)
		if err != nil {
			return nil, err
		}
		post, err := firstOut(ctx, tx, n.ID, graphstore.CommentPost)
		if err != nil {
			return nil, err
		}
		postID := ""
		if post != "" {
			keys, err := keysOf(ctx, tx, []graphstore.NodeID{post})
			if err != nil {
				return nil, err
			}
			if len(keys) == 1 {
				postID = keys[0]
			}
		}
		if author != "" {
			authorIDs = append(authorIDs, author)
		}
		rows = append(rows, commentRow{
			id:     n.ID,
			author: author,
			comment: Comment{
				CommentID: n.Key,
				PostID:    postID,
				Text:      n.String(graphstore.PropComment),
				Timestamp: n.Int(graphstore.PropTimestamp),
				Likes:     likes[n.ID],
			},
		})
	}
	authors, err := loadAuthors(ctx, tx, authorIDs)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].comment.Author = authors[rows[i].author]
	}
	return rows, nil
}

// GetComments lists a post's comments, most liked first. Comments by
// profiles the viewer blocked are left out.
func (e *Engine) GetComments(ctx context.Context, postID, viewerName string, page Page) ([]Comment, error) {
	offset, limit := e.window(page)
	var out []Comment
	err := e.view(ctx, "get_comments", func(ctx context.Context, tx graphstore.Txn) error {
		post, err := resolvePost(ctx, tx, postID)
		if err != nil {
			return err
		}
		v, err := loadViewer(ctx, tx, viewerName)
		if err != nil {
			return err
		}
		ids, err := tx.Out(ctx, post, graphstore.PostComments)
		if err != nil {
			return err
		}
		rows, err := loadComments(ctx, tx, graphstore.IDs(ids))
		if err != nil {
			return err
		}
		kept := rows[:0:0]
		for _, r := range rows {
			if !v.blocks(r.author) {
				kept = append(kept, r)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool {
			a, b := kept[i].comment, kept[j].comment
			if a.Likes != b.Likes {
				return a.Likes > b.Likes
			}
			if a.Timestamp != b.Timestamp {
				return a.Timestamp > b.Timestamp
			}
			return a.CommentID < b.CommentID
		})
		kept = slice(kept, offset, limit)
		out = make([]Comment, len(kept))
		for i, r := range kept {
			out[i] = r.comment
		}
		return nil
	})
	return out, err
}

// ============================================================================
// Post Lists
// ============================================================================

// GetUserPosts lists a profile's posts, newest first.
func (e *Engine) GetUserPosts(ctx context.Context, username, viewerName string, page Page) ([]Post, error) {
	return e.profilePosts(ctx, "get_user_posts", username, viewerName, page, graphstore.ProfilePosts)
}

// GetLikedPosts lists posts the profile liked, newest first.
func (e *Engine) GetLikedPosts(ctx context.Context, username string, page Page) ([]Post, error) {
	return e.profilePosts(ctx, "get_liked_posts", username, username, page, graphstore.ProfileLikes)
}

// GetHistoryPosts lists posts the profile viewed, newest first.
func (e *Engine) GetHistoryPosts(ctx context.Context, username string, page Page) ([]Post, error) {
	return e.profilePosts(ctx, "get_history_posts", username, username, page, graphstore.ProfileViewed)
}

func (e *Engine) profilePosts(ctx context.Context, op, username, viewerName string, page Page, label graphstore.Label) ([]Post, error) {
	offset, limit := e.window(page)
	var out []Post
	err := e.view(ctx, op, func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		v, err := loadViewer(ctx, tx, viewerName)
		if err != nil {
			return err
		}
		targets, err := tx.Out(ctx, id, label)
		if err != nil {
			return err
		}
		// likes also point at comments; loadPosts keeps posts only
		rows, err := loadPosts(ctx, tx, graphstore.IDs(targets))
		if err != nil {
			return err
		}
		rows = filterPosts(rows, v, false)
		sortByNewest(rows)
		v.markLiked(rows)
		out = postsOf(slice(rows, offset, limit))
		return nil
	})
	return out, err
}

// GetFollowingPosts lists posts by profiles username follows, newest first.
func (e *Engine) GetFollowingPosts(ctx context.Context, username string, page Page) ([]Post, error) {
	offset, limit := e.window(page)
	var out []Post
	err := e.view(ctx, "get_following_posts", func(ctx context.Context, tx graphstore.Txn) error {
		v, err := loadViewer(ctx, tx, username)
		if err != nil {
			return err
		}
		if v == nil {
			return apperrors.NewInvalidInput("username", "must not be empty")
		}
		var ids []graphstore.NodeID
		for followed := range v.following {
			posts, err := tx.Out(ctx, followed, graphstore.ProfilePosts)
			if err != nil {
				return err
			}
			ids = append(ids, graphstore.IDs(posts)...)
		}
		rows, err := loadPosts(ctx, tx, ids)
		if err != nil {
			return err
		}
		rows = filterPosts(rows, v, false)
		sortByNewest(rows)
		v.markLiked(rows)
		out = postsOf(slice(rows, offset, limit))
		return nil
	})
	return out, err
}

// ============================================================================
// Relationship Lists
// ============================================================================

// GetPinnedHashtags lists the profile's pinned hashtags alphabetically.
func (e *Engine) GetPinnedHashtags(ctx context.Context, username string) ([]Hashtag, error) {
	var out []Hashtag
	err := e.view(ctx, "get_pinned_hashtags", func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		pins, err := tx.Out(ctx, id, graphstore.ProfilePinnedHashtags)
		if err != nil {
			return err
		}
		out, err = e.loadHashtags(ctx, tx, graphstore.IDs(pins))
		if err != nil {
			return err
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Hashtag < out[j].Hashtag })
		return nil
	})
	return out, err
}

// GetBlockedUsers lists the profiles username blocked, alphabetically.
func (e *Engine) GetBlockedUsers(ctx context.Context, username string) ([]Author, error) {
	return e.profileList(ctx, "get_blocked_users", username, graphstore.ProfileBlockedUsers)
}

// GetFollowRequests lists pending follow requests. Nothing creates them yet;
// the edge exists in the schema for private profiles.
func (e *Engine) GetFollowRequests(ctx context.Context, username string) ([]Author, error) {
	return e.profileList(ctx, "get_follow_requests", username, graphstore.ProfileFollowRequests)
}

// GetFollowers lists the profile's followers alphabetically.
func (e *Engine) GetFollowers(ctx context.Context, username string) ([]Author, error) {
	return e.profileList(ctx, "get_followers", username, graphstore.ProfileFollowers)
}

// GetFollowing lists the profiles username follows alphabetically.
func (e *Engine) GetFollowing(ctx context.Context, username string) ([]Author, error) {
	return e.profileList(ctx, "get_following", username, graphstore.ProfileFollowing)
}

func (e *Engine) profileList(ctx context.Context, op, username string, label graphstore.Label) ([]Author, error) {
	var out []Author
	err := e.view(ctx, op, func(ctx context.Context, tx graphstore.Txn) error {
		id, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		targets, err := tx.Out(ctx, id, label)
		if err != nil {
			return err
		}
		nodes, err := tx.Nodes(ctx, graphstore.IDs(targets)...)
		if err != nil {
			return err
		}
		out = make([]Author, len(nodes))
		for i, n := range nodes {
			out[i] = authorOf(n)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
		return nil
	})
	return out, err
}

// ============================================================================
// Edge Checks
// ============================================================================

// IsFollowing reports whether username follows target.
func (e *Engine) IsFollowing(ctx context.Context, username, target string) (bool, error) {
	return e.hasEdge(ctx, "is_following", graphstore.KindProfile, username, graphstore.ProfileFollowing, target)
}

// IsBlocked reports whether username blocked target.
func (e *Engine) IsBlocked(ctx context.Context, username, target string) (bool, error) {
	return e.hasEdge(ctx, "is_blocked", graphstore.KindProfile, username, graphstore.ProfileBlockedUsers, target)
}

// DidLikePost reports whether username liked the post.
func (e *Engine) DidLikePost(ctx context.Context, username, postID string) (bool, error) {
	return e.hasEdge(ctx, "did_like_post", graphstore.KindPost, username, graphstore.ProfileLikes, postID)
}

func (e *Engine) hasEdge(ctx context.Context, op string, targetKind graphstore.Kind, username string, label graphstore.Label, target string) (bool, error) {
	var held bool
	err := e.view(ctx, op, func(ctx context.Context, tx graphstore.Txn) error {
		from, err := resolveProfile(ctx, tx, username)
		if err != nil {
			return err
		}
		to, err := resolve(ctx, tx, targetKind, target)
		if err != nil {
			return err
		}
		_, held, err = tx.Facet(ctx, graphstore.Edge{From: from, Label: label, To: to})
		return err
	})
	return held, err
}
