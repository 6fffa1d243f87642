package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialgraph/backend/internal/collab"
	"socialgraph/backend/internal/social"
)

// searchLimit caps the ranked ids requested from the searcher.
const searchLimit = 20

// serve records views of posts shown to a signed-in caller. The views outlive
// the request so a client disconnect does not drop them.
func (h *Handler) serve(c *gin.Context, op string, posts []social.Post, err error) {
	if err == nil {
		h.engine.ServePosts(context.WithoutCancel(c.Request.Context()), viewerName(c), posts)
	}
	respondList(h, c, op, posts, err)
}

func (h *Handler) getFeed(c *gin.Context) {
	posts, err := h.engine.GetFeed(c.Request.Context(), viewerName(c), page(c))
	h.serve(c, "get_feed", posts, err)
}

func (h *Handler) getTopPosts(c *gin.Context) {
	posts, err := h.engine.GetTopPosts(c.Request.Context(), viewerName(c), page(c))
	h.serve(c, "get_top_posts", posts, err)
}

func (h *Handler) getHashtagPosts(c *gin.Context) {
	ctx := c.Request.Context()
	hashtag := c.Param("hashtag")
	if c.Query("sort") == "newest" {
		posts, err := h.engine.GetNewestHashtagPosts(ctx, viewerName(c), hashtag, page(c))
		h.serve(c, "get_newest_hashtag_posts", posts, err)
		return
	}
	posts, err := h.engine.GetHashtagPosts(ctx, viewerName(c), hashtag, page(c))
	h.serve(c, "get_hashtag_posts", posts, err)
}

func (h *Handler) getRecommendedPosts(c *gin.Context) {
	posts, err := h.engine.CollaborativeFiltering(c.Request.Context(), viewerName(c), page(c))
	h.serve(c, "collaborative_filtering", posts, err)
}

func (h *Handler) getFollowingPosts(c *gin.Context) {
	posts, err := h.engine.GetFollowingPosts(c.Request.Context(), viewerName(c), page(c))
	respondList(h, c, "get_following_posts", posts, err)
}

func (h *Handler) getLikedPosts(c *gin.Context) {
	posts, err := h.engine.GetLikedPosts(c.Request.Context(), viewerName(c), page(c))
	respondList(h, c, "get_liked_posts", posts, err)
}

func (h *Handler) getHistoryPosts(c *gin.Context) {
	posts, err := h.engine.GetHistoryPosts(c.Request.Context(), viewerName(c), page(c))
	respondList(h, c, "get_history_posts", posts, err)
}

func (h *Handler) getUserPosts(c *gin.Context) {
	posts, err := h.engine.GetUserPosts(c.Request.Context(), c.Param("username"), viewerName(c), page(c))
	respondList(h, c, "get_user_posts", posts, err)
}

// getPost opens the post for signed-in callers, recording the click and the
// view. Anonymous callers only read it.
func (h *Handler) getPost(c *gin.Context) {
	ctx := c.Request.Context()
	postID := c.Param("postId")
	if viewer := viewerName(c); viewer != "" {
		post, err := h.engine.OpenPost(ctx, viewer, postID)
		h.respondItem(c, "open_post", post, err)
		return
	}
	post, err := h.engine.GetPost(ctx, postID, "")
	h.respondItem(c, "get_post", post, err)
}

func (h *Handler) didLikePost(c *gin.Context) {
	liked, err := h.engine.DidLikePost(c.Request.Context(), viewerName(c), c.Param("postId"))
	h.respondItem(c, "did_like_post", gin.H{"liked": liked}, err)
}

func (h *Handler) search(c *gin.Context) {
	ctx := c.Request.Context()
	query := strings.TrimSpace(c.Query("q"))
	if query == "" || h.searcher == nil {
		respondList(h, c, "search", []social.Post{}, nil)
		return
	}
	ids, err := h.searcher.Search(ctx, query, searchLimit)
	if err != nil {
		respondList[social.Post](h, c, "search", nil, err)
		return
	}
	posts, err := h.engine.HydrateRanked(ctx, viewerName(c), ids)
	respondList(h, c, "search", posts, err)
}

func (h *Handler) getSimilarPosts(c *gin.Context) {
	ctx := c.Request.Context()
	if h.searcher == nil {
		respondList(h, c, "similar_posts", []social.Post{}, nil)
		return
	}
	ids, err := h.searcher.Similar(ctx, c.Param("postId"), searchLimit)
	if err != nil {
		respondList[social.Post](h, c, "similar_posts", nil, err)
		return
	}
	posts, err := h.engine.HydrateRanked(ctx, viewerName(c), ids)
	respondList(h, c, "similar_posts", posts, err)
}

type createPostRequest struct {
	Content string `json:"content" binding:"required"`
	Hashtag string `json:"hashtag" binding:"required"`
}

// createPost indexes the body with the searcher, which assigns the post id,
// then creates the graph node. A failed graph write removes the indexed body.
func (h *Handler) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil || social.NormalizeHashtag(req.Hashtag) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	ctx := c.Request.Context()
	username := viewerName(c)
	content := strings.TrimSpace(req.Content)

	postID, err := h.searcher.IndexPost(ctx, content)
	if err != nil {
		h.respondItem(c, "index_post", nil, err)
		return
	}
	if err := h.engine.CreatePost(ctx, username, postID, req.Hashtag); err != nil {
		if rmErr := h.searcher.RemovePost(context.WithoutCancel(ctx), postID); rmErr != nil {
			h.logger.Warn("Failed to remove orphaned post body",
				zap.String("post_id", postID),
				zap.Error(rmErr))
		}
		h.respondItem(c, "create_post", nil, err)
		return
	}

	for _, mentioned := range mentions(content) {
		h.notify(c, collab.Notification{
			Username: mentioned,
			Message:  "@" + username + " mentioned you in a post",
			PostID:   postID,
		})
	}
	// the author has seen and opened their own post
	if _, err := h.engine.OpenPost(context.WithoutCancel(ctx), username, postID); err != nil {
		h.logger.Warn("Failed to record author view", zap.String("post_id", postID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "postId": postID})
}

func (h *Handler) deletePost(c *gin.Context) {
	ctx := c.Request.Context()
	postID := c.Param("postId")
	if !h.respondOK(c, "delete_post", h.engine.DeletePost(ctx, viewerName(c), postID)) {
		return
	}
	if h.searcher != nil {
		if err := h.searcher.RemovePost(ctx, postID); err != nil {
			h.logger.Warn("Failed to remove post body", zap.String("post_id", postID), zap.Error(err))
		}
	}
}

func (h *Handler) likePost(add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		username := viewerName(c)
		postID := c.Param("postId")
		if !h.respondOK(c, "like_post", h.engine.LikePost(ctx, username, postID, add)) || !add {
			return
		}
		post, err := h.engine.GetPost(ctx, postID, "")
		if err != nil {
			return
		}
		h.notify(c, collab.Notification{
			Username: post.Author.Username,
			Message:  "@" + username + " liked your post",
			PostID:   postID,
		})
	}
}

type commentRequest struct {
	Text string `json:"comment" binding:"required"`
}

func (h *Handler) createComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}
	ctx := c.Request.Context()
	username := viewerName(c)
	postID := c.Param("postId")

	commentID, err := h.engine.CreateComment(ctx, username, postID, req.Text)
	if err != nil {
		h.respondItem(c, "create_comment", nil, err)
		return
	}
	for _, mentioned := range mentions(req.Text) {
		h.notify(c, collab.Notification{
			Username:  mentioned,
			Message:   "@" + username + " mentioned you in a comment",
			CommentID: commentID,
		})
	}
	if post, err := h.engine.GetPost(ctx, postID, ""); err == nil {
		h.notify(c, collab.Notification{
			Username:  post.Author.Username,
			Message:   "@" + username + " commented on your post",
			PostID:    postID,
			CommentID: commentID,
		})
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "commentId": commentID})
}

func (h *Handler) getComments(c *gin.Context) {
	comments, err := h.engine.GetComments(c.Request.Context(), c.Param("postId"), viewerName(c), page(c))
	respondList(h, c, "get_comments", comments, err)
}

func (h *Handler) getComment(c *gin.Context) {
	comment, err := h.engine.GetComment(c.Request.Context(), c.Param("commentId"))
	h.respondItem(c, "get_comment", comment, err)
}

func (h *Handler) deleteComment(c *gin.Context) {
	h.respondOK(c, "delete_comment", h.engine.DeleteComment(c.Request.Context(), viewerName(c), c.Param("commentId")))
}

func (h *Handler) likeComment(add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		username := viewerName(c)
		commentID := c.Param("commentId")
		if !h.respondOK(c, "like_comment", h.engine.LikeComment(ctx, username, commentID, add)) || !add {
			return
		}
		comment, err := h.engine.GetComment(ctx, commentID)
		if err != nil {
			return
		}
		h.notify(c, collab.Notification{
			Username:  comment.Author.Username,
			Message:   "@" + username + " liked your comment",
			CommentID: commentID,
		})
	}
}

func (h *Handler) saveComment(add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respondOK(c, "save_comment", h.engine.SetLikedComment(c.Request.Context(), viewerName(c), c.Param("commentId"), add))
	}
}
