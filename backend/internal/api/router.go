// Package api is the HTTP adapter over the social engine. It authenticates
// bearer tokens, calls the engine and the collaborators, and collapses typed
// outcomes to {"ok": false} or empty lists.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialgraph/backend/internal/collab"
	"socialgraph/backend/internal/social"
)

const identityKey = "identity"

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	Notify(ctx context.Context, note collab.Notification) bool
}

// Deps are the handler dependencies. Auth and Notifier may be nil: requests
// are then anonymous and notifications are dropped.
type Deps struct {
	Engine   *social.Engine
	Auth     collab.Authenticator
	Notifier Notifier
	Searcher collab.Searcher
	Logger   *zap.Logger
}

// Handler serves the social API.
type Handler struct {
	engine   *social.Engine
	auth     collab.Authenticator
	notifier Notifier
	searcher collab.Searcher
	logger   *zap.Logger
}

// NewHandler creates a handler from deps.
func NewHandler(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		engine:   deps.Engine,
		auth:     deps.Auth,
		notifier: deps.Notifier,
		searcher: deps.Searcher,
		logger:   log,
	}
}

// Register mounts every route under r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.Use(h.authenticate)

	// Feeds and rankings
	api.GET("/feed", h.getFeed)
	api.GET("/posts/top", h.getTopPosts)
	api.GET("/search", h.search)
	api.GET("/hashtags/popular", h.getMostPinnedHashtags)
	api.GET("/hashtags/:hashtag/posts", h.getHashtagPosts)
	api.GET("/profiles/popular", h.getMostFollowed)

	// Entities
	api.GET("/profiles/:username", h.getProfile)
	api.GET("/profiles/:username/posts", h.getUserPosts)
	api.GET("/profiles/:username/followers", h.getFollowers)
	api.GET("/profiles/:username/following", h.getFollowing)
	api.GET("/posts/:postId", h.getPost)
	api.GET("/posts/:postId/comments", h.getComments)
	api.GET("/posts/:postId/similar", h.getSimilarPosts)
	api.GET("/comments/:commentId", h.getComment)

	me := api.Group("", h.requireUser)
	{
		me.POST("/profiles", h.createProfile)
		me.PATCH("/me", h.editProfile)
		me.PUT("/me/private", h.setPrivate)
		me.DELETE("/me", h.deleteProfile)
		me.GET("/me/recommended/posts", h.getRecommendedPosts)
		me.GET("/me/recommended/hashtags", h.getRecommendedHashtags)
		me.GET("/me/recommended/profiles", h.getRecommendedFriends)
		me.GET("/me/following/posts", h.getFollowingPosts)
		me.GET("/me/liked", h.getLikedPosts)
		me.GET("/me/history", h.getHistoryPosts)
		me.GET("/me/pinned", h.getPinnedHashtags)
		me.GET("/me/blocked", h.getBlockedUsers)
		me.GET("/me/follow-requests", h.getFollowRequests)
		me.GET("/me/relationship/:username", h.getRelationship)

		me.POST("/profiles/:username/follow", h.follow(true))
		me.DELETE("/profiles/:username/follow", h.follow(false))
		me.POST("/profiles/:username/block", h.block(true))
		me.DELETE("/profiles/:username/block", h.block(false))
		me.PUT("/profiles/:username/verified", h.setVerified)

		me.POST("/posts", h.createPost)
		me.DELETE("/posts/:postId", h.deletePost)
		me.POST("/posts/:postId/like", h.likePost(true))
		me.DELETE("/posts/:postId/like", h.likePost(false))
		me.GET("/posts/:postId/like", h.didLikePost)
		me.POST("/posts/:postId/comments", h.createComment)

		me.DELETE("/comments/:commentId", h.deleteComment)
		me.POST("/comments/:commentId/like", h.likeComment(true))
		me.DELETE("/comments/:commentId/like", h.likeComment(false))
		me.POST("/comments/:commentId/save", h.saveComment(true))
		me.DELETE("/comments/:commentId/save", h.saveComment(false))

		me.POST("/hashtags/:hashtag/pin", h.pinHashtag(true))
		me.DELETE("/hashtags/:hashtag/pin", h.pinHashtag(false))
	}
}

// authenticate attaches the caller's identity when a valid bearer token is
// present. Invalid or missing tokens leave the request anonymous.
func (h *Handler) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if h.auth == nil || header == "" {
		c.Next()
		return
	}
	id, err := h.auth.Authenticate(c.Request.Context(), header)
	if err != nil {
		h.logger.Debug("Rejected bearer token", zap.Error(err))
		c.Next()
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func (h *Handler) requireUser(c *gin.Context) {
	if viewerName(c) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}
	c.Next()
}

func identity(c *gin.Context) *collab.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*collab.Identity)
	return id
}

// viewerName is the signed-in username, or "" for anonymous requests.
func viewerName(c *gin.Context) string {
	if id := identity(c); id != nil {
		return id.Username
	}
	return ""
}

// Logger logs every request through log.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// CORS allows browser clients from any origin.
func CORS() gin.HandlerFunc {
	allowHeaders := strings.Join([]string{
		"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token",
		"Authorization", "accept", "origin", "Cache-Control", "X-Requested-With",
	}, ", ")
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
