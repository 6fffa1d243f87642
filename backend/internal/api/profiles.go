package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"socialgraph/backend/internal/collab"
	"socialgraph/backend/internal/social"
)

// adminAuthType marks identities allowed to verify profiles.
const adminAuthType = "admin"

type profileRequest struct {
	Name              string `json:"rname"`
	ProfilePicture    string `json:"profilePicture"`
	BackgroundPicture string `json:"backgroundPicture"`
	Accent            string `json:"accent"`
}

// createProfile creates the profile of the signed-in identity.
func (h *Handler) createProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}
	err := h.engine.CreateProfile(c.Request.Context(), social.ProfileInput{
		Username:          viewerName(c),
		Name:              req.Name,
		ProfilePicture:    req.ProfilePicture,
		BackgroundPicture: req.BackgroundPicture,
		Accent:            req.Accent,
	})
	h.respondOK(c, "create_profile", err)
}

func (h *Handler) editProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}
	h.respondOK(c, "edit_profile", h.engine.EditProfile(c.Request.Context(), viewerName(c), social.ProfileEdit{
		Name:              req.Name,
		ProfilePicture:    req.ProfilePicture,
		BackgroundPicture: req.BackgroundPicture,
		Accent:            req.Accent,
	}))
}

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

func (h *Handler) setPrivate(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}
	h.respondOK(c, "set_private", h.engine.SetPrivate(c.Request.Context(), viewerName(c), *req.Value))
}

func (h *Handler) setVerified(c *gin.Context) {
	if id := identity(c); id == nil || id.AuthType != adminAuthType {
		c.JSON(http.StatusForbidden, gin.H{"ok": false})
		return
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}
	h.respondOK(c, "set_verified", h.engine.SetVerified(c.Request.Context(), c.Param("username"), *req.Value))
}

func (h *Handler) deleteProfile(c *gin.Context) {
	h.respondOK(c, "delete_profile", h.engine.DeleteProfile(c.Request.Context(), viewerName(c)))
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.engine.GetProfile(c.Request.Context(), c.Param("username"), viewerName(c))
	h.respondItem(c, "get_profile", profile, err)
}

func (h *Handler) getFollowers(c *gin.Context) {
	authors, err := h.engine.GetFollowers(c.Request.Context(), c.Param("username"))
	respondList(h, c, "get_followers", authors, err)
}

func (h *Handler) getFollowing(c *gin.Context) {
	authors, err := h.engine.GetFollowing(c.Request.Context(), c.Param("username"))
	respondList(h, c, "get_following", authors, err)
}

func (h *Handler) getBlockedUsers(c *gin.Context) {
	authors, err := h.engine.GetBlockedUsers(c.Request.Context(), viewerName(c))
	respondList(h, c, "get_blocked_users", authors, err)
}

func (h *Handler) getFollowRequests(c *gin.Context) {
	authors, err := h.engine.GetFollowRequests(c.Request.Context(), viewerName(c))
	respondList(h, c, "get_follow_requests", authors, err)
}

func (h *Handler) getMostFollowed(c *gin.Context) {
	profiles, err := h.engine.GetMostFollowed(c.Request.Context(), viewerName(c), page(c))
	respondList(h, c, "get_most_followed", profiles, err)
}

func (h *Handler) getRecommendedFriends(c *gin.Context) {
	profiles, err := h.engine.RecommendFriends(c.Request.Context(), viewerName(c), page(c))
	respondList(h, c, "recommend_friends", profiles, err)
}

// getRelationship reports how the caller relates to another profile.
func (h *Handler) getRelationship(c *gin.Context) {
	ctx := c.Request.Context()
	username := viewerName(c)
	target := c.Param("username")
	following, err := h.engine.IsFollowing(ctx, username, target)
	if err != nil {
		h.respondItem(c, "is_following", nil, err)
		return
	}
	blocked, err := h.engine.IsBlocked(ctx, username, target)
	h.respondItem(c, "is_blocked", gin.H{"following": following, "blocked": blocked}, err)
}

func (h *Handler) follow(add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := viewerName(c)
		target := c.Param("username")
		if !h.respondOK(c, "follow", h.engine.Follow(c.Request.Context(), username, target, add)) || !add {
			return
		}
		h.notify(c, collab.Notification{
			Username: target,
			Message:  "@" + username + " started following you",
		})
	}
}

func (h *Handler) block(add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respondOK(c, "block", h.engine.Block(c.Request.Context(), viewerName(c), c.Param("username"), add))
	}
}
