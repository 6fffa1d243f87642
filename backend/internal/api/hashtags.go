package api

import "github.com/gin-gonic/gin"

func (h *Handler) getMostPinnedHashtags(c *gin.Context) {
	hashtags, err := h.engine.GetMostPinnedHashtags(c.Request.Context(), page(c))
	respondList(h, c, "get_most_pinned_hashtags", hashtags, err)
}

func (h *Handler) getRecommendedHashtags(c *gin.Context) {
	hashtags, err := h.engine.RecommendHashtags(c.Request.Context(), viewerName(c), page(c))
	respondList(h, c, "recommend_hashtags", hashtags, err)
}

func (h *Handler) getPinnedHashtags(c *gin.Context) {
	hashtags, err := h.engine.GetPinnedHashtags(c.Request.Context(), viewerName(c))
	respondList(h, c, "get_pinned_hashtags", hashtags, err)
}

func (h *Handler) pinHashtag(add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respondOK(c, "pin_hashtag", h.engine.PinHashtag(c.Request.Context(), viewerName(c), c.Param("hashtag"), add))
	}
}
