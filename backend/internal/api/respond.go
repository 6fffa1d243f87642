package api

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialgraph/backend/internal/collab"
	"socialgraph/backend/internal/social"
	apperrors "socialgraph/backend/pkg/errors"
)

var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9]+)`)

type pageQuery struct {
	Num  int `form:"page"`
	Size int `form:"size"`
}

// page reads ?page and ?size; malformed values fall back to the first page
// of the default size.
func page(c *gin.Context) social.Page {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return social.Page{}
	}
	return social.Page{Num: q.Num, Size: q.Size}
}

func statusOf(outcome apperrors.Result) int {
	switch outcome {
	case apperrors.ResultOk:
		return http.StatusOK
	case apperrors.ResultNotFound:
		return http.StatusNotFound
	case apperrors.ResultForbidden:
		return http.StatusForbidden
	case apperrors.ResultInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondOK writes {"ok": bool} and reports whether err was nil.
func (h *Handler) respondOK(c *gin.Context, op string, err error) bool {
	outcome := apperrors.Outcome(err)
	if err != nil {
		h.logFailure(op, outcome, err)
	}
	c.JSON(statusOf(outcome), gin.H{"ok": err == nil})
	return err == nil
}

// respondItem writes v, or {"ok": false} when err is set.
func (h *Handler) respondItem(c *gin.Context, op string, v any, err error) {
	if err != nil {
		outcome := apperrors.Outcome(err)
		h.logFailure(op, outcome, err)
		c.JSON(statusOf(outcome), gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, v)
}

// respondList always writes a JSON array. Failed reads are empty lists.
func respondList[T any](h *Handler, c *gin.Context, op string, items []T, err error) {
	if err != nil {
		h.logFailure(op, apperrors.Outcome(err), err)
		items = nil
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) logFailure(op string, outcome apperrors.Result, err error) {
	if outcome == apperrors.ResultStoreError {
		h.logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
		return
	}
	h.logger.Debug("Request rejected",
		zap.String("operation", op),
		zap.String("outcome", string(outcome)),
		zap.Error(err))
}

func (h *Handler) notify(c *gin.Context, note collab.Notification) {
	if h.notifier == nil || note.Username == "" || note.Username == viewerName(c) {
		return
	}
	h.notifier.Notify(c.Request.Context(), note)
}

// mentions returns the distinct @usernames in text, in order of appearance.
func mentions(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
