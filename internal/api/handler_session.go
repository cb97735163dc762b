package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"machine-fleet-backend/internal/mw"
	"machine-fleet-backend/internal/session"
)

// GetSession handles GET /api/session and returns the signed-in user.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": mw.CurrentSession(c).User})
}

// SignOut handles DELETE /api/session. Listeners drop the user's open drafts.
func (h *Handler) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context(), ownerID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// WatchSessions drops a user's open drafts when their session ends.
func (h *Handler) WatchSessions() (unsubscribe func()) {
	return h.sessions.Subscribe(func(ev session.Event) {
		if ev.Type == session.EventSignedOut {
			h.drafts.DropOwner(ev.UserID)
		}
	})
}
