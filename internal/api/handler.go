package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"machine-fleet-backend/internal/advisor"
	"machine-fleet-backend/internal/draft"
	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/mw"
	"machine-fleet-backend/internal/session"
	"machine-fleet-backend/internal/store"
)

// Advisor proposes changes to a machine draft.
type Advisor interface {
	Enabled() bool
	Suggest(ctx context.Context, m *model.Machine, prompt string) (*advisor.Suggestion, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	drafts   *draft.Registry
	advisor  Advisor
	sessions session.Provider
	webpush  *webpush.Options
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, drafts *draft.Registry, adv Advisor, sessions session.Provider, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		drafts:   drafts,
		advisor:  adv,
		sessions: sessions,
		webpush:  webpushOptions,
		now:      time.Now,
	}
}

// ownerID is the id of the signed-in user.
func ownerID(c *gin.Context) string {
	if s := mw.CurrentSession(c); s != nil {
		return s.User.ID
	}
	return ""
}

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var verr *draft.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, draft.ErrSessionNotFound),
		errors.Is(err, draft.ErrComponentNotFound),
		errors.Is(err, draft.ErrNoSchedule):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, draft.ErrBusy),
		errors.Is(err, draft.ErrNotEditing),
		errors.Is(err, draft.ErrDuplicateComponent),
		errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, advisor.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, advisor.ErrUpstream):
		log.Printf("Advisor error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "the assistant could not produce a suggestion, please try again"})
	default:
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "drafts": h.drafts.Count()})
}
