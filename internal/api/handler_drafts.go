package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"machine-fleet-backend/internal/draft"
	"machine-fleet-backend/internal/maintenance"
	"machine-fleet-backend/internal/metrics"
	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/parse"
)

// draftView is what every draft endpoint returns: the editor snapshot with
// metrics and maintenance status recomputed from the displayed record.
type draftView struct {
	ID        string `json:"id"`
	MachineID string `json:"machineId"`
	draft.Snapshot
	Metrics           metrics.Report      `json:"metrics"`
	MaintenanceStatus *maintenance.Status `json:"maintenanceStatus"`
	CycleClosed       bool                `json:"cycleClosed,omitempty"`
	Message           string              `json:"message,omitempty"`
}

func (h *Handler) draftViewOf(s *draft.Session) draftView {
	snap := s.Editor.Snapshot()
	return draftView{
		ID:                s.ID,
		MachineID:         s.MachineID,
		Snapshot:          snap,
		Metrics:           metrics.Compute(snap.Machine),
		MaintenanceStatus: maintenance.Resolve(snap.Machine.MaintenanceSchedule, h.now().UTC()),
	}
}

// draftSession resolves :draft_id for the signed-in user.
func (h *Handler) draftSession(c *gin.Context) (*draft.Session, bool) {
	s, err := h.drafts.Get(ownerID(c), c.Param("draft_id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

// mutateDraft runs fn and answers with the refreshed draft.
func (h *Handler) mutateDraft(c *gin.Context, fn func(e *draft.Editor) error) {
	s, ok := h.draftSession(c)
	if !ok {
		return
	}
	if err := fn(s.Editor); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.draftViewOf(s))
}

// OpenDraft handles POST /api/machines/:id/drafts.
func (h *Handler) OpenDraft(c *gin.Context) {
	s, err := h.drafts.Open(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.draftViewOf(s))
}

// OpenCreateDraft handles POST /api/drafts, starting a creation session
// from an optional template body.
func (h *Handler) OpenCreateDraft(c *gin.Context) {
	var template model.Machine
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&template); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	template.ID = ""
	for i, comp := range template.Components {
		template.Components[i] = draft.NewComponent(comp, ownerID(c))
	}
	if template.Status == "" {
		template.Status = model.MachineStatusActive
	}
	s := h.drafts.OpenNew(ownerID(c), &template)
	c.JSON(http.StatusCreated, h.draftViewOf(s))
}

// GetDraft handles GET /api/drafts/:draft_id.
func (h *Handler) GetDraft(c *gin.Context) {
	s, ok := h.draftSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.draftViewOf(s))
}

// BeginEdit handles POST /api/drafts/:draft_id/edit.
func (h *Handler) BeginEdit(c *gin.Context) {
	h.mutateDraft(c, func(e *draft.Editor) error { return e.Begin() })
}

// UpdateDraft handles PATCH /api/drafts/:draft_id.
func (h *Handler) UpdateDraft(c *gin.Context) {
	var f draft.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.mutateDraft(c, func(e *draft.Editor) error { return e.Update(f) })
}

type addComponentRequest struct {
	ComponentID string           `json:"componentId"`
	Component   *model.Component `json:"component"`
}

// AddDraftComponent handles POST /api/drafts/:draft_id/components. It
// attaches either a library component by id or an inline new component.
func (h *Handler) AddDraftComponent(c *gin.Context) {
	var req addComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var comp model.Component
	switch {
	case req.ComponentID != "":
		stored, err := h.store.GetComponent(c.Request.Context(), req.ComponentID)
		if err != nil {
			writeError(c, err)
			return
		}
		if stored.OwnerID != ownerID(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "component not found"})
			return
		}
		comp = *stored
	case req.Component != nil:
		if strings.TrimSpace(req.Component.Name) == "" {
			writeError(c, &draft.ValidationError{Field: "name", Message: "component name is required"})
			return
		}
		comp = draft.NewComponent(*req.Component, ownerID(c))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "componentId or component is required"})
		return
	}

	h.mutateDraft(c, func(e *draft.Editor) error { return e.AddComponent(comp) })
}

// RemoveDraftComponent handles DELETE /api/drafts/:draft_id/components/:component_id.
func (h *Handler) RemoveDraftComponent(c *gin.Context) {
	id := c.Param("component_id")
	h.mutateDraft(c, func(e *draft.Editor) error { return e.RemoveComponent(id) })
}

// AddDraftTask handles POST /api/drafts/:draft_id/tasks.
func (h *Handler) AddDraftTask(c *gin.Context) {
	var task model.MaintenanceTask
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	task.ID = ""
	h.mutateDraft(c, func(e *draft.Editor) error { return e.AddTask(task) })
}

// ToggleDraftTask handles POST /api/drafts/:draft_id/tasks/:task_id/toggle.
func (h *Handler) ToggleDraftTask(c *gin.Context) {
	s, ok := h.draftSession(c)
	if !ok {
		return
	}
	closed, err := s.Editor.ToggleTask(c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	view := h.draftViewOf(s)
	view.CycleClosed = closed
	c.JSON(http.StatusOK, view)
}

type setScheduleRequest struct {
	Frequency model.Frequency `json:"frequency" binding:"required"`
	NextDue   parse.FlexTime  `json:"nextDue"`
}

// SetDraftSchedule handles PUT /api/drafts/:draft_id/schedule.
func (h *Handler) SetDraftSchedule(c *gin.Context) {
	var req setScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.mutateDraft(c, func(e *draft.Editor) error { return e.SetSchedule(req.Frequency, req.NextDue.Ptr()) })
}

type setFrequencyRequest struct {
	Frequency model.Frequency `json:"frequency" binding:"required"`
}

// SetDraftFrequency handles PUT /api/drafts/:draft_id/schedule/frequency.
func (h *Handler) SetDraftFrequency(c *gin.Context) {
	var req setFrequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.mutateDraft(c, func(e *draft.Editor) error { return e.SetFrequency(req.Frequency) })
}

// ApplyDraftPatch handles POST /api/drafts/:draft_id/patch.
func (h *Handler) ApplyDraftPatch(c *gin.Context) {
	var p draft.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.mutateDraft(c, func(e *draft.Editor) error { return e.ApplyPatch(p) })
}

type suggestRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// SuggestDraft handles POST /api/drafts/:draft_id/suggestions: it asks the
// assistant about the current record and merges any returned patch.
func (h *Handler) SuggestDraft(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	s, ok := h.draftSession(c)
	if !ok {
		return
	}
	if h.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisor is not configured"})
		return
	}

	suggestion, err := h.advisor.Suggest(c.Request.Context(), s.Editor.Current(), req.Prompt)
	if err != nil {
		writeError(c, err)
		return
	}
	if !suggestion.Patch.Empty() {
		if err := s.Editor.ApplyPatch(*suggestion.Patch); err != nil {
			writeError(c, err)
			return
		}
	}
	view := h.draftViewOf(s)
	view.Message = suggestion.Message
	c.JSON(http.StatusOK, view)
}

// SaveDraft handles POST /api/drafts/:draft_id/save.
func (h *Handler) SaveDraft(c *gin.Context) {
	s, ok := h.draftSession(c)
	if !ok {
		return
	}
	if _, err := s.Editor.Save(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.draftViewOf(s))
}

// CancelDraft handles POST /api/drafts/:draft_id/cancel.
func (h *Handler) CancelDraft(c *gin.Context) {
	h.mutateDraft(c, func(e *draft.Editor) error { return e.Cancel() })
}

// CloseDraft handles DELETE /api/drafts/:draft_id.
func (h *Handler) CloseDraft(c *gin.Context) {
	if err := h.drafts.Close(ownerID(c), c.Param("draft_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
