package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"machine-fleet-backend/internal/draft"
	"machine-fleet-backend/internal/maintenance"
	"machine-fleet-backend/internal/metrics"
	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/parse"
	"machine-fleet-backend/internal/store"
)

// machineView is a machine as listed on the dashboard.
type machineView struct {
	*model.Machine
	MaintenanceStatus *maintenance.Status `json:"maintenanceStatus"`
}

type machineDetail struct {
	machineView
	Metrics metrics.Report `json:"metrics"`
}

func (h *Handler) viewOf(m *model.Machine) machineView {
	return machineView{Machine: m, MaintenanceStatus: maintenance.Resolve(m.MaintenanceSchedule, h.now().UTC())}
}

// loadOwnedMachine fetches a machine and hides machines of other users.
func (h *Handler) loadOwnedMachine(c *gin.Context) (*model.Machine, bool) {
	m, err := h.store.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if m.OwnerID != ownerID(c) {
		writeError(c, fmt.Errorf("%w: machine %s", store.ErrNotFound, c.Param("id")))
		return nil, false
	}
	return m, true
}

// ListMachines handles GET /api/machines.
func (h *Handler) ListMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context(), ownerID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]machineView, len(machines))
	for i := range machines {
		views[i] = h.viewOf(&machines[i])
	}
	c.JSON(http.StatusOK, gin.H{"machines": views})
}

// GetMachine handles GET /api/machines/:id.
func (h *Handler) GetMachine(c *gin.Context) {
	m, ok := h.loadOwnedMachine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, machineDetail{machineView: h.viewOf(m), Metrics: metrics.Compute(m)})
}

type scheduleRequest struct {
	Frequency model.Frequency         `json:"frequency"`
	NextDue   parse.FlexTime          `json:"nextDue"`
	Tasks     []model.MaintenanceTask `json:"tasks"`
}

type createMachineRequest struct {
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	Type                model.MachineType   `json:"type"`
	Status              model.MachineStatus `json:"status"`
	Components          []model.Component   `json:"components"`
	ComponentIDs        []string            `json:"componentIds"`
	MaintenanceSchedule *scheduleRequest    `json:"maintenanceSchedule"`
}

// CreateMachine handles POST /api/machines. The request runs through a
// creation editor so it gets the same validation as the create dialog.
func (h *Handler) CreateMachine(c *gin.Context) {
	var req createMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	owner := ownerID(c)

	if req.Status == "" {
		req.Status = model.MachineStatusActive
	}
	fields := draft.Fields{Name: &req.Name, Description: &req.Description, Status: &req.Status}
	if req.Type != "" {
		fields.Type = &req.Type
	}
	editor := draft.NewCreateEditor(&model.Machine{ID: uuid.NewString(), OwnerID: owner}, h.store)
	if err := editor.Update(fields); err != nil {
		writeError(c, err)
		return
	}

	components := make([]model.Component, 0, len(req.Components)+len(req.ComponentIDs))
	for _, comp := range req.Components {
		components = append(components, draft.NewComponent(comp, owner))
	}
	for _, id := range req.ComponentIDs {
		comp, err := h.store.GetComponent(c.Request.Context(), id)
		if err != nil || comp.OwnerID != owner {
			writeError(c, fmt.Errorf("%w: component %s", store.ErrNotFound, id))
			return
		}
		components = append(components, *comp)
	}
	for _, comp := range components {
		if err := editor.AddComponent(comp); err != nil {
			writeError(c, err)
			return
		}
	}

	if sr := req.MaintenanceSchedule; sr != nil {
		if err := applySchedule(editor, sr); err != nil {
			writeError(c, err)
			return
		}
	}

	saved, err := editor.Save(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, machineDetail{machineView: h.viewOf(saved), Metrics: metrics.Compute(saved)})
}

func applySchedule(editor *draft.Editor, sr *scheduleRequest) error {
	frequency := sr.Frequency
	if frequency == "" {
		frequency = model.FrequencyMonthly
	}
	if err := editor.SetSchedule(frequency, sr.NextDue.Ptr()); err != nil {
		return err
	}
	for _, t := range sr.Tasks {
		if err := editor.AddTask(t); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMachine handles DELETE /api/machines/:id.
func (h *Handler) DeleteMachine(c *gin.Context) {
	m, ok := h.loadOwnedMachine(c)
	if !ok {
		return
	}
	if err := h.store.DeleteMachine(c.Request.Context(), m.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMachineMetrics handles GET /api/machines/:id/metrics.
func (h *Handler) GetMachineMetrics(c *gin.Context) {
	m, ok := h.loadOwnedMachine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, metrics.Compute(m))
}

// GetMachineMaintenance handles GET /api/machines/:id/maintenance. The
// status is null for a machine without a schedule.
func (h *Handler) GetMachineMaintenance(c *gin.Context) {
	m, ok := h.loadOwnedMachine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schedule": m.MaintenanceSchedule,
		"status":   maintenance.Resolve(m.MaintenanceSchedule, h.now().UTC()),
	})
}

type previewRequest struct {
	Components          []model.Component          `json:"components"`
	MaintenanceSchedule *model.MaintenanceSchedule `json:"maintenanceSchedule"`
}

// PreviewMetrics handles POST /api/metrics/preview, computing metrics for
// an unsaved component list.
func (h *Handler) PreviewMetrics(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	c.JSON(http.StatusOK, metrics.Compute(&model.Machine{
		Components:          req.Components,
		MaintenanceSchedule: req.MaintenanceSchedule,
	}))
}
