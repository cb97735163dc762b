package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"machine-fleet-backend/internal/draft"
	"machine-fleet-backend/internal/metrics"
	"machine-fleet-backend/internal/model"
	"machine-fleet-backend/internal/store"
)

type componentView struct {
	*model.Component
	RiskScore int    `json:"riskScore"`
	RiskLevel string `json:"riskLevel"`
}

func componentViewOf(comp *model.Component) componentView {
	score := metrics.ComponentRiskScore(*comp)
	return componentView{Component: comp, RiskScore: score, RiskLevel: metrics.RiskLevel(score)}
}

// ListComponents handles GET /api/components.
func (h *Handler) ListComponents(c *gin.Context) {
	components, err := h.store.ListComponents(c.Request.Context(), ownerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]componentView, len(components))
	for i := range components {
		views[i] = componentViewOf(&components[i])
	}
	c.JSON(http.StatusOK, gin.H{"components": views})
}

// GetComponent handles GET /api/components/:id.
func (h *Handler) GetComponent(c *gin.Context) {
	comp, err := h.store.GetComponent(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if comp.OwnerID != ownerID(c) {
		writeError(c, fmt.Errorf("%w: component %s", store.ErrNotFound, c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, componentViewOf(comp))
}

// CreateComponent handles POST /api/components, adding to the library.
func (h *Handler) CreateComponent(c *gin.Context) {
	var comp model.Component
	if err := c.ShouldBindJSON(&comp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(comp.Name) == "" {
		writeError(c, &draft.ValidationError{Field: "name", Message: "name is required"})
		return
	}
	if !comp.Category.Valid() {
		writeError(c, &draft.ValidationError{Field: "category", Message: fmt.Sprintf("unknown component category %q", comp.Category)})
		return
	}

	comp.ID = uuid.NewString()
	comp.OwnerID = ownerID(c)
	for i := range comp.RiskFactors {
		comp.RiskFactors[i].ID = ""
	}
	if err := h.store.SaveComponent(c.Request.Context(), &comp); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, componentViewOf(&comp))
}
