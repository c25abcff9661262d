package officers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/pkg/response"
)

// Handler handles officer profile HTTP endpoints.
type Handler struct {
	registry *Registry
}

// NewHandler creates an officer profile handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// UpsertRequest is the body for POST /api/officer-profiles.
type UpsertRequest struct {
	Org     string         `json:"org"`
	OrgID   string         `json:"orgId"`
	Profile map[string]any `json:"profile"`
}

// List handles GET /api/officer-profiles?orgId=&org=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.registry.List(c.Request.Context(), strings.TrimSpace(c.Query("orgId")), c.Query("org"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Upsert handles POST /api/officer-profiles.
func (h *Handler) Upsert(c *gin.Context) {
	var body UpsertRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	p, err := h.registry.Upsert(c.Request.Context(),
		organizations.Ref{ID: strings.TrimSpace(body.OrgID), Name: body.Org}, body.Profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}
