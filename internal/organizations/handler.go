package organizations

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/pkg/apperr"
	"github.com/campus-dues/backend/pkg/response"
)

// Handler handles organization HTTP endpoints.
type Handler struct {
	registry *Registry
}

// NewHandler creates an organizations handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// CreateOrganizationRequest is the body for POST /api/orgs.
type CreateOrganizationRequest struct {
	Name         string         `json:"name"`
	DisplayName  string         `json:"displayName"`
	LogoURL      string         `json:"logoUrl"`
	ContactEmail string         `json:"contactEmail"`
	Metadata     map[string]any `json:"metadata"`
}

// List handles GET /api/orgs. With ?name= it returns the matching
// organization, or an empty list, under canonical-name comparison.
func (h *Handler) List(c *gin.Context) {
	if name := strings.TrimSpace(c.Query("name")); name != "" {
		org, err := h.registry.FindByName(c.Request.Context(), name)
		if errors.Is(err, apperr.ErrNotFound) {
			response.OK(c, []models.Organization{})
			return
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, []models.Organization{org})
		return
	}
	orgs, err := h.registry.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, orgs)
}

// Create handles POST /api/orgs. Posting an existing name returns the
// existing organization with any missing attributes filled in.
func (h *Handler) Create(c *gin.Context) {
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) > 255 {
		response.BadRequest(c, "name must be at most 255 characters")
		return
	}
	org, err := h.registry.UpsertByName(c.Request.Context(), body.Name, Attrs{
		DisplayName:  strings.TrimSpace(body.DisplayName),
		LogoURL:      strings.TrimSpace(body.LogoURL),
		ContactEmail: strings.TrimSpace(body.ContactEmail),
		Metadata:     body.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, org)
}

// Get handles GET /api/orgs/:id.
func (h *Handler) Get(c *gin.Context) {
	org, err := h.registry.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, org)
}

// Delete handles DELETE /api/orgs/:id.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"ok": true, "id": id})
}
