package users

import (
	"github.com/gin-gonic/gin"

	"github.com/campus-dues/backend/internal/middleware"
	"github.com/campus-dues/backend/pkg/response"
)

// Handler handles user HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a users handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Get handles GET /api/users/me.
func (h *Handler) Get(c *gin.Context) {
	who, ok := middleware.IdentityFrom(c)
	if !ok || who.UID == "" {
		response.Unauthorized(c, "sign in to see your profile")
		return
	}
	u, err := h.repo.GetByUID(c.Request.Context(), who.UID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// Me handles POST /api/users/me. Records the caller's identity.
func (h *Handler) Me(c *gin.Context) {
	who, _ := middleware.IdentityFrom(c)
	u, err := h.repo.Touch(c.Request.Context(), who)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}
