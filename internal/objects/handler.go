// Package objects exposes stored blobs to officers by path.
package objects

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-dues/backend/pkg/response"
	"github.com/campus-dues/backend/pkg/storage"
)

// Handler handles object URL endpoints.
type Handler struct {
	blobs *storage.Blobs
	ttl   time.Duration
}

// NewHandler creates an objects handler. ttl is the lifetime of minted URLs.
func NewHandler(blobs *storage.Blobs, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = storage.DefaultURLTTL
	}
	return &Handler{blobs: blobs, ttl: ttl}
}

// SignedURL handles GET /api/storage/signed-url?path=&local=.
func (h *Handler) SignedURL(c *gin.Context) {
	p := strings.TrimPrefix(strings.TrimSpace(c.Query("path")), "/")
	if p == "" {
		response.BadRequest(c, "path is required")
		return
	}
	if strings.Contains(p, "..") {
		response.BadRequest(c, "invalid path")
		return
	}
	local, _ := strconv.ParseBool(c.Query("local"))
	u, err := h.blobs.ResolveURL(c.Request.Context(), storage.Object{Path: p, IsLocal: local}, h.ttl)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}
