package events

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/pkg/apperr"
	"github.com/campus-dues/backend/pkg/response"
	"github.com/campus-dues/backend/pkg/storage"
)

// Handler handles event HTTP endpoints.
type Handler struct {
	registry  *Registry
	maxUpload int64
	qrTTL     time.Duration
}

// NewHandler creates an events handler. maxUpload bounds the QR image size.
func NewHandler(registry *Registry, maxUpload int64, qrTTL time.Duration) *Handler {
	if maxUpload <= 0 {
		maxUpload = storage.DefaultMaxUploadSize
	}
	if qrTTL <= 0 {
		qrTTL = storage.DefaultURLTTL
	}
	return &Handler{registry: registry, maxUpload: maxUpload, qrTTL: qrTTL}
}

var deadlineLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05"}

// ParseDeadline accepts RFC3339 or a plain date with optional time.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("invalid deadline format, use RFC3339 or YYYY-MM-DD")
}

// List handles GET /api/events?orgId=&org=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.registry.ListByOrg(c.Request.Context(), strings.TrimSpace(c.Query("orgId")), c.Query("org"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/events/:id.
func (h *Handler) Get(c *gin.Context) {
	ev, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ev)
}

// Create handles POST /api/events (multipart). The QR image is the
// optional "receiverQR" file.
func (h *Handler) Create(c *gin.Context) {
	in := CreateInput{
		Name:   c.PostForm("name"),
		Status: c.PostForm("status"),
		Org: organizations.Ref{
			ID:   strings.TrimSpace(c.PostForm("orgId")),
			Name: c.PostForm("org"),
		},
		Receiver: models.Receiver{
			Number:  strings.TrimSpace(c.PostForm("receiverNumber")),
			Name:    strings.TrimSpace(c.PostForm("receiverName")),
			QRImage: strings.TrimSpace(c.PostForm("receiverQRImage")),
		},
	}
	if v := strings.TrimSpace(c.PostForm("fee")); v != "" {
		fee, err := parseFee(v)
		if err != nil {
			response.Error(c, err)
			return
		}
		in.Fee = fee
	}
	if v := strings.TrimSpace(c.PostForm("deadline")); v != "" {
		d, err := ParseDeadline(v)
		if err != nil {
			response.Error(c, err)
			return
		}
		in.Deadline = &d
	}
	qr, err := h.readQR(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ev, err := h.registry.Create(c.Request.Context(), in, qr)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ev)
}

// parseFee accepts finite decimal numbers only.
func parseFee(v string) (float64, error) {
	fee, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, apperr.Validation("fee must be a number")
	}
	return fee, checkFee(fee)
}

// Update handles PUT /api/events/:id (multipart). Only fields present in
// the form are changed; an empty deadline clears it.
func (h *Handler) Update(c *gin.Context) {
	var p Patch
	if v, ok := c.GetPostForm("name"); ok {
		p.Name = &v
	}
	if v, ok := c.GetPostForm("fee"); ok {
		fee, err := parseFee(v)
		if err != nil {
			response.Error(c, err)
			return
		}
		p.Fee = &fee
	}
	if v, ok := c.GetPostForm("deadline"); ok {
		if strings.TrimSpace(v) == "" {
			p.ClearDeadline = true
		} else {
			d, err := ParseDeadline(v)
			if err != nil {
				response.Error(c, err)
				return
			}
			p.Deadline = &d
		}
	}
	if v, ok := c.GetPostForm("status"); ok {
		p.Status = &v
	}
	orgID, hasID := c.GetPostForm("orgId")
	orgName, hasName := c.GetPostForm("org")
	if hasID || hasName {
		p.Org = &organizations.Ref{ID: strings.TrimSpace(orgID), Name: orgName}
	}
	if v, ok := c.GetPostForm("receiverNumber"); ok {
		p.ReceiverNumber = &v
	}
	if v, ok := c.GetPostForm("receiverName"); ok {
		p.ReceiverName = &v
	}
	if v, ok := c.GetPostForm("receiverQRImage"); ok {
		p.ReceiverQRImage = &v
	}
	qr, err := h.readQR(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ev, err := h.registry.Update(c.Request.Context(), c.Param("id"), p, qr)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ev)
}

// Delete handles DELETE /api/events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"ok": true, "id": id})
}

// QRURL handles GET /api/events/:id/qr-url.
func (h *Handler) QRURL(c *gin.Context) {
	link, err := h.registry.QRURL(c.Request.Context(), c.Param("id"), h.qrTTL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

func (h *Handler) readQR(c *gin.Context) (*storage.Upload, error) {
	fh, err := c.FormFile("receiverQR")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperr.Validation("invalid form data")
	}
	return storage.ReadUpload(fh, h.maxUpload)
}
