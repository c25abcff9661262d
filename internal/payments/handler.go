package payments

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-dues/backend/internal/middleware"
	"github.com/campus-dues/backend/pkg/apperr"
	"github.com/campus-dues/backend/pkg/response"
	"github.com/campus-dues/backend/pkg/storage"
)

// Handler handles payment HTTP endpoints.
type Handler struct {
	svc       *Service
	maxUpload int64
}

// NewHandler creates a payments handler. maxUpload bounds the proof size.
func NewHandler(svc *Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = storage.DefaultMaxUploadSize
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// RejectRequest is the optional body for POST /api/payments/:id/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

var listParams = []string{"eventId", "orgId", "year", "block"}

// List handles GET /api/payments (officers). Without any filter parameter the plain
// array of all payments is returned; otherwise the ListResult shape.
func (h *Handler) List(c *gin.Context) {
	values := c.Request.URL.Query()
	filtered := false
	for _, k := range listParams {
		if _, ok := values[k]; ok {
			filtered = true
			break
		}
	}
	if !filtered {
		list, err := h.svc.All(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, list)
		return
	}
	res, err := h.svc.List(c.Request.Context(), Query{
		Scope:  scopeFrom(c),
		Years:  splitValues(values["year"]),
		Blocks: splitValues(values["block"]),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Stats handles GET /api/payments/stats?eventId=&orgId= (officers).
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context(), scopeFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st)
}

// Mine handles GET /api/payments/mine.
func (h *Handler) Mine(c *gin.Context) {
	who, _ := middleware.IdentityFrom(c)
	list, err := h.svc.Mine(c.Request.Context(), who)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Submit handles POST /api/payments (multipart). The proof image is the
// optional "proof" file.
func (h *Handler) Submit(c *gin.Context) {
	amount, err := ParseAmount(c.PostForm("amount"))
	if err != nil {
		response.Error(c, err)
		return
	}
	in := SubmitInput{
		Name:      c.PostForm("name"),
		Amount:    amount,
		Purpose:   c.PostForm("purpose"),
		OrgID:     c.PostForm("orgId"),
		Org:       c.PostForm("org"),
		EventID:   c.PostForm("eventId"),
		Event:     c.PostForm("event"),
		Reference: c.PostForm("reference"),
		Notes:     c.PostForm("notes"),
		Student: Student{
			Name:       c.PostForm("studentName"),
			Year:       c.PostForm("studentYear"),
			College:    c.PostForm("studentCollege"),
			Department: c.PostForm("studentDepartment"),
			Program:    c.PostForm("studentProgram"),
			Block:      c.PostForm("studentBlock"),
		},
	}
	proof, err := h.readProof(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	who, _ := middleware.IdentityFrom(c)
	p, err := h.svc.Submit(c.Request.Context(), in, who, proof)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// Approve handles POST /api/payments/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	p, err := h.svc.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Unapprove handles POST /api/payments/:id/unapprove.
func (h *Handler) Unapprove(c *gin.Context) {
	p, err := h.svc.Unapprove(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Reject handles POST /api/payments/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	var body RejectRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request body")
		return
	}
	p, err := h.svc.Reject(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// ProofURL handles GET /api/payments/:id/proof-url.
func (h *Handler) ProofURL(c *gin.Context) {
	who, _ := middleware.IdentityFrom(c)
	u, err := h.svc.ProofURL(c.Request.Context(), c.Param("id"), who, middleware.IsOfficer(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// Proof handles GET /api/payments/:id/proof, streaming the image to the
// submitter or an officer.
func (h *Handler) Proof(c *gin.Context) {
	who, _ := middleware.IdentityFrom(c)
	body, contentType, err := h.svc.OpenProof(c.Request.Context(), c.Param("id"), who, middleware.IsOfficer(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{"Cache-Control": "private, no-store"})
}

func (h *Handler) readProof(c *gin.Context) (*storage.Upload, error) {
	fh, err := c.FormFile("proof")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperr.Validation("invalid form data")
	}
	return storage.ReadUpload(fh, h.maxUpload)
}

func scopeFrom(c *gin.Context) Scope {
	return Scope{
		EventID: strings.TrimSpace(c.Query("eventId")),
		OrgID:   strings.TrimSpace(c.Query("orgId")),
	}
}

// splitValues accepts repeated parameters and comma-separated lists.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
