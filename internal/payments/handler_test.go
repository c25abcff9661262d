package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-dues/backend/internal/auth"
	"github.com/campus-dues/backend/internal/events"
	"github.com/campus-dues/backend/internal/middleware"
	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/storage"
)

type tokenVerifier map[string]auth.Identity

func (v tokenVerifier) Verify(token string) (auth.Identity, error) {
	id, ok := v[token]
	if !ok {
		return auth.Identity{}, errors.New("bad token")
	}
	return id, nil
}

var tokens = tokenVerifier{
	"ana":     student,
	"ben":     other,
	"officer": {UID: "off-1", Role: "officer"},
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	b := store.NewFileBackend(filepath.Join(dir, "db.json"), nil)
	blobs := storage.NewBlobs(nil, storage.NewLocalDisk(uploads, "/uploads"), nil, nil)
	orgs := organizations.NewRegistry(b, nil)
	svc := NewService(b, orgs, events.NewRegistry(b, orgs, blobs, nil), blobs, nil)
	h := NewHandler(svc, 0)

	local := storage.NewLocalDisk(uploads, "/uploads")
	r := gin.New()
	r.Static(local.FolderURL("qr"), local.FolderDir("qr"))
	api := r.Group("/api", middleware.Authenticate(tokens, "officer", nil))
	api.GET("/payments", middleware.RequireOfficer(), h.List)
	api.GET("/payments/stats", middleware.RequireOfficer(), h.Stats)
	api.GET("/payments/mine", middleware.RequireAuth(), h.Mine)
	api.POST("/payments", middleware.RequireAuth(), h.Submit)
	api.GET("/payments/:id/proof-url", middleware.RequireAuth(), h.ProofURL)
	api.GET("/payments/:id/proof", middleware.RequireAuth(), h.Proof)
	api.POST("/payments/:id/approve", middleware.RequireOfficer(), h.Approve)
	api.POST("/payments/:id/unapprove", middleware.RequireOfficer(), h.Unapprove)
	api.POST("/payments/:id/reject", middleware.RequireOfficer(), h.Reject)
	return r
}

func call(r http.Handler, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func submitRequest(t *testing.T, fields map[string]string, proof []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if proof != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="proof"; filename="gcash.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(proof)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/payments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func submit(t *testing.T, r http.Handler, token string, fields map[string]string, proof []byte) models.Payment {
	t.Helper()
	w := call(r, submitRequest(t, fields, proof), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestHandlerSubmitRequiresAuth(t *testing.T) {
	r := setupRouter(t)
	w := call(r, submitRequest(t, map[string]string{"name": "Fee", "amount": "500", "eventId": "E1"}, nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerSubmitValidation(t *testing.T) {
	r := setupRouter(t)

	for _, amount := range []string{"", "abc", "0", "-5", "Inf", "NaN", "1e400"} {
		w := call(r, submitRequest(t, map[string]string{"name": "Fee", "amount": amount, "eventId": "E1"}, nil), "ana")
		assert.Equal(t, http.StatusBadRequest, w.Code, "amount %q", amount)
	}
}

func TestHandlerListShapes(t *testing.T) {
	r := setupRouter(t)
	submit(t, r, "ana", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1", "orgId": "O1", "studentYear": "2nd Year"}, nil)
	submit(t, r, "ben", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1", "orgId": "O1", "studentYear": "3rd Year"}, nil)
	submit(t, r, "ben", map[string]string{"name": "Fee", "amount": "200", "eventId": "E2", "orgId": "O1"}, nil)

	w := call(r, httptest.NewRequest(http.MethodGet, "/api/payments", nil), "officer")
	require.Equal(t, http.StatusOK, w.Code)
	var plain []models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plain), "unfiltered list is a plain array")
	assert.Len(t, plain, 3)

	w = call(r, httptest.NewRequest(http.MethodGet, "/api/payments?eventId=E1&year=2nd+Year", nil), "officer")
	require.Equal(t, http.StatusOK, w.Code)
	var res ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Payments, 1)
	assert.Equal(t, 2, res.Totals.TotalCount)
	assert.Equal(t, 1000.0, res.Totals.TotalAmount)
	assert.Equal(t, []string{"2nd Year", "3rd Year"}, res.AvailableFilters.Years)
	assert.Equal(t, []string{}, res.AvailableFilters.Blocks)

	w = call(r, httptest.NewRequest(http.MethodGet, "/api/payments/stats?orgId=O1", nil), "officer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"paidCount":2,"approvedCount":0,"totalReceived":0}`, w.Body.String())
}

func TestHandlerListingIsOfficerOnly(t *testing.T) {
	r := setupRouter(t)
	submit(t, r, "ana", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1"}, proofPNG)

	for _, path := range []string{"/api/payments", "/api/payments?eventId=E1", "/api/payments/stats"} {
		w := call(r, httptest.NewRequest(http.MethodGet, path, nil), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.NotContains(t, w.Body.String(), "ana@campus.edu")

		w = call(r, httptest.NewRequest(http.MethodGet, path, nil), "ben")
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.NotContains(t, w.Body.String(), "ana@campus.edu")
	}
}

func TestHandlerProofURLAndStream(t *testing.T) {
	r := setupRouter(t)
	p := submit(t, r, "ana", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1"}, proofPNG)

	w := call(r, httptest.NewRequest(http.MethodGet, "/api/payments/"+p.ID+"/proof-url", nil), "ben")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), p.ProofObjectPath)

	w = call(r, httptest.NewRequest(http.MethodGet, "/api/payments/"+p.ID+"/proof-url", nil), "ana")
	require.Equal(t, http.StatusOK, w.Code)
	var u storage.ResolvedURL
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.True(t, u.Local)
	assert.Equal(t, "/api/payments/"+p.ID+"/proof", u.URL)

	w = call(r, httptest.NewRequest(http.MethodGet, u.URL, nil), "ana")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, proofPNG, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = call(r, httptest.NewRequest(http.MethodGet, u.URL, nil), "officer")
	assert.Equal(t, http.StatusOK, w.Code)
	w = call(r, httptest.NewRequest(http.MethodGet, u.URL, nil), "ben")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(r, httptest.NewRequest(http.MethodGet, u.URL, nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The stored file is not reachable through the static upload route.
	w = call(r, httptest.NewRequest(http.MethodGet, "/uploads/"+p.ProofObjectPath, nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, httptest.NewRequest(http.MethodGet, "/api/payments/"+p.ID+"/proof-url", nil), "officer")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlerReviewRequiresOfficer(t *testing.T) {
	r := setupRouter(t)
	p := submit(t, r, "ana", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1"}, nil)
	path := "/api/payments/" + p.ID

	w := call(r, httptest.NewRequest(http.MethodPost, path+"/approve", nil), "ana")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, httptest.NewRequest(http.MethodPost, path+"/approve", nil), "officer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)

	w = call(r, httptest.NewRequest(http.MethodPost, path+"/reject", nil), "officer")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, httptest.NewRequest(http.MethodPost, path+"/unapprove", nil), "officer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
	assert.NotContains(t, w.Body.String(), "approvedAt")

	w = call(r, httptest.NewRequest(http.MethodPost, path+"/reject", strings.NewReader(`{"reason":"wrong amount"}`)), "officer")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rejectionReason":"wrong amount"`)

	w = call(r, httptest.NewRequest(http.MethodPost, path+"/approve", nil), "officer")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, httptest.NewRequest(http.MethodPost, "/api/payments/missing/approve", nil), "officer")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerRejectMalformedBody(t *testing.T) {
	r := setupRouter(t)
	p := submit(t, r, "ana", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1"}, nil)

	w := call(r, httptest.NewRequest(http.MethodPost, "/api/payments/"+p.ID+"/reject", strings.NewReader(`{`)), "officer")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerMine(t *testing.T) {
	r := setupRouter(t)
	submit(t, r, "ana", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1"}, nil)
	submit(t, r, "ben", map[string]string{"name": "Fee", "amount": "500", "eventId": "E1"}, nil)

	w := call(r, httptest.NewRequest(http.MethodGet, "/api/payments/mine", nil), "ben")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "stu-2", list[0].SubmittedByUID)
}
