package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campus-dues/backend/pkg/apperr"
)

func TestErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", apperr.Validation("amount is required"), http.StatusBadRequest, `{"error":"amount is required"}`},
		{"not found", apperr.NotFound("payment"), http.StatusNotFound, `{"error":"payment not found"}`},
		{"forbidden", apperr.Forbidden(), http.StatusForbidden, `{"error":"forbidden"}`},
		{"conflict", apperr.Conflict("payment is rejected"), http.StatusConflict, `{"error":"payment is rejected"}`},
		{"misconfigured", apperr.Misconfigured("no object storage configured"), http.StatusInternalServerError, `{"error":"no object storage configured"}`},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			Error(c, tt.err)
			assert.Equal(t, tt.code, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}
