package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campus-dues/backend/internal/auth"
)

type stubVerifier map[string]auth.Identity

func (s stubVerifier) Verify(token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, errors.New("bad token")
	}
	return id, nil
}

func newRouter(v auth.Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(v, "officer", nil))
	r.GET("/open", func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"uid": id.UID, "officer": IsOfficer(c)})
	})
	r.GET("/me", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/review", RequireOfficer(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r := newRouter(stubVerifier{
		"student": {UID: "s-1", Role: "student"},
		"officer": {UID: "o-1", Role: "officer"},
	})

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"anonymous open route", "/open", "", http.StatusOK},
		{"invalid token", "/open", "nope", http.StatusUnauthorized},
		{"anonymous me", "/me", "", http.StatusUnauthorized},
		{"student me", "/me", "student", http.StatusNoContent},
		{"anonymous review", "/review", "", http.StatusUnauthorized},
		{"student review", "/review", "student", http.StatusForbidden},
		{"officer review", "/review", "officer", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	r := newRouter(stubVerifier{})
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateWithoutVerifierLetsEveryoneThrough(t *testing.T) {
	r := newRouter(nil)

	assert.Equal(t, http.StatusNoContent, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/review", "").Code)

	w := do(r, "/open", "whatever")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uid":"","officer":true}`, w.Body.String())
}
