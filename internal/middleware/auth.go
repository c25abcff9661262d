package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campus-dues/backend/internal/auth"
	"github.com/campus-dues/backend/pkg/response"
)

const (
	// ContextIdentity is the key for the verified auth.Identity in gin context.
	ContextIdentity = "identity"
	// ContextOfficer is the key for the caller's officer capability.
	ContextOfficer = "officer"
	// ContextAuthDisabled is set when no verifier is configured.
	ContextAuthDisabled = "auth_disabled"
)

// Authenticate verifies an optional bearer token and stores the identity in
// context. A missing header is allowed here; RequireAuth enforces presence.
// A malformed or invalid token is rejected with 401.
//
// With a nil verifier no authentication is enforced: every caller passes
// RequireAuth and RequireOfficer. This is a development posture and is
// logged once at construction.
func Authenticate(verifier auth.Verifier, officerRole string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if verifier == nil {
		logger.Warn("no token verifier configured; authentication is NOT enforced")
		return func(c *gin.Context) {
			c.Set(ContextAuthDisabled, true)
			c.Set(ContextOfficer, true)
			c.Next()
		}
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		id, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextIdentity, id)
		c.Set(ContextOfficer, officerRole != "" && id.Role == officerRole)
		c.Next()
	}
}

// RequireAuth rejects requests without a verified identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authDisabled(c) {
			c.Next()
			return
		}
		if _, ok := IdentityFrom(c); !ok {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOfficer allows only callers holding the officer capability.
func RequireOfficer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authDisabled(c) {
			c.Next()
			return
		}
		if _, ok := IdentityFrom(c); !ok {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		if !IsOfficer(c) {
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the verified caller, if any.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// IsOfficer reports whether the caller holds the officer capability.
func IsOfficer(c *gin.Context) bool {
	return c.GetBool(ContextOfficer)
}

func authDisabled(c *gin.Context) bool {
	return c.GetBool(ContextAuthDisabled)
}
