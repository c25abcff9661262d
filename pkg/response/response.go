package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-dues/backend/pkg/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// OK sends a 200 JSON response with data as the body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 JSON response with data as the body.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, ErrorBody{Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: err})
}

// Error maps an apperr category to its status code. Unknown errors become a
// generic 500 so driver messages never reach the client. The error is
// attached to the context for the request logger.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, apperr.ErrValidation):
		BadRequest(c, apperr.Message(err))
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, apperr.Message(err))
	case errors.Is(err, apperr.ErrForbidden):
		Forbidden(c, "forbidden")
	case errors.Is(err, apperr.ErrConflict):
		Conflict(c, apperr.Message(err))
	case errors.Is(err, apperr.ErrUnsupported):
		c.JSON(http.StatusNotImplemented, ErrorBody{Error: apperr.Message(err)})
	case errors.Is(err, apperr.ErrStorageMisconfigured):
		Internal(c, apperr.Message(err))
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		ServiceUnavailable(c, "storage backend unavailable")
	default:
		Internal(c, "internal error")
	}
}
