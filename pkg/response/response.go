package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pass-request-client/internal/models"
	appErrors "github.com/noah-isme/pass-request-client/pkg/errors"
)

// JSON sends a bare JSON body. The pass-request API does not wrap payloads.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, data)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends the Spring-style error envelope the client decodes.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	status := StatusOf(appErr)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, models.ErrorEnvelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   appErr.Message,
		Path:      c.Request.URL.Path,
	})
}

// StatusOf picks the HTTP status for err. Validation failures without an
// explicit status map to 400, anything else unknown to 500.
func StatusOf(err *appErrors.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if err.Status != 0 {
		return err.Status
	}
	if err.Code == appErrors.ErrValidation.Code {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Empty responds 200 with no body, as the API does for deletes.
func Empty(c *gin.Context) {
	c.Status(http.StatusOK)
}
