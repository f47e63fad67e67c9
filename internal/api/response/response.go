// Package response writes the JSON envelopes shared by every handler:
// {success: true, ...} on success and {error: string} otherwise.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

// OK writes a 2xx success envelope merged with fields.
func OK(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client-facing text for err. Backend detail stays in the logs.
func Message(err error) string {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		ce *domain.ConflictError
		te *domain.TransitionError
		se *domain.StoreError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &ce):
		return ce.Error()
	case errors.As(err, &te):
		return te.Error()
	case errors.As(err, &se):
		if se.StatusCode != 0 {
			return fmt.Sprintf("object store request failed with status %d", se.StatusCode)
		}
		return "object store request failed"
	default:
		return "internal server error"
	}
}

// Error logs err with its backend detail and writes the error envelope.
func Error(c *gin.Context, err error) {
	status := StatusFor(err)

	var event *zerolog.Event
	if status >= http.StatusInternalServerError {
		event = log.Error().Stack()
	} else {
		event = log.Warn()
	}
	event = event.Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", status)

	var se *domain.StoreError
	if errors.As(err, &se) {
		event = event.
			Int("store_status", se.StatusCode).
			Str("bucket", se.Bucket).
			Str("object_path", se.Path)
	}
	if id := c.GetString("request_id"); id != "" {
		event = event.Str("request_id", id)
	}
	event.Msg("request failed")

	c.AbortWithStatusJSON(status, gin.H{"error": Message(err)})
}

// Abort writes an error envelope for failures raised by the HTTP layer itself.
func Abort(c *gin.Context, status int, message string) {
	log.Warn().Str("path", c.Request.URL.Path).Int("status", status).Msg(message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
