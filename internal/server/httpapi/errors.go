package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

var statusByKind = map[common.Kind]int{
	common.KindBadRequest:      http.StatusBadRequest,
	common.KindUnauthorized:    http.StatusUnauthorized,
	common.KindForbidden:       http.StatusForbidden,
	common.KindNotFound:        http.StatusNotFound,
	common.KindConflict:        http.StatusConflict,
	common.KindTooLarge:        http.StatusRequestEntityTooLarge,
	common.KindTooManyRequests: http.StatusTooManyRequests,
	common.KindInternal:        http.StatusInternalServerError,
}

// statusFor maps err onto an HTTP status and the message that is safe to
// show the client.
func statusFor(err error) (int, string) {
	kind, sentinel := common.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return status, sentinel.Error()
}

// fail aborts the request with a JSON error body. Internal errors are logged
// with their cause, which never reaches the client.
func (s *Server) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		if ctxErr := c.Request.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			s.logger.Warn(c.Request.Context(), "request aborted", "path", c.Request.URL.Path, "error", err)
		} else {
			s.logger.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
