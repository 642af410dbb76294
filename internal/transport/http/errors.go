package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"go.uber.org/zap"
)

func statusOf(err error) int {
	if errors.Is(err, apperr.ErrBusy) {
		return http.StatusServiceUnavailable
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": code, "detail": message}. Untyped
// errors are logged and hidden from the client.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	status := statusOf(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		detail = "internal error"
	}
	c.JSON(status, gin.H{"error": apperr.CodeOf(err), "detail": detail})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": detail})
}
