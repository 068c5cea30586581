package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library-server/internal/domain"
)

const internalErrorDetail = "Internal server error"

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindRejected:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"detail": ...}. Internal errors are attached to
// the gin context for the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		_ = c.Error(err)
	}
	status := statusFor(kind)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": domain.Message(err, internalErrorDetail)})
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}
