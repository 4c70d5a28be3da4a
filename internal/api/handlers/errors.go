package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facetag/internal/apperr"
)

// abortWithError maps the service error taxonomy onto HTTP statuses. Unknown
// kinds become 500 without leaking wrapped detail.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.Unauthorized:
		status = http.StatusUnauthorized
	case apperr.Forbidden:
		status = http.StatusForbidden
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.Invalid:
		status = http.StatusBadRequest
	case apperr.Downstream:
		status = http.StatusBadGateway
	}

	var ae *apperr.Error
	msg := "internal server error"
	if errors.As(err, &ae) && status != http.StatusInternalServerError {
		msg = ae.Msg
	}
	c.JSON(status, gin.H{"error": msg})
}
