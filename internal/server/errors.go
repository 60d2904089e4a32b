package server

import (
	"errors"
	"net/http"

	"github.com/emrgen/knowledge/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// writeError maps service errors to HTTP statuses. Unknown errors are logged and hidden.
func writeError(c *gin.Context, err error) {
	var valErr *service.ValidationError
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOrganizationNotFound),
		errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, service.ErrEntryNotFound),
		errors.Is(err, service.ErrBackupNotFound),
		errors.Is(err, service.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrVersionMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logrus.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
