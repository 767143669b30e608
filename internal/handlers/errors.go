package handlers

import (
	"errors"
	"net/http"

	"auftrag.chapter42.de/dispatch/internal/dispatch"
	"auftrag.chapter42.de/dispatch/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError übersetzt Fehler des Service in HTTP-Statuscodes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrConflict), errors.Is(err, dispatch.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Log.Error("Interner Fehler:", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Interner Fehler"})
	}
}

func bindError(c *gin.Context, err error) {
	logger.Log.Warn("Fehler beim Parsen der Anfrage:", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "Ungültige Eingabe: " + err.Error()})
}
