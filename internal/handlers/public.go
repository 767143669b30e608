package handlers

import (
	"context"
	"net/http"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/dispatch"
	"github.com/gin-gonic/gin"
)

// NewLeadHandler nimmt Anfragen aus dem Kontaktformular entgegen.
func NewLeadHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in data.LeadInput
		if err := c.ShouldBindJSON(&in); err != nil {
			bindError(c, err)
			return
		}

		r, err := svc.CreateRequest(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Anfrage eingegangen", "id": r.ID})
	}
}

func NewMasterApplyHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in data.MasterApplication
		if err := c.ShouldBindJSON(&in); err != nil {
			bindError(c, err)
			return
		}

		m, err := svc.ApplyMaster(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Bewerbung eingegangen", "id": m.ID})
	}
}

func NewHealthHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := svc.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
