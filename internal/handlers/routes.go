package handlers

import (
	"auftrag.chapter42.de/dispatch/internal/dispatch"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router gin.IRouter, svc *dispatch.Service) {
	router.GET("/health", NewHealthHandler(svc))

	api := router.Group("/api")
	api.POST("/leads", NewLeadHandler(svc))
	api.POST("/masters/apply", NewMasterApplyHandler(svc))

	admin := api.Group("/admin")
	admin.GET("/requests", NewListRequestsHandler(svc))
	admin.GET("/requests/:id", NewGetRequestHandler(svc))
	admin.PATCH("/requests/:id/status", NewUpdateRequestStatusHandler(svc))
	admin.GET("/requests/:id/candidates", NewListCandidatesHandler(svc))
	admin.POST("/requests/:id/candidates", NewAddCandidateHandler(svc))
	admin.POST("/requests/:id/assign", NewAssignHandler(svc))
	admin.DELETE("/requests/:id/assign", NewUnassignHandler(svc))
	admin.PATCH("/candidates/:id/status", NewCandidateStatusHandler(svc))
	admin.GET("/masters", NewListMastersHandler(svc))
	admin.PATCH("/masters/:id/status", NewMasterStatusHandler(svc))
	admin.GET("/dashboard", NewDashboardHandler(svc))
}
