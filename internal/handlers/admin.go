package handlers

import (
	"net/http"
	"time"

	"auftrag.chapter42.de/dispatch/internal/data"
	"auftrag.chapter42.de/dispatch/internal/dispatch"
	"github.com/gin-gonic/gin"
)

type statusBody struct {
	Status      data.RequestStatus `json:"status" binding:"required"`
	ScheduledAt *time.Time         `json:"scheduled_at"`
}

type assignBody struct {
	MasterID   string `json:"master_id" binding:"required"`
	AssignedBy string `json:"assigned_by" binding:"max=200"`
}

type candidateStatusBody struct {
	Status data.CandidateStatus `json:"status" binding:"required"`
	Reason string               `json:"reason" binding:"max=2000"`
}

type masterStatusBody struct {
	Status data.MasterStatus `json:"status" binding:"required"`
}

func NewListRequestsHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter data.RequestFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			bindError(c, err)
			return
		}

		page, err := svc.ListRequests(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func NewGetRequestHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := svc.GetRequest(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func NewUpdateRequestStatusHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body statusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		r, err := svc.UpdateRequestStatus(c.Request.Context(), c.Param("id"), body.Status, body.ScheduledAt)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func NewListCandidatesHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		candidates, err := svc.ListCandidates(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"list": candidates})
	}
}

func NewAddCandidateHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in data.CandidateInput
		if err := c.ShouldBindJSON(&in); err != nil {
			bindError(c, err)
			return
		}

		candidate, err := svc.AddCandidate(c.Request.Context(), c.Param("id"), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, candidate)
	}
}

// NewAssignHandler weist den Meister zu. Ohne assigned_by wird der Header
// X-Admin-User übernommen.
func NewAssignHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body assignBody
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}
		if body.AssignedBy == "" {
			body.AssignedBy = c.GetHeader("X-Admin-User")
		}

		a, err := svc.AssignMaster(c.Request.Context(), c.Param("id"), body.MasterID, body.AssignedBy)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// NewUnassignHandler liest den Grund aus dem Query-Parameter reason.
func NewUnassignHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := svc.UnassignMaster(c.Request.Context(), c.Param("id"), c.Query("reason"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func NewCandidateStatusHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body candidateStatusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		candidate, err := svc.SetCandidateStatus(c.Request.Context(), c.Param("id"), body.Status, body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, candidate)
	}
}

func NewListMastersHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		masters, err := svc.ListMasters(c.Request.Context(), data.MasterStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"list": masters})
	}
}

func NewMasterStatusHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body masterStatusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			bindError(c, err)
			return
		}

		m, err := svc.SetMasterStatus(c.Request.Context(), c.Param("id"), body.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

func NewDashboardHandler(svc *dispatch.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Dashboard(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
