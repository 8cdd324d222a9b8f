// server/internal/api/handlers/load_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/freightbid/bidding-api/internal/api/middleware"
	"github.com/freightbid/bidding-api/internal/auction"
	"github.com/freightbid/bidding-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type LoadHandler struct {
	Lifecycle *auction.LifecycleService
	Log       *logrus.Logger
}

// CreateLoad handles POST /api/v1/loads.
func (h *LoadHandler) CreateLoad(c *gin.Context) {
	var input auction.CreateLoadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	actor := middleware.GetActor(c)
	load, err := h.Lifecycle.CreateLoad(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Load created successfully", "data": load})
}

// Publish handles POST /api/v1/loads/:loadID/publish.
func (h *LoadHandler) Publish(c *gin.Context) {
	actor := middleware.GetActor(c)
	load, err := h.Lifecycle.Publish(c.Request.Context(), actor, c.Param("loadID"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Load published", "data": load})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/v1/loads/:loadID/cancel.
func (h *LoadHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	actor := middleware.GetActor(c)
	if err := h.Lifecycle.Cancel(c.Request.Context(), actor, c.Param("loadID"), req.Reason); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Load cancelled"})
}

// Complete handles POST /api/v1/loads/:loadID/complete.
func (h *LoadHandler) Complete(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)

	actor := middleware.GetActor(c)
	if err := h.Lifecycle.Complete(c.Request.Context(), actor, c.Param("loadID"), req.Reason); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Load completed"})
}

// MarkEpod handles POST /api/v1/loads/:loadID/epod.
func (h *LoadHandler) MarkEpod(c *gin.Context) {
	actor := middleware.GetActor(c)
	if err := h.Lifecycle.MarkEpod(c.Request.Context(), actor, c.Param("loadID")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Proof of delivery recorded"})
}

// List handles GET /api/v1/loads?status=live,pending.
func (h *LoadHandler) List(c *gin.Context) {
	var statuses []models.LoadStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, models.LoadStatus(strings.TrimSpace(s)))
		}
	}

	actor := middleware.GetActor(c)
	loads, err := h.Lifecycle.ListForShipper(c.Request.Context(), actor, statuses)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": loads})
}
