// server/internal/api/handlers/negotiation_handler.go
package handlers

import (
	"net/http"

	"github.com/freightbid/bidding-api/internal/api/middleware"
	"github.com/freightbid/bidding-api/internal/auction"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type NegotiationHandler struct {
	Negotiation *auction.NegotiationService
	Log         *logrus.Logger
}

type assignRequest struct {
	TransporterID string   `json:"transporterID" binding:"required"`
	Fleets        int      `json:"fleets" binding:"required"`
	Price         *float64 `json:"price"`
}

// Assign handles POST /api/v1/loads/:loadID/assign.
func (h *NegotiationHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	actor := middleware.GetActor(c)
	rec, err := h.Negotiation.Assign(c.Request.Context(), actor, c.Param("loadID"), req.TransporterID, req.Fleets, req.Price)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transporter assigned", "data": rec})
}

type unassignRequest struct {
	TransporterID string `json:"transporterID" binding:"required"`
	Reason        string `json:"reason"`
}

// Unassign handles POST /api/v1/loads/:loadID/unassign.
func (h *NegotiationHandler) Unassign(c *gin.Context) {
	var req unassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	actor := middleware.GetActor(c)
	if err := h.Negotiation.Unassign(c.Request.Context(), actor, c.Param("loadID"), req.TransporterID, req.Reason); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Transporter unassigned"})
}

type priceMatchRequest struct {
	TransporterID string  `json:"transporterID" binding:"required"`
	Price         float64 `json:"price" binding:"required"`
	Comment       string  `json:"comment"`
}

// RequestPriceMatch handles POST /api/v1/loads/:loadID/match.
func (h *NegotiationHandler) RequestPriceMatch(c *gin.Context) {
	var req priceMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	actor := middleware.GetActor(c)
	rec, err := h.Negotiation.RequestPriceMatch(c.Request.Context(), actor, c.Param("loadID"), req.TransporterID, req.Price, req.Comment)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Price match requested", "data": rec})
}

type matchResponseRequest struct {
	Action  string  `json:"action" binding:"required"`
	Counter float64 `json:"counter"`
}

// Respond handles POST /api/v1/bids/:loadID/match/respond.
func (h *NegotiationHandler) Respond(c *gin.Context) {
	var req matchResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	actor := middleware.GetActor(c)
	rec, err := h.Negotiation.Respond(c.Request.Context(), actor, c.Param("loadID"), req.Action, req.Counter)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Response recorded", "data": rec})
}

// AssignmentHistory handles GET /api/v1/loads/:loadID/assignment/history.
func (h *NegotiationHandler) AssignmentHistory(c *gin.Context) {
	actor := middleware.GetActor(c)
	items, err := h.Negotiation.AssignmentHistory(c.Request.Context(), actor, c.Param("loadID"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
