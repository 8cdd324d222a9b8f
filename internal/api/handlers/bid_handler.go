// server/internal/api/handlers/bid_handler.go
package handlers

import (
	"net/http"

	"github.com/freightbid/bidding-api/internal/api/middleware"
	"github.com/freightbid/bidding-api/internal/auction"
	"github.com/freightbid/bidding-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BidHandler struct {
	Bids        *auction.BidService
	Assignments store.AssignmentStore
	Log         *logrus.Logger
}

type submitRateRequest struct {
	Rate    float64 `json:"rate" binding:"required"`
	Comment string  `json:"comment"`
}

// SubmitRate handles POST /api/v1/bids/:loadID/rates.
func (h *BidHandler) SubmitRate(c *gin.Context) {
	var req submitRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	actor := middleware.GetActor(c)
	result, err := h.Bids.SubmitRate(c.Request.Context(), actor, c.Param("loadID"), req.Rate, req.Comment)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Rate submitted successfully", "data": result})
}

// GetLowest handles GET /api/v1/bids/:loadID/lowest.
func (h *BidHandler) GetLowest(c *gin.Context) {
	actor := middleware.GetActor(c)
	summary, err := h.Bids.Lowest(c.Request.Context(), actor, c.Param("loadID"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetRateHistory handles GET /api/v1/bids/:loadID/rates/history.
func (h *BidHandler) GetRateHistory(c *gin.Context) {
	actor := middleware.GetActor(c)
	items, err := h.Bids.RateHistory(c.Request.Context(), actor, c.Param("loadID"), h.Assignments)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// AcceptTerms handles POST /api/v1/bids/:loadID/terms/accept.
func (h *BidHandler) AcceptTerms(c *gin.Context) {
	actor := middleware.GetActor(c)
	if err := h.Bids.AcceptTerms(c.Request.Context(), actor, c.Param("loadID")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Terms accepted"})
}
