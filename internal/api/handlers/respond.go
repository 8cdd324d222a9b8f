// server/internal/api/handlers/respond.go
package handlers

import (
	"github.com/freightbid/bidding-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps a core error onto the HTTP response. Rule violations
// and conflicts are normal auction outcomes; only store failures are
// logged as errors.
func respondError(c *gin.Context, log *logrus.Logger, err error) {
	ae := models.AsAppError(err)
	if ae.Kind == models.ErrStore {
		log.WithError(ae).Error("request failed")
	}

	body := gin.H{"error": ae.Message}
	if ae.Threshold != nil {
		body["threshold"] = ae.Threshold
	}
	c.JSON(ae.HTTPStatus(), body)
}
