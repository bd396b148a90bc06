package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/services"
)

// DrawHandler handles operator draw actions
type DrawHandler struct {
	drawService services.DrawService
}

// NewDrawHandler creates a new DrawHandler
func NewDrawHandler(drawService services.DrawService) *DrawHandler {
	return &DrawHandler{drawService: drawService}
}

// ListDrawing handles GET /draws/drawing
func (h *DrawHandler) ListDrawing(c *gin.Context) {
	campaigns, err := h.drawService.GetDrawingCampaigns(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list drawing campaigns: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

// CancelDraw handles POST /campaigns/:id/draw/cancel
func (h *DrawHandler) CancelDraw(c *gin.Context) {
	h.terminate(c, h.drawService.CancelDraw)
}

// ExpireDraw handles POST /campaigns/:id/draw/expire
func (h *DrawHandler) ExpireDraw(c *gin.Context) {
	h.terminate(c, h.drawService.ExpireDraw)
}

// FailDraw handles POST /campaigns/:id/draw/fail
func (h *DrawHandler) FailDraw(c *gin.Context) {
	h.terminate(c, h.drawService.FailDraw)
}

func (h *DrawHandler) terminate(c *gin.Context, fn func(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	campaign, err := fn(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		case errors.Is(err, services.ErrDrawNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, campaign)
}
