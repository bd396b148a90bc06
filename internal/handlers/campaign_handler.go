package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/naffle-labs/allowlist-engine/internal/models"
	"github.com/naffle-labs/allowlist-engine/internal/money"
	"github.com/naffle-labs/allowlist-engine/internal/services"
)

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignService services.CampaignService
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(campaignService services.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService}
}

// CreateCampaignRequest is the payload for POST /campaigns
type CreateCampaignRequest struct {
	EventID      string    `json:"event_id" binding:"required"`
	Name         string    `json:"name" binding:"required"`
	CreatorID    string    `json:"creator_id" binding:"required"`
	WinnerCount  int       `json:"winner_count"`
	EveryoneWins bool      `json:"everyone_wins"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	EndTime      time.Time `json:"end_time" binding:"required"`
	Payment      *struct {
		Token               string `json:"token" binding:"required"`
		MintPrice           string `json:"mint_price" binding:"required"`
		ReserveStakeBps     int64  `json:"reserve_stake_bps"`
		ProfitGuaranteeBps  int64  `json:"profit_guarantee_bps"`
		RefundLosingEntries bool   `json:"refund_losing_entries"`
	} `json:"payment"`
}

// CreateCampaign handles POST /campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var request CreateCampaignRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign := &models.Campaign{
		EventID:      request.EventID,
		Name:         request.Name,
		CreatorID:    request.CreatorID,
		WinnerCount:  request.WinnerCount,
		EveryoneWins: request.EveryoneWins,
		StartTime:    request.StartTime,
		EndTime:      request.EndTime,
	}
	if request.Payment != nil {
		mintPrice, err := money.Parse(request.Payment.MintPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mint price: " + err.Error()})
			return
		}
		campaign.Payment = &models.PaymentTerms{
			Enabled:             true,
			Token:               request.Payment.Token,
			MintPrice:           mintPrice,
			ReserveStakeBps:     request.Payment.ReserveStakeBps,
			ProfitGuaranteeBps:  request.Payment.ProfitGuaranteeBps,
			RefundLosingEntries: request.Payment.RefundLosingEntries,
		}
	}

	if err := h.campaignService.CreateCampaign(c.Request.Context(), campaign); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

// GetCampaign handles GET /campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	campaign, err := h.campaignService.GetCampaign(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve campaign: " + err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// UpdatePaymentTermsRequest is the payload for PUT /campaigns/:id/payment
type UpdatePaymentTermsRequest struct {
	MintPrice           string `json:"mint_price" binding:"required"`
	ReserveStakeBps     int64  `json:"reserve_stake_bps"`
	ProfitGuaranteeBps  int64  `json:"profit_guarantee_bps"`
	RefundLosingEntries bool   `json:"refund_losing_entries"`
}

// UpdatePaymentTerms handles PUT /campaigns/:id/payment
func (h *CampaignHandler) UpdatePaymentTerms(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	var request UpdatePaymentTermsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mintPrice, err := money.Parse(request.MintPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mint price: " + err.Error()})
		return
	}

	campaign, err := h.campaignService.UpdatePaymentTerms(c.Request.Context(), id, services.PaymentTermsUpdate{
		MintPrice:           mintPrice,
		ReserveStakeBps:     request.ReserveStakeBps,
		ProfitGuaranteeBps:  request.ProfitGuaranteeBps,
		RefundLosingEntries: request.RefundLosingEntries,
	})
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		case errors.Is(err, services.ErrCampaignNotLive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, campaign)
}

// PurchaseTicketRequest is the payload for POST /campaigns/:id/tickets
type PurchaseTicketRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// PurchaseTicket handles POST /campaigns/:id/tickets
func (h *CampaignHandler) PurchaseTicket(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	var request PurchaseTicketRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, err := h.campaignService.PurchaseTicket(c.Request.Context(), id, request.UserID, request.WalletAddress)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSalesClosed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// GetWinners handles GET /campaigns/:id/winners
func (h *CampaignHandler) GetWinners(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	winners, err := h.campaignService.GetWinners(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, winners)
}
