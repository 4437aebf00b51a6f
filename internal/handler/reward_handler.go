package handler

import (
	"errors"
	"net/http"
	"strconv"

	"referly/internal/domain"
	"referly/internal/middleware"
	"referly/internal/repository"
	"referly/internal/service"

	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	rewardSvc *service.RewardService
}

func NewRewardHandler(rewardSvc *service.RewardService) *RewardHandler {
	return &RewardHandler{rewardSvc: rewardSvc}
}

// ListRewards returns the user's ledger entries with a per-status summary.
// GET /me/rewards?page=&limit=&status=
func (h *RewardHandler) ListRewards(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	status := c.Query("status")
	if status != "" && !domain.ValidRewardStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}
	list, err := h.rewardSvc.ListRewards(userID, page, limit, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list rewards"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// Redeem converts a batch of AVAILABLE rewards into a settlement request.
// All-or-nothing: one ineligible id rejects the whole batch with 409.
// POST /me/rewards/redeem
func (h *RewardHandler) Redeem(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		RewardIDs []string               `json:"reward_ids" binding:"required,min=1"`
		Method    string                 `json:"method" binding:"required"`
		Details   map[string]interface{} `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reward_ids and method are required"})
		return
	}

	settlement, err := h.rewardSvc.Redeem(userID, req.RewardIDs, req.Method, req.Details)
	if err != nil {
		var notAvailable *repository.RewardNotAvailableError
		switch {
		case errors.As(err, &notAvailable):
			c.JSON(http.StatusConflict, gin.H{"error": notAvailable.Error(), "reward_id": notAvailable.RewardID})
		case errors.Is(err, repository.ErrMixedCurrencies):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not redeem rewards"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"total_amount":   settlement.TotalAmount,
		"currency":       settlement.Currency,
		"count":          settlement.Count,
		"settlement_ref": settlement.SettlementRef,
		"redeemed_at":    settlement.RedeemedAt,
	})
}
