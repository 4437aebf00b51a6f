package handler

import (
	"errors"
	"net/http"
	"strconv"

	"referly/internal/middleware"
	"referly/internal/service"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	referralSvc *service.ReferralService
}

func NewReferralHandler(referralSvc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referralSvc: referralSvc}
}

// GetMyReferralCode returns the user's code (creating one on first call),
// share link and referral totals.
// GET /me/referral-code
func (h *ReferralHandler) GetMyReferralCode(c *gin.Context) {
	userID := middleware.GetUserID(c)
	info, err := h.referralSvc.GetMyReferralCode(userID)
	if err != nil {
		if errors.Is(err, service.ErrCodeGenerationExhausted) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get referral code"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// SetCustomCode assigns a vanity code, allowed only while no code is set.
// POST /me/referral-code
func (h *ReferralHandler) SetCustomCode(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	code, err := h.referralSvc.SetCustomCode(userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": "code must be 4-16 letters or digits"})
		case errors.Is(err, service.ErrDuplicateCustomCode):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrCodeAlreadySet):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not set referral code"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// ApplyReferral attributes the authenticated user to the owner of the code.
// POST /referrals/apply
func (h *ReferralHandler) ApplyReferral(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	summary, err := h.referralSvc.ApplyReferral(userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode),
			errors.Is(err, service.ErrSelfReferral),
			errors.Is(err, service.ErrAlreadyReferred):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not apply referral"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "referrer": summary})
}

// ValidateCode answers whether a code is usable without leaking anything about
// codes that are not.
// GET /referrals/validate/:code
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	result, err := h.referralSvc.ValidateCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not validate code"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetStats returns the referrer's overview and time series, for a preset
// period or an explicit date range.
// GET /me/referrals/stats?period=30d or ?from=2026-01-01&to=2026-01-31
func (h *ReferralHandler) GetStats(c *gin.Context) {
	userID := middleware.GetUserID(c)
	stats, err := h.referralSvc.GetStats(userID, c.DefaultQuery("period", "30d"),
		c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetHistory pages through the users this referrer invited.
// GET /me/referrals/history?page=&limit=&status=&search=&sort=
func (h *ReferralHandler) GetHistory(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	history, err := h.referralSvc.GetHistory(userID, page, limit,
		c.Query("status"), c.Query("search"), c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, history)
}
