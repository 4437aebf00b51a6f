package handler

import (
	"errors"
	"net/http"

	"referly/internal/repository"
	"referly/internal/scheduler"
	"referly/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the operational surface: scheduler status, manual job
// triggers, the expiration override and runtime settings.
type AdminHandler struct {
	sched       *scheduler.Scheduler
	rewardSvc   *service.RewardService
	settingRepo *repository.SettingRepository
}

func NewAdminHandler(sched *scheduler.Scheduler, rewardSvc *service.RewardService, settingRepo *repository.SettingRepository) *AdminHandler {
	return &AdminHandler{sched: sched, rewardSvc: rewardSvc, settingRepo: settingRepo}
}

// SchedulerStatus reports whether scheduling is enabled, the environment, and
// each job's cadence and last run.
// GET /admin/scheduler/status
func (h *AdminHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sched.Status())
}

// RunJob triggers a named job immediately, for operational re-runs.
// POST /admin/scheduler/jobs/:name/run
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	if err := h.sched.RunJob(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "job": name})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "job": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job": name})
}

// ExpireRewards is the administrative expiration override for specific ids.
// POST /admin/rewards/expire
func (h *AdminHandler) ExpireRewards(c *gin.Context) {
	var req struct {
		RewardIDs []string `json:"reward_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reward_ids is required"})
		return
	}
	n, err := h.rewardSvc.ExpireByIDs(req.RewardIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not expire rewards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n, "requested": len(req.RewardIDs)})
}

// GetSettings lists the runtime setting overrides.
// GET /admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	list, err := h.settingRepo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": list})
}

// PutSetting upserts one setting.
// PUT /admin/settings
func (h *AdminHandler) PutSetting(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key and value are required"})
		return
	}
	if err := h.settingRepo.Set(req.Key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
