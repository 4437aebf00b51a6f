package router

import (
	"time"

	"referly/config"
	"referly/internal/domain"
	"referly/internal/handler"
	"referly/internal/middleware"
	"referly/internal/repository"
	"referly/internal/scheduler"
	"referly/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers and returns the engine plus
// the scheduler (so main can start and stop it with the server).
func Setup(cfg *config.Config, db *gorm.DB) (*gin.Engine, *scheduler.Scheduler) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Code validation is unauthenticated and a natural probing target.
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Services
	notifSvc := service.NewNotificationService(notificationRepo)
	referralSvc := service.NewReferralService(db, userRepo, rewardRepo, settingRepo, &cfg.Referral)
	activitySvc := service.NewActivityService(userRepo, rewardRepo, settingRepo, notifSvc, &cfg.Referral)
	rewardSvc := service.NewRewardService(rewardRepo, notifSvc, &cfg.Referral)

	sched := scheduler.New(&cfg.Scheduler, cfg.Server.Env, activitySvc, rewardSvc)

	// Handlers
	referralHandler := handler.NewReferralHandler(referralSvc)
	rewardHandler := handler.NewRewardHandler(rewardSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	adminHandler := handler.NewAdminHandler(sched, rewardSvc, settingRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	adminMw := middleware.RequireRole(domain.RoleAdmin)

	api := r.Group("/api/v1")
	{
		api.GET("/referrals/validate/:code", referralHandler.ValidateCode)
		api.POST("/referrals/apply", authMw, referralHandler.ApplyReferral)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/referral-code", referralHandler.GetMyReferralCode)
			me.POST("/referral-code", referralHandler.SetCustomCode)
			me.GET("/referrals/stats", referralHandler.GetStats)
			me.GET("/referrals/history", referralHandler.GetHistory)
			me.GET("/rewards", rewardHandler.ListRewards)
			me.POST("/rewards/redeem", rewardHandler.Redeem)
			me.POST("/activity", activityHandler.MarkActive)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, adminMw)
		{
			admin.GET("/scheduler/status", adminHandler.SchedulerStatus)
			admin.POST("/scheduler/jobs/:name/run", adminHandler.RunJob)
			admin.POST("/rewards/expire", adminHandler.ExpireRewards)
			admin.GET("/settings", adminHandler.GetSettings)
			admin.PUT("/settings", adminHandler.PutSetting)
		}
	}

	return r, sched
}
