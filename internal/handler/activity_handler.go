package handler

import (
	"log"
	"net/http"
	"time"

	"referly/internal/middleware"
	"referly/internal/service"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	activitySvc *service.ActivityService
}

func NewActivityHandler(activitySvc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activitySvc: activitySvc}
}

// MarkActive is the fire-and-forget activity ping. The response carries no
// body; a failed counter bump is logged, not surfaced.
// POST /me/activity
func (h *ActivityHandler) MarkActive(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if err := h.activitySvc.RecordActivity(userID, time.Now()); err != nil {
		log.Printf("[activity] record for user %d: %v", userID, err)
	}
	c.Status(http.StatusNoContent)
}
