package api

import (
	"alcyxob/fitness-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	schedulerService service.SchedulerService
}

func NewAdminHandler(schedulerService service.SchedulerService) *AdminHandler {
	return &AdminHandler{schedulerService: schedulerService}
}

// RunCleanup godoc
// @Summary Run the booking cleanup sweep now
// @Description Completes ended paid bookings and expires stale unpaid ones, ignoring today's run marker.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.CleanupResult
// @Router /admin/cleanup [post]
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	res, err := h.schedulerService.ForceCleanup(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err, "Cleanup failed.")
		return
	}
	c.JSON(http.StatusOK, res)
}
