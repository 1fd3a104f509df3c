package api

import (
	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ClassHandler struct {
	classService     service.ClassService
	schedulerService service.SchedulerService
}

func NewClassHandler(classService service.ClassService, schedulerService service.SchedulerService) *ClassHandler {
	return &ClassHandler{classService: classService, schedulerService: schedulerService}
}

// --- DTOs ---

type ClassRequest struct {
	Name            string  `json:"name" binding:"required,max=120"`
	Description     string  `json:"description" binding:"max=2000"`
	Day             string  `json:"day" binding:"required"`       // "Monday" or "mon"
	StartTime       string  `json:"startTime" binding:"required"` // HH:MM
	EndTime         string  `json:"endTime" binding:"required"`   // HH:MM
	DurationMinutes int     `json:"durationMinutes" binding:"gte=0"`
	Capacity        int     `json:"capacity" binding:"required,gt=0"`
	Price           float64 `json:"price" binding:"gte=0"`
}

func (r ClassRequest) toInput() service.ClassInput {
	return service.ClassInput{
		Name:            r.Name,
		Description:     r.Description,
		Day:             r.Day,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.DurationMinutes,
		Capacity:        r.Capacity,
		Price:           r.Price,
	}
}

type CoverUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type CoverConfirmRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type SessionsResponse struct {
	ClassID  string                    `json:"classId"`
	Sessions []service.BookableSession `json:"sessions"`
}

// --- Public catalogue ---

// ListClasses godoc
// @Summary List all classes
// @Tags Classes
// @Produce json
// @Success 200 {array} domain.ClassTemplate
// @Router /classes [get]
func (h *ClassHandler) ListClasses(c *gin.Context) {
	classes, err := h.classService.ListClasses(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve classes.")
		return
	}
	if classes == nil {
		classes = []domain.ClassTemplate{}
	}
	c.JSON(http.StatusOK, classes)
}

// GetClass godoc
// @Summary Class details with trainer and cover image
// @Tags Classes
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} service.ClassDetails
// @Failure 404 {object} gin.H "Class not found"
// @Router /classes/{classId} [get]
func (h *ClassHandler) GetClass(c *gin.Context) {
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}
	details, err := h.classService.GetClass(c.Request.Context(), classID)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve class.")
		return
	}
	c.JSON(http.StatusOK, details)
}

// ListSessions godoc
// @Summary Bookable sessions of a class
// @Description Upcoming sessions within the booking window, with seats left for each and whether the caller already booked it.
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} SessionsResponse
// @Failure 404 {object} gin.H "Class not found"
// @Router /classes/{classId}/sessions [get]
func (h *ClassHandler) ListSessions(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	sessions, err := h.schedulerService.ListBookableSessions(c.Request.Context(), classID, userID)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve sessions.")
		return
	}
	c.JSON(http.StatusOK, SessionsResponse{ClassID: classID.Hex(), Sessions: sessions})
}

// --- Trainer management ---

// GetTrainerClasses godoc
// @Summary The authenticated trainer's classes
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.ClassTemplate
// @Router /trainer/classes [get]
func (h *ClassHandler) GetTrainerClasses(c *gin.Context) {
	trainerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classes, err := h.classService.ListTrainerClasses(c.Request.Context(), trainerID)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve classes.")
		return
	}
	if classes == nil {
		classes = []domain.ClassTemplate{}
	}
	c.JSON(http.StatusOK, classes)
}

// CreateClass godoc
// @Summary Create a recurring weekly class
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param class body ClassRequest true "Class details"
// @Success 201 {object} domain.ClassTemplate
// @Failure 400 {object} gin.H "Invalid input"
// @Router /trainer/classes [post]
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, _, ok := currentUser(c)
	if !ok {
		return
	}

	tpl, err := h.classService.CreateClass(c.Request.Context(), trainerID, req.toInput())
	if err != nil {
		abortWithServiceError(c, err, "Failed to create class.")
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// UpdateClass godoc
// @Summary Update a class the trainer owns
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param class body ClassRequest true "Class details"
// @Success 200 {object} domain.ClassTemplate
// @Failure 403 {object} gin.H "Not the owner"
// @Failure 404 {object} gin.H "Class not found"
// @Router /trainer/classes/{classId} [put]
func (h *ClassHandler) UpdateClass(c *gin.Context) {
	var req ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	tpl, err := h.classService.UpdateClass(c.Request.Context(), trainerID, classID, req.toInput())
	if err != nil {
		abortWithServiceError(c, err, "Failed to update class.")
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// DeleteClass godoc
// @Summary Delete a class the trainer owns
// @Description Existing bookings keep their session details and show up as orphaned.
// @Tags Trainer
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 204 "Deleted"
// @Router /trainer/classes/{classId} [delete]
func (h *ClassHandler) DeleteClass(c *gin.Context) {
	trainerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	if err := h.classService.DeleteClass(c.Request.Context(), trainerID, classID); err != nil {
		abortWithServiceError(c, err, "Failed to delete class.")
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestCoverUpload godoc
// @Summary Presigned URL for uploading a class cover image
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param request body CoverUploadRequest true "Image content type"
// @Success 200 {object} service.CoverUpload
// @Failure 503 {object} gin.H "Storage not configured"
// @Router /trainer/classes/{classId}/cover-upload-url [post]
func (h *ClassHandler) RequestCoverUpload(c *gin.Context) {
	var req CoverUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	upload, err := h.classService.RequestCoverUpload(c.Request.Context(), trainerID, classID, req.ContentType)
	if err != nil {
		abortWithServiceError(c, err, "Failed to prepare upload.")
		return
	}
	c.JSON(http.StatusOK, upload)
}

// ConfirmCoverImage godoc
// @Summary Attach an uploaded cover image to the class
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param request body CoverConfirmRequest true "Uploaded object key"
// @Success 200 {object} domain.ClassTemplate
// @Router /trainer/classes/{classId}/cover [put]
func (h *ClassHandler) ConfirmCoverImage(c *gin.Context) {
	var req CoverConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	trainerID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	tpl, err := h.classService.ConfirmCoverImage(c.Request.Context(), trainerID, classID, req.ObjectKey)
	if err != nil {
		abortWithServiceError(c, err, "Failed to attach cover image.")
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// SessionRoster godoc
// @Summary Seat holders of one session
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param date path string true "Session date (YYYY-MM-DD)"
// @Success 200 {array} domain.Booking
// @Router /trainer/classes/{classId}/sessions/{date}/roster [get]
func (h *ClassHandler) SessionRoster(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	roster, err := h.schedulerService.SessionRoster(c.Request.Context(), userID, role, classID, c.Param("date"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve roster.")
		return
	}
	c.JSON(http.StatusOK, roster)
}
