package api

import (
	"alcyxob/fitness-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	schedulerService service.SchedulerService
}

func NewBookingHandler(schedulerService service.SchedulerService) *BookingHandler {
	return &BookingHandler{schedulerService: schedulerService}
}

// Reserve godoc
// @Summary Reserve a seat in a session
// @Description Holds a seat and returns a checkout to pay for it. Free classes are confirmed immediately.
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param date path string true "Session date (YYYY-MM-DD)"
// @Success 201 {object} service.Reservation
// @Failure 404 {object} gin.H "Class not found"
// @Failure 409 {object} gin.H "Session full or already booked"
// @Failure 422 {object} gin.H "Session in the past or not offered"
// @Router /classes/{classId}/sessions/{date}/reserve [post]
func (h *BookingHandler) Reserve(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	res, err := h.schedulerService.Reserve(c.Request.Context(), userID, classID, c.Param("date"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to reserve session.")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Rebook godoc
// @Summary Book again after cancelling
// @Description Allowed only when the caller's latest booking for the session is cancelled.
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param date path string true "Session date (YYYY-MM-DD)"
// @Success 201 {object} service.Reservation
// @Failure 409 {object} gin.H "Not cancelled, already booked or full"
// @Failure 410 {object} gin.H "Class was deleted"
// @Router /classes/{classId}/sessions/{date}/rebook [post]
func (h *BookingHandler) Rebook(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	classID, ok := objectIDParam(c, "classId")
	if !ok {
		return
	}

	res, err := h.schedulerService.Rebook(c.Request.Context(), userID, classID, c.Param("date"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to rebook session.")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// MyBookings godoc
// @Summary The caller's bookings, newest session first
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.BookingView
// @Router /bookings/me [get]
func (h *BookingHandler) MyBookings(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	bookings, err := h.schedulerService.ListMyBookings(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve bookings.")
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// Cancel godoc
// @Summary Cancel a future booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param bookingId path string true "Booking ID"
// @Success 200 {object} domain.Booking
// @Failure 403 {object} gin.H "Not the owner"
// @Failure 404 {object} gin.H "Booking not found"
// @Failure 409 {object} gin.H "Booking is not upcoming"
// @Failure 422 {object} gin.H "Session already started"
// @Router /bookings/{bookingId}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := objectIDParam(c, "bookingId")
	if !ok {
		return
	}

	booking, err := h.schedulerService.CancelBooking(c.Request.Context(), bookingID, userID, role)
	if err != nil {
		abortWithServiceError(c, err, "Failed to cancel booking.")
		return
	}
	c.JSON(http.StatusOK, booking)
}
