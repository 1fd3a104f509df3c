package api

import (
	"alcyxob/fitness-booking/internal/payment"
	"alcyxob/fitness-booking/internal/repository"
	"alcyxob/fitness-booking/internal/schedule"
	"alcyxob/fitness-booking/internal/service"
	"alcyxob/fitness-booking/internal/storage"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorStatuses maps service sentinels to HTTP statuses. Order matters
// only for wrapped errors that match more than one entry.
var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrClassNotFound, http.StatusNotFound},
	{service.ErrBookingNotFound, http.StatusNotFound},
	{service.ErrNotOwner, http.StatusForbidden},
	{service.ErrClassAccessDenied, http.StatusForbidden},
	{service.ErrOrphanedTemplate, http.StatusGone},
	{service.ErrSlotFull, http.StatusConflict},
	{service.ErrAlreadyBooked, http.StatusConflict},
	{service.ErrNotCancelled, http.StatusConflict},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrPastSession, http.StatusUnprocessableEntity},
	{service.ErrInvalidSessionDate, http.StatusUnprocessableEntity},
	{service.ErrSessionNotOffered, http.StatusUnprocessableEntity},
	{schedule.ErrInvalidTemplate, http.StatusUnprocessableEntity},
	{service.ErrValidationFailed, http.StatusBadRequest},
	{service.ErrUnsupportedImageType, http.StatusBadRequest},
	{service.ErrCoverImageMissing, http.StatusBadRequest},
	{payment.ErrUnknownOutcome, http.StatusBadRequest},
	{service.ErrPaymentUnavailable, http.StatusServiceUnavailable},
	{storage.ErrStorageDisabled, http.StatusServiceUnavailable},
	{repository.ErrLockContended, http.StatusServiceUnavailable},
}

// abortWithServiceError writes the status mapped to err. Unmapped errors
// are logged and answered with a generic 500 carrying fallback.
func abortWithServiceError(c *gin.Context, err error, fallback string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			abortWithError(c, e.status, err.Error())
			return
		}
	}
	log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
	abortWithError(c, http.StatusInternalServerError, fallback)
}
