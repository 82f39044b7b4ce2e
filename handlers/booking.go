package handlers

import (
	"errors"
	"net/http"
	"strconv"

	bookingRepo "voicecab/database/repository/booking"
	"voicecab/services/dispatch"
	"voicecab/utils"

	"github.com/gin-gonic/gin"
)

// BookingHandler exposes the operator-facing booking surface.
type BookingHandler struct {
	Bookings    bookingRepo.BookingRepository
	Coordinator *dispatch.Coordinator
}

// ListBookingsHandler returns the most recent bookings, newest first.
func (h *BookingHandler) ListBookingsHandler(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	bookings, err := h.Bookings.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bookings", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetBookingHandler returns one booking by id.
func (h *BookingHandler) GetBookingHandler(c *gin.Context) {
	booking, err := h.Bookings.GetByID(c.Param("id"))
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "booking not found", err.Error())
		return
	}
	c.JSON(http.StatusOK, booking)
}

// AssignBookingHandler runs one dispatch attempt for the booking.
func (h *BookingHandler) AssignBookingHandler(c *gin.Context) {
	bookingID := c.Param("id")

	err := h.Coordinator.Assign(bookingID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"bookingId": bookingID, "assigned": true})
	case errors.Is(err, dispatch.ErrNoEligibleDriver):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrAlreadyAssigned), errors.Is(err, dispatch.ErrNotAssignable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign booking", "details": err.Error()})
	}
}

// CancelBookingHandler aborts a non-terminal booking.
func (h *BookingHandler) CancelBookingHandler(c *gin.Context) {
	bookingID := c.Param("id")

	err := h.Coordinator.Cancel(bookingID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"bookingId": bookingID, "cancelled": true})
	case errors.Is(err, dispatch.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel booking", "details": err.Error()})
	}
}
