package handlers

import (
	"errors"
	"net/http"

	"voicecab/models"
	"voicecab/services/dispatch"

	"github.com/gin-gonic/gin"
)

// DriverHandler exposes the driver-facing surface: heartbeats and ride
// status reports.
type DriverHandler struct {
	Registry    *dispatch.Registry
	Coordinator *dispatch.Coordinator
}

// HeartbeatHandler records a driver position ping and returns the driver's
// registry entry.
func (h *DriverHandler) HeartbeatHandler(c *gin.Context) {
	driverID := c.Param("id")

	var input struct {
		Lat float64 `json:"lat" binding:"required"`
		Lng float64 `json:"lng" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	driver := h.Registry.Heartbeat(driverID, models.LatLng{Lat: input.Lat, Lng: input.Lng})
	c.JSON(http.StatusOK, driver)
}

// EnRouteHandler reports that the driver is heading to the pickup.
func (h *DriverHandler) EnRouteHandler(c *gin.Context) {
	h.statusReport(c, h.Coordinator.MarkEnRoute)
}

// ArrivedHandler reports that the driver reached the pickup.
func (h *DriverHandler) ArrivedHandler(c *gin.Context) {
	h.statusReport(c, h.Coordinator.MarkArrived)
}

// CompleteHandler reports that the ride finished.
func (h *DriverHandler) CompleteHandler(c *gin.Context) {
	h.statusReport(c, h.Coordinator.Complete)
}

func (h *DriverHandler) statusReport(c *gin.Context, apply func(bookingID, driverID string) error) {
	driverID := c.Param("id")

	var input struct {
		BookingID string `json:"bookingId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	if err := apply(input.BookingID, driverID); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrNotAssignedDriver):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, dispatch.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update booking status", "details": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookingId": input.BookingID, "driverId": driverID})
}
