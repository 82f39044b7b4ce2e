// File: services/dispatch/coordinator.go
package dispatch

import (
	"errors"
	"math"
	"sort"

	bookingRepo "voicecab/database/repository/booking"
	"voicecab/models"
	"voicecab/services/realtime"
	"voicecab/utils"

	"go.uber.org/zap"
)

// Coordinator owns driver assignment and the booking status lifecycle.
// Assignment is nearest-first with compare-and-set claims, so a driver who
// got claimed between ranking and claiming is simply skipped and the next
// candidate tried.
type Coordinator struct {
	Registry  *Registry
	Bookings  bookingRepo.BookingRepository
	Publisher realtime.Publisher
}

// NewCoordinator wires the dispatch coordinator.
func NewCoordinator(registry *Registry, bookings bookingRepo.BookingRepository, publisher realtime.Publisher) *Coordinator {
	return &Coordinator{Registry: registry, Bookings: bookings, Publisher: publisher}
}

// Assign claims the nearest eligible driver for a confirmed booking. With no
// eligible driver it returns ErrNoEligibleDriver and leaves the booking
// untouched; the caller schedules a retry.
func (c *Coordinator) Assign(bookingID string) error {
	logger := utils.GetLogger()

	booking, err := c.Bookings.GetByID(bookingID)
	if err != nil {
		return err
	}
	if booking.AssignedDriverID != "" {
		return ErrAlreadyAssigned
	}
	if booking.Status != models.BookingStatusConfirmed {
		return ErrNotAssignable
	}

	c.Publisher.Publish(realtime.DriversChannel, models.EventNewRideRequest, models.AssignmentEvent{
		BookingID:       booking.ID,
		Passengers:      booking.Details.Passengers,
		PickupLocation:  booking.Details.PickupLocation,
		PickupLat:       booking.Details.PickupLat,
		PickupLng:       booking.Details.PickupLng,
		DropoffLocation: booking.Details.DropoffLocation,
	})

	candidates := rankByDistance(c.Registry.EligibleSnapshot(), booking.Details.PickupLat, booking.Details.PickupLng)
	for _, d := range candidates {
		if !c.Registry.TryClaim(d.ID, booking.ID) {
			continue
		}
		// The booking-side claim is conditional too: a concurrent attempt for
		// the same booking may have won between our read and here. Losing
		// frees the driver again instead of stranding it.
		if err := c.Bookings.SetAssignedDriver(booking.ID, d.ID); err != nil {
			c.Registry.Release(d.ID, booking.ID)
			if errors.Is(err, bookingRepo.ErrDriverAlreadySet) {
				return ErrAlreadyAssigned
			}
			return err
		}

		event := models.AssignmentEvent{
			BookingID:       booking.ID,
			DriverID:        d.ID,
			Passengers:      booking.Details.Passengers,
			PickupLocation:  booking.Details.PickupLocation,
			PickupLat:       booking.Details.PickupLat,
			PickupLng:       booking.Details.PickupLng,
			DropoffLocation: booking.Details.DropoffLocation,
		}
		c.Publisher.Publish(realtime.DriverChannel(d.ID), models.EventDriverAssigned, event)
		c.Publisher.Publish(realtime.BookingChannel(booking.ID), models.EventDriverAssigned, event)

		logger.Info("driver assigned",
			zap.String("bookingId", booking.ID),
			zap.String("driverId", d.ID))
		return nil
	}

	logger.Info("no eligible driver for booking", zap.String("bookingId", bookingID))
	return ErrNoEligibleDriver
}

// MarkEnRoute records that the assigned driver started toward the pickup.
func (c *Coordinator) MarkEnRoute(bookingID, driverID string) error {
	return c.transition(bookingID, driverID, models.BookingStatusConfirmed, models.BookingStatusEnRoute, models.EventDriverEnRoute)
}

// MarkArrived records that the assigned driver reached the pickup.
func (c *Coordinator) MarkArrived(bookingID, driverID string) error {
	return c.transition(bookingID, driverID, models.BookingStatusEnRoute, models.BookingStatusArrived, models.EventDriverArrived)
}

// Complete finishes the ride and frees the driver for new assignments.
func (c *Coordinator) Complete(bookingID, driverID string) error {
	if err := c.transition(bookingID, driverID, models.BookingStatusArrived, models.BookingStatusCompleted, models.EventRideCompleted); err != nil {
		return err
	}
	c.Registry.Release(driverID, bookingID)
	return nil
}

// Cancel aborts a non-terminal booking and frees its driver, if any.
func (c *Coordinator) Cancel(bookingID string) error {
	booking, err := c.Bookings.GetByID(bookingID)
	if err != nil {
		return err
	}
	switch booking.Status {
	case models.BookingStatusCompleted, models.BookingStatusCancelled:
		return ErrInvalidTransition
	}

	if err := c.Bookings.UpdateStatus(bookingID, models.BookingStatusCancelled); err != nil {
		return err
	}
	if booking.AssignedDriverID != "" {
		c.Registry.Release(booking.AssignedDriverID, bookingID)
		if err := c.Bookings.ClearAssignedDriver(bookingID); err != nil {
			utils.GetLogger().Warn("failed to clear driver from cancelled booking",
				zap.String("bookingId", bookingID), zap.Error(err))
		}
	}
	c.Publisher.Publish(realtime.BookingChannel(bookingID), models.EventRideCancelled, models.StatusEvent{
		BookingID: bookingID,
		DriverID:  booking.AssignedDriverID,
		Status:    models.BookingStatusCancelled,
	})

	utils.GetLogger().Info("booking cancelled", zap.String("bookingId", bookingID))
	return nil
}

// transition applies one step of the status ladder after checking that the
// reporting driver is the assigned one and that the booking sits exactly one
// step behind.
func (c *Coordinator) transition(bookingID, driverID, from, to, event string) error {
	booking, err := c.Bookings.GetByID(bookingID)
	if err != nil {
		return err
	}
	if booking.AssignedDriverID == "" || booking.AssignedDriverID != driverID {
		return ErrNotAssignedDriver
	}
	if booking.Status != from {
		return ErrInvalidTransition
	}

	if err := c.Bookings.UpdateStatus(bookingID, to); err != nil {
		return err
	}

	status := models.StatusEvent{BookingID: bookingID, DriverID: driverID, Status: to}
	c.Publisher.Publish(realtime.BookingChannel(bookingID), event, status)
	c.Publisher.Publish(realtime.DriverChannel(driverID), event, status)

	utils.GetLogger().Info("booking status updated",
		zap.String("bookingId", bookingID),
		zap.String("driverId", driverID),
		zap.String("status", to))
	return nil
}

// rankByDistance orders drivers by pickup distance ascending; equally distant
// drivers break the tie on the most recent heartbeat. A booking gathered
// without geocoding has no pickup coordinates; distance to an unset origin
// means nothing, so those rank by recency alone.
func rankByDistance(drivers []models.Driver, pickupLat, pickupLng float64) []models.Driver {
	if pickupLat == 0 && pickupLng == 0 {
		sort.SliceStable(drivers, func(i, j int) bool {
			return drivers[i].LastSeenAt.After(drivers[j].LastSeenAt)
		})
		return drivers
	}
	sort.SliceStable(drivers, func(i, j int) bool {
		di := haversine(pickupLat, pickupLng, drivers[i].Location.Lat, drivers[i].Location.Lng)
		dj := haversine(pickupLat, pickupLng, drivers[j].Location.Lat, drivers[j].Location.Lng)
		if di != dj {
			return di < dj
		}
		return drivers[i].LastSeenAt.After(drivers[j].LastSeenAt)
	})
	return drivers
}

// haversine calculates the great-circle distance (in km) between two lat/lon points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
