package models

// Real-time event names published to driver, user and booking channels.
const (
	EventNewRideRequest = "newRideRequest"
	EventDriverAssigned = "driverAssigned"
	EventDriverEnRoute  = "driverEnRoute"
	EventDriverArrived  = "driverArrived"
	EventRideCompleted  = "rideCompleted"
	EventRideCancelled  = "rideCancelled"
)

// AssignmentEvent is sent to the claimed driver's channel and to the
// booking's channel when dispatch succeeds.
type AssignmentEvent struct {
	BookingID       string  `json:"bookingId"`
	DriverID        string  `json:"driverId"`
	Passengers      int     `json:"passengers"`
	PickupLocation  string  `json:"pickupLocation"`
	PickupLat       float64 `json:"pickupLat"`
	PickupLng       float64 `json:"pickupLng"`
	DropoffLocation string  `json:"dropoffLocation"`
}

// StatusEvent is sent to the booking's channel on every status transition.
type StatusEvent struct {
	BookingID string `json:"bookingId"`
	DriverID  string `json:"driverId,omitempty"`
	Status    string `json:"status"`
}
