package models

import "time"

// Booking status lifecycle. Transitions are monotonic:
// PENDING → CONFIRMED → EN_ROUTE → ARRIVED → COMPLETED, with CANCELLED
// reachable from any non-terminal status.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusEnRoute   = "EN_ROUTE"
	BookingStatusArrived   = "ARRIVED"
	BookingStatusCompleted = "COMPLETED"
	BookingStatusCancelled = "CANCELLED"
)

// BookingDetails accumulates across conversation turns. Once the caller
// confirms the booking the details are persisted and never mutated again.
type BookingDetails struct {
	PhoneNumber     string    `bson:"phone_number" json:"phoneNumber"`       // caller number, set at session creation
	UserID          string    `bson:"user_id" json:"userId,omitempty"`       // resolved/created from the phone number
	Passengers      int       `bson:"passengers" json:"passengers"`          // positive integer
	PickupLocation  string    `bson:"pickup_location" json:"pickupLocation"` // formatted address or free text
	PickupLat       float64   `bson:"pickup_lat" json:"pickupLat"`
	PickupLng       float64   `bson:"pickup_lng" json:"pickupLng"`
	DropoffLocation string    `bson:"dropoff_location" json:"dropoffLocation"`
	DropoffLat      float64   `bson:"dropoff_lat" json:"dropoffLat"`
	DropoffLng      float64   `bson:"dropoff_lng" json:"dropoffLng"`
	PickupDateTime  time.Time `bson:"pickup_datetime" json:"pickupDateTime"` // absolute, never in the past at booking time
}

// Booking is the persisted booking record.
type Booking struct {
	ID               string         `bson:"id" json:"id"` // UUID
	Details          BookingDetails `bson:"details" json:"details"`
	Status           string         `bson:"status" json:"status"`
	AssignedDriverID string         `bson:"assigned_driver_id,omitempty" json:"assignedDriverId,omitempty"`
	CreatedAt        time.Time      `bson:"created_at" json:"createdAt"`
}
