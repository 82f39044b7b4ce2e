package models

import "time"

// LatLng is a plain coordinate pair.
type LatLng struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Driver is one entry in the driver pool. A driver holds at most one active
// assignment at a time.
type Driver struct {
	ID                string    `bson:"id" json:"id"`
	Location          LatLng    `bson:"location" json:"location"`
	Active            bool      `bson:"active" json:"active"`
	LastSeenAt        time.Time `bson:"last_seen_at" json:"lastSeenAt"`
	CurrentAssignment string    `bson:"current_assignment,omitempty" json:"currentAssignment,omitempty"` // booking id
}
