package models

import "time"

// User is a caller account, resolved or created from the phone number the
// telephony gateway reports at session start.
type User struct {
	ID          string    `bson:"id" json:"id"`
	PhoneNumber string    `bson:"phone_number" json:"phoneNumber"`
	Name        string    `bson:"name,omitempty" json:"name,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}
