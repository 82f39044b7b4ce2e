package models

// Stage identifies the current step of the booking dialogue state machine.
type Stage string

const (
	StageGatheringPassengers Stage = "GATHERING_PASSENGERS"
	StageGatheringPickup     Stage = "GATHERING_PICKUP"
	StageConfirmingPickup    Stage = "CONFIRMING_PICKUP"
	StageGatheringDropoff    Stage = "GATHERING_DROPOFF"
	StageConfirmingDropoff   Stage = "CONFIRMING_DROPOFF"
	StageGatheringDateTime   Stage = "GATHERING_DATETIME"
	StageConfirmingBooking   Stage = "CONFIRMING_BOOKING"
)

// Place is a geocoded location candidate.
type Place struct {
	Name             string  `json:"name,omitempty"`
	FormattedAddress string  `json:"formattedAddress"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

// ConversationState holds one active call's dialogue context between turns.
// PendingPlace is non-nil only while a resolved location awaits the caller's
// yes/no confirmation.
type ConversationState struct {
	SessionID    string         `json:"sessionId"`
	Stage        Stage          `json:"stage"`
	Draft        BookingDetails `json:"draft"`
	PendingPlace *Place         `json:"pendingPlace,omitempty"`
}
