// File: services/nlu/interface.go
package nlu

import (
	"context"
	"time"

	"voicecab/models"
)

// Action is the extractor's suggestion for what the dialogue should do next.
// The engine treats it as advisory; field completeness drives stage
// transitions.
type Action string

const (
	ActionAskField        Action = "ask_field"
	ActionConfirmLocation Action = "confirm_location"
	ActionConfirmBooking  Action = "confirm_booking"
	ActionReset           Action = "reset"
	ActionError           Action = "error"
)

// Request carries one conversation turn into the extractor.
type Request struct {
	Stage     models.Stage
	Utterance string
	Draft     models.BookingDetails // snapshot, never mutated by the extractor
}

// Result is the extractor's structured guess for one turn. Zero values mean
// "nothing extracted" for the corresponding field.
type Result struct {
	Action        Action
	Passengers    int           // positive when a passenger count was extracted
	LocationQuery string        // raw location text, set when no geocoding was performed
	Candidate     *models.Place // geocoded candidate awaiting caller confirmation
	PickupAt      time.Time     // resolved pickup moment
	Confirmation  *bool         // yes/no answer at a confirmation stage
	AssistantText string        // optional phrasing from the generative backend
}

// Extractor turns a free-text utterance into a structured extraction for the
// active dialogue stage. Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}
