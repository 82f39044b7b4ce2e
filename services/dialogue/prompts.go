// File: services/dialogue/prompts.go
package dialogue

import (
	"fmt"

	"voicecab/models"
)

// Everything the caller hears lives here. Failure paths always resolve to a
// clarifying re-prompt or an apology; internal errors are never spoken.
const (
	promptWelcome           = "Welcome to the booking service. How many passengers will be riding?"
	promptPassengersRetry   = "Sorry, I didn't catch a valid number of passengers. Please say the number of passengers."
	promptAskPickup         = "Okay. And where would you like to be picked up from?"
	promptPickupNotFound    = "I couldn't find that location. Please be more specific."
	promptPickupRetry       = "My apologies. Let's try the pickup location again. Where would you like to be picked up from?"
	promptAskDropoff        = "Got it. And where are you heading to?"
	promptDropoffNotFound   = "I couldn't find that destination. Please be more specific."
	promptDropoffRetry      = "My apologies. Let's try the destination again. Where are you heading to?"
	promptAskDateTime       = "Okay. For what date and time?"
	promptDateTimeRetry     = "I couldn't understand that date and time. Please try again, for example, by saying tomorrow at 5 PM."
	promptBookingConfirmed  = "Thank you. Your booking is confirmed. Goodbye."
	promptStartOver         = "Okay, let's start over. How many passengers will be riding?"
	promptSessionError      = "Sorry, there was an error with your session."
	promptGenericRetry      = "Sorry, I didn't catch that. Could you say it again?"
	promptPleaseHold        = "Sorry, something went wrong on our side. Let's try that once more."
)

func promptConfirmPickup(address string) string {
	return fmt.Sprintf("I found a location: %s. Is that correct?", address)
}

func promptConfirmDropoff(address string) string {
	return fmt.Sprintf("I found a destination: %s. Is that correct?", address)
}

func promptConfirmBooking(draft models.BookingDetails) string {
	return fmt.Sprintf(
		"Please confirm: A ride for %d from %s to %s for %s. Is this correct?",
		draft.Passengers,
		draft.PickupLocation,
		draft.DropoffLocation,
		draft.PickupDateTime.Format("Monday, 2 January 2006 at 15:04"),
	)
}

// promptFor returns the question that asks for the active stage's field.
func promptFor(state *models.ConversationState) string {
	switch state.Stage {
	case models.StageGatheringPassengers:
		return promptWelcome
	case models.StageGatheringPickup:
		return promptAskPickup
	case models.StageConfirmingPickup:
		if state.PendingPlace != nil {
			return promptConfirmPickup(state.PendingPlace.FormattedAddress)
		}
		return promptAskPickup
	case models.StageGatheringDropoff:
		return promptAskDropoff
	case models.StageConfirmingDropoff:
		if state.PendingPlace != nil {
			return promptConfirmDropoff(state.PendingPlace.FormattedAddress)
		}
		return promptAskDropoff
	case models.StageGatheringDateTime:
		return promptAskDateTime
	case models.StageConfirmingBooking:
		return promptConfirmBooking(state.Draft)
	default:
		return promptGenericRetry
	}
}
