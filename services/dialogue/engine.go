// File: services/dialogue/engine.go
package dialogue

import (
	"context"
	"errors"
	"time"

	bookingRepo "voicecab/database/repository/booking"
	userRepo "voicecab/database/repository/user"
	"voicecab/models"
	"voicecab/services/geo"
	"voicecab/services/nlu"
	"voicecab/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Terminal tells the telephony layer whether to keep gathering speech or
// hang up.
type Terminal string

const (
	TerminalNone    Terminal = ""
	TerminalCreated Terminal = "CREATED"
	TerminalError   Terminal = "ERROR"
)

// TurnResult is what one conversation turn produces: the next spoken prompt
// and an optional terminal signal.
type TurnResult struct {
	Prompt   string
	Terminal Terminal
}

// DispatchTrigger kicks off driver assignment for a freshly created booking.
type DispatchTrigger interface {
	TriggerAssign(bookingID string)
}

// Engine is the booking dialogue state machine. Per turn it consults the NLU
// extractor, applies extractions to the draft under the field-ownership
// guard, and advances the stage from field completeness: the extractor is
// advisory, the draft is authoritative.
type Engine struct {
	Store          SessionStore
	Extractor      nlu.Extractor
	Bookings       bookingRepo.BookingRepository
	Users          userRepo.UserRepository
	Dispatch       DispatchTrigger
	ExtractTimeout time.Duration
	Now            func() time.Time
}

// NewEngine wires the dialogue engine.
func NewEngine(
	store SessionStore,
	extractor nlu.Extractor,
	bookings bookingRepo.BookingRepository,
	users userRepo.UserRepository,
	dispatch DispatchTrigger,
	extractTimeout time.Duration,
) *Engine {
	return &Engine{
		Store:          store,
		Extractor:      extractor,
		Bookings:       bookings,
		Users:          users,
		Dispatch:       dispatch,
		ExtractTimeout: extractTimeout,
		Now:            time.Now,
	}
}

// StartSession creates the conversation state for a new call and returns the
// greeting. An existing state for the same session id is replaced.
func (e *Engine) StartSession(sessionID, callerPhone string) (*TurnResult, error) {
	state := &models.ConversationState{
		SessionID: sessionID,
		Stage:     models.StageGatheringPassengers,
		Draft:     models.BookingDetails{PhoneNumber: callerPhone},
	}
	if err := e.Store.Create(state); err != nil {
		return nil, err
	}
	return &TurnResult{Prompt: promptWelcome}, nil
}

// Advance applies one caller utterance to the session. Turns for the same
// session are serialized by the store; the per-session lock is held for the
// whole turn, including the extractor call.
func (e *Engine) Advance(ctx context.Context, sessionID, utterance string) (*TurnResult, error) {
	var result *TurnResult
	err := e.Store.Do(sessionID, func() error {
		state, err := e.Store.Get(sessionID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				result = &TurnResult{Prompt: promptSessionError, Terminal: TerminalError}
				return nil
			}
			return err
		}
		result = e.advanceTurn(ctx, state, utterance)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) advanceTurn(ctx context.Context, state *models.ConversationState, utterance string) *TurnResult {
	logger := utils.GetLogger()

	extractCtx, cancel := context.WithTimeout(ctx, e.ExtractTimeout)
	defer cancel()

	extraction, err := e.Extractor.Extract(extractCtx, nlu.Request{
		Stage:     state.Stage,
		Utterance: utterance,
		Draft:     state.Draft,
	})
	if err != nil {
		// Fail soft: the turn is retried on the next utterance, the draft is
		// untouched.
		logger.Warn("extraction failed",
			zap.String("sessionId", state.SessionID),
			zap.String("stage", string(state.Stage)),
			zap.Error(err))
		return &TurnResult{Prompt: extractionFailurePrompt(state.Stage, err)}
	}

	switch state.Stage {
	case models.StageGatheringPassengers:
		return e.applyPassengers(state, extraction)
	case models.StageGatheringPickup, models.StageGatheringDropoff:
		return e.applyLocation(state, extraction)
	case models.StageConfirmingPickup, models.StageConfirmingDropoff:
		return e.applyLocationConfirmation(state, extraction)
	case models.StageGatheringDateTime:
		return e.applyDateTime(state, extraction)
	case models.StageConfirmingBooking:
		return e.applyBookingConfirmation(state, extraction)
	default:
		logger.Error("conversation in unknown stage",
			zap.String("sessionId", state.SessionID),
			zap.String("stage", string(state.Stage)))
		return &TurnResult{Prompt: promptGenericRetry}
	}
}

// applyPassengers owns BookingDetails.Passengers. Anything else the
// extractor volunteered is ignored here: a field is only written while its
// stage is active.
func (e *Engine) applyPassengers(state *models.ConversationState, extraction *nlu.Result) *TurnResult {
	if extraction.Passengers <= 0 {
		return &TurnResult{Prompt: promptPassengersRetry}
	}
	state.Draft.Passengers = extraction.Passengers
	return e.saveAndAsk(state)
}

// applyLocation owns the pickup or dropoff location, depending on the active
// stage. A geocoded candidate detours through the confirmation branch; raw
// text commits directly.
func (e *Engine) applyLocation(state *models.ConversationState, extraction *nlu.Result) *TurnResult {
	pickup := state.Stage == models.StageGatheringPickup

	if extraction.Candidate != nil {
		state.PendingPlace = extraction.Candidate
		if pickup {
			state.Stage = models.StageConfirmingPickup
		} else {
			state.Stage = models.StageConfirmingDropoff
		}
		if err := e.Store.Save(state); err != nil {
			return e.saveFailure(state, err)
		}
		if pickup {
			return &TurnResult{Prompt: promptConfirmPickup(extraction.Candidate.FormattedAddress)}
		}
		return &TurnResult{Prompt: promptConfirmDropoff(extraction.Candidate.FormattedAddress)}
	}

	if extraction.LocationQuery == "" {
		if pickup {
			return &TurnResult{Prompt: promptAskPickup}
		}
		return &TurnResult{Prompt: promptAskDropoff}
	}

	if pickup {
		state.Draft.PickupLocation = extraction.LocationQuery
	} else {
		state.Draft.DropoffLocation = extraction.LocationQuery
	}
	return e.saveAndAsk(state)
}

// applyLocationConfirmation resolves the pending candidate. "No" discards it
// and returns to the gathering stage; an unclear answer repeats the question.
func (e *Engine) applyLocationConfirmation(state *models.ConversationState, extraction *nlu.Result) *TurnResult {
	pickup := state.Stage == models.StageConfirmingPickup

	if state.PendingPlace == nil {
		// Nothing to confirm; fall back to asking again.
		if pickup {
			state.Stage = models.StageGatheringPickup
		} else {
			state.Stage = models.StageGatheringDropoff
		}
		if err := e.Store.Save(state); err != nil {
			return e.saveFailure(state, err)
		}
		return &TurnResult{Prompt: promptFor(state)}
	}

	if extraction.Confirmation == nil {
		return &TurnResult{Prompt: promptFor(state)}
	}

	if !*extraction.Confirmation {
		state.PendingPlace = nil
		if pickup {
			state.Stage = models.StageGatheringPickup
		} else {
			state.Stage = models.StageGatheringDropoff
		}
		if err := e.Store.Save(state); err != nil {
			return e.saveFailure(state, err)
		}
		if pickup {
			return &TurnResult{Prompt: promptPickupRetry}
		}
		return &TurnResult{Prompt: promptDropoffRetry}
	}

	place := state.PendingPlace
	if pickup {
		state.Draft.PickupLocation = place.FormattedAddress
		state.Draft.PickupLat = place.Lat
		state.Draft.PickupLng = place.Lng
	} else {
		state.Draft.DropoffLocation = place.FormattedAddress
		state.Draft.DropoffLat = place.Lat
		state.Draft.DropoffLng = place.Lng
	}
	state.PendingPlace = nil
	return e.saveAndAsk(state)
}

// applyDateTime owns BookingDetails.PickupDateTime. The not-in-the-past rule
// is enforced here, not just in the extractors; like the passenger count, the
// extracted value is advisory until the engine accepts it.
func (e *Engine) applyDateTime(state *models.ConversationState, extraction *nlu.Result) *TurnResult {
	if extraction.PickupAt.IsZero() || extraction.PickupAt.Before(e.Now()) {
		return &TurnResult{Prompt: promptDateTimeRetry}
	}
	state.Draft.PickupDateTime = extraction.PickupAt
	return e.saveAndAsk(state)
}

// applyBookingConfirmation finishes or restarts the conversation. "No"
// deliberately discards every gathered field and starts from scratch.
func (e *Engine) applyBookingConfirmation(state *models.ConversationState, extraction *nlu.Result) *TurnResult {
	confirmed := extraction.Confirmation
	if confirmed == nil && extraction.Action == nlu.ActionReset {
		v := false
		confirmed = &v
	}
	if confirmed == nil {
		return &TurnResult{Prompt: promptConfirmBooking(state.Draft)}
	}

	if !*confirmed {
		fresh := &models.ConversationState{
			SessionID: state.SessionID,
			Stage:     models.StageGatheringPassengers,
			Draft:     models.BookingDetails{PhoneNumber: state.Draft.PhoneNumber},
		}
		if err := e.Store.Save(fresh); err != nil {
			return e.saveFailure(state, err)
		}
		return &TurnResult{Prompt: promptStartOver}
	}

	return e.finalize(state)
}

// finalize persists the confirmed booking, deletes the session, and triggers
// dispatch. Persistence failures keep the session so the caller can confirm
// again.
func (e *Engine) finalize(state *models.ConversationState) *TurnResult {
	logger := utils.GetLogger()

	user, err := e.Users.FindOrCreateByPhone(state.Draft.PhoneNumber)
	if err != nil {
		logger.Error("failed to resolve caller account",
			zap.String("sessionId", state.SessionID), zap.Error(err))
		return &TurnResult{Prompt: promptPleaseHold}
	}
	state.Draft.UserID = user.ID

	booking := &models.Booking{
		ID:        uuid.New().String(),
		Details:   state.Draft,
		Status:    models.BookingStatusConfirmed,
		CreatedAt: time.Now(),
	}
	if err := e.Bookings.Create(booking); err != nil {
		logger.Error("failed to persist booking",
			zap.String("sessionId", state.SessionID), zap.Error(err))
		return &TurnResult{Prompt: promptPleaseHold}
	}

	if err := e.Store.Delete(state.SessionID); err != nil {
		logger.Warn("failed to delete conversation state",
			zap.String("sessionId", state.SessionID), zap.Error(err))
	}

	if e.Dispatch != nil {
		e.Dispatch.TriggerAssign(booking.ID)
	}

	logger.Info("booking created from conversation",
		zap.String("sessionId", state.SessionID),
		zap.String("bookingId", booking.ID),
		zap.Int("passengers", booking.Details.Passengers))

	return &TurnResult{Prompt: promptBookingConfirmed, Terminal: TerminalCreated}
}

// saveAndAsk persists the state, advances the stage from field completeness,
// and asks for the next missing field.
func (e *Engine) saveAndAsk(state *models.ConversationState) *TurnResult {
	state.Stage = nextStage(state.Draft)
	if err := e.Store.Save(state); err != nil {
		return e.saveFailure(state, err)
	}
	return &TurnResult{Prompt: promptFor(state)}
}

func (e *Engine) saveFailure(state *models.ConversationState, err error) *TurnResult {
	utils.GetLogger().Error("failed to save conversation state",
		zap.String("sessionId", state.SessionID), zap.Error(err))
	return &TurnResult{Prompt: promptPleaseHold}
}

// nextStage derives the stage from which draft fields are still empty. This
// is what actually moves the conversation forward; a malformed extractor
// action can never skip a mandatory field.
func nextStage(draft models.BookingDetails) models.Stage {
	switch {
	case draft.Passengers <= 0:
		return models.StageGatheringPassengers
	case draft.PickupLocation == "":
		return models.StageGatheringPickup
	case draft.DropoffLocation == "":
		return models.StageGatheringDropoff
	case draft.PickupDateTime.IsZero():
		return models.StageGatheringDateTime
	default:
		return models.StageConfirmingBooking
	}
}

func extractionFailurePrompt(stage models.Stage, err error) string {
	if errors.Is(err, geo.ErrNotFound) {
		switch stage {
		case models.StageGatheringPickup:
			return promptPickupNotFound
		case models.StageGatheringDropoff:
			return promptDropoffNotFound
		}
	}
	return promptGenericRetry
}
