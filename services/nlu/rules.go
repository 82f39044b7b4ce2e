// File: services/nlu/rules.go
package nlu

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"voicecab/models"
	"voicecab/services/geo"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// RulesExtractor is the deterministic extractor. It needs no upstream model:
// passenger counts come from a number pattern, yes/no from keyword matching,
// and pickup times from natural-language date parsing. Location utterances
// are geocoded when a geocoder is configured; otherwise the raw text is
// passed through and the dialogue skips the confirmation branch.
type RulesExtractor struct {
	Geocoder geo.Geocoder // optional
	Now      func() time.Time

	dates *when.Parser
}

// NewRulesExtractor creates the deterministic extractor.
func NewRulesExtractor(geocoder geo.Geocoder) *RulesExtractor {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &RulesExtractor{
		Geocoder: geocoder,
		Now:      time.Now,
		dates:    w,
	}
}

var (
	numberPattern = regexp.MustCompile(`-?\d+`)
	yesPattern    = regexp.MustCompile(`(?i)\b(yes|yeah|yep|correct|right|sure)\b`)
	noPattern     = regexp.MustCompile(`(?i)\b(no|nope|nah|wrong|incorrect)\b`)
)

// numberWords covers small spoken counts the speech gateway tends to spell out.
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12,
}

// Extract implements Extractor.
func (r *RulesExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	switch req.Stage {
	case models.StageGatheringPassengers:
		return &Result{Action: ActionAskField, Passengers: parsePassengers(req.Utterance)}, nil

	case models.StageGatheringPickup, models.StageGatheringDropoff:
		return r.extractLocation(ctx, req.Utterance)

	case models.StageConfirmingPickup, models.StageConfirmingDropoff:
		return &Result{Action: ActionConfirmLocation, Confirmation: parseYesNo(req.Utterance)}, nil

	case models.StageGatheringDateTime:
		return &Result{Action: ActionAskField, PickupAt: r.parsePickupTime(req.Utterance)}, nil

	case models.StageConfirmingBooking:
		return &Result{Action: ActionConfirmBooking, Confirmation: parseYesNo(req.Utterance)}, nil

	default:
		return nil, fmt.Errorf("unknown dialogue stage %q", req.Stage)
	}
}

func (r *RulesExtractor) extractLocation(ctx context.Context, utterance string) (*Result, error) {
	query := strings.TrimSpace(utterance)
	if query == "" {
		return &Result{Action: ActionAskField}, nil
	}
	if r.Geocoder == nil {
		return &Result{Action: ActionAskField, LocationQuery: query}, nil
	}

	place, err := r.Geocoder.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Result{Action: ActionConfirmLocation, Candidate: place}, nil
}

// parsePassengers returns the extracted count, or 0 when the utterance does
// not contain a usable positive integer.
func parsePassengers(utterance string) int {
	if m := numberPattern.FindString(utterance); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n <= 0 {
			return 0
		}
		return n
	}
	for _, word := range strings.Fields(strings.ToLower(utterance)) {
		if n, ok := numberWords[strings.Trim(word, ".,!?")]; ok {
			if n <= 0 {
				return 0
			}
			return n
		}
	}
	return 0
}

// parseYesNo returns nil when the utterance is neither an affirmation nor a
// denial. A denial wins when both appear ("no, that's not right, yes?").
func parseYesNo(utterance string) *bool {
	if noPattern.MatchString(utterance) {
		v := false
		return &v
	}
	if yesPattern.MatchString(utterance) {
		v := true
		return &v
	}
	return nil
}

// parsePickupTime resolves phrases like "tomorrow at 10 PM" relative to the
// current time. Ambiguity resolves forward; anything in the past is treated
// as unparsed so the caller is re-asked.
func (r *RulesExtractor) parsePickupTime(utterance string) time.Time {
	now := r.Now()
	result, err := r.dates.Parse(utterance, now)
	if err != nil || result == nil {
		return time.Time{}
	}
	if result.Time.Before(now) {
		return time.Time{}
	}
	return result.Time
}
