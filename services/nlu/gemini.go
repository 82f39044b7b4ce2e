// File: services/nlu/gemini.go
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"voicecab/models"
	"voicecab/services/geo"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiExtractor backs the extractor contract with a generative model. The
// model answers with a single JSON object; anything else is an extraction
// error, which the dialogue engine degrades to a re-prompt.
type GeminiExtractor struct {
	model    *genai.GenerativeModel
	Geocoder geo.Geocoder // optional
}

// NewGeminiExtractor creates a Gemini-backed extractor.
func NewGeminiExtractor(apiKey string, geocoder geo.Geocoder) *GeminiExtractor {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		panic(fmt.Sprintf("failed to create Gemini client: %v", err))
	}

	model := client.GenerativeModel("models/gemini-1.5-pro")
	return &GeminiExtractor{model: model, Geocoder: geocoder}
}

// wireResult is the JSON shape the model is instructed to emit.
type wireResult struct {
	Action       string `json:"action"`
	Passengers   int    `json:"passengers,omitempty"`
	Location     string `json:"location,omitempty"`
	PickupTime   string `json:"pickup_time,omitempty"`
	Confirmation string `json:"confirmation,omitempty"`
	Say          string `json:"say,omitempty"`
}

// stageInstructions tells the model which field the active stage owns.
var stageInstructions = map[models.Stage]string{
	models.StageGatheringPassengers: `Extract the number of passengers as "passengers". It must be a positive integer; omit it if the caller did not state a usable count.`,
	models.StageGatheringPickup:     `Extract the pickup location the caller named as "location", verbatim. Do not invent an address.`,
	models.StageGatheringDropoff:    `Extract the destination the caller named as "location", verbatim. Do not invent an address.`,
	models.StageConfirmingPickup:    `The caller was asked to confirm a pickup address. Set "confirmation" to "yes" or "no"; omit it if the answer is unclear.`,
	models.StageConfirmingDropoff:   `The caller was asked to confirm a destination address. Set "confirmation" to "yes" or "no"; omit it if the answer is unclear.`,
	models.StageGatheringDateTime:   `Extract the requested pickup date and time as "pickup_time" in RFC 3339, resolved relative to the current time and never in the past. Omit it if the caller gave no usable time.`,
	models.StageConfirmingBooking:   `The caller was asked to confirm the whole booking. Set "confirmation" to "yes" or "no"; omit it if the answer is unclear.`,
}

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate error: %w", err)
	}

	content, err := collectText(resp)
	if err != nil {
		return nil, err
	}

	wire, err := ParseModelResponse(content)
	if err != nil {
		return nil, err
	}
	return g.toResult(ctx, req, wire)
}

// collectText concatenates the text parts of the first candidate. A
// safety-blocked or otherwise empty response carries no candidates (or a nil
// content) without an API error; that is an extraction failure, not a panic.
func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("model returned no usable candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return sb.String(), nil
}

func buildPrompt(req Request) (string, error) {
	instruction, ok := stageInstructions[req.Stage]
	if !ok {
		return "", fmt.Errorf("unknown dialogue stage %q", req.Stage)
	}

	draft, err := json.Marshal(req.Draft)
	if err != nil {
		return "", fmt.Errorf("marshal draft snapshot: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are the listening half of a taxi booking phone agent.\n")
	sb.WriteString("Respond with exactly one JSON object and nothing else, shaped as:\n")
	sb.WriteString(`{"action":"ask_field|confirm_location|confirm_booking|reset|error","passengers":0,"location":"","pickup_time":"","confirmation":"","say":""}` + "\n\n")
	sb.WriteString("Current time: " + time.Now().Format(time.RFC3339) + "\n")
	sb.WriteString("Dialogue stage: " + string(req.Stage) + "\n")
	sb.WriteString("Booking so far: " + string(draft) + "\n")
	sb.WriteString("Task: " + instruction + "\n")
	sb.WriteString("Caller said: " + quote(req.Utterance) + "\n")
	return sb.String(), nil
}

// quote wraps the utterance so stray newlines cannot break the prompt.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// ParseModelResponse extracts the JSON object from the model output,
// tolerating markdown code fences and surrounding prose.
func ParseModelResponse(content string) (*wireResult, error) {
	content = strings.TrimSpace(content)
	if fenced := strings.TrimPrefix(content, "```json"); fenced != content {
		content = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	} else if fenced := strings.TrimPrefix(content, "```"); fenced != content {
		content = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("model response contains no JSON object")
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}
	return &wire, nil
}

// toResult converts the wire payload into the extractor contract, geocoding
// an extracted location when a geocoder is configured.
func (g *GeminiExtractor) toResult(ctx context.Context, req Request, wire *wireResult) (*Result, error) {
	result := &Result{
		Action:        Action(wire.Action),
		AssistantText: wire.Say,
	}
	switch result.Action {
	case ActionAskField, ActionConfirmLocation, ActionConfirmBooking, ActionReset, ActionError:
	default:
		result.Action = ActionAskField
	}

	if wire.Passengers > 0 {
		result.Passengers = wire.Passengers
	}

	switch wire.Confirmation {
	case "yes":
		v := true
		result.Confirmation = &v
	case "no":
		v := false
		result.Confirmation = &v
	}

	if wire.PickupTime != "" {
		if at, err := time.Parse(time.RFC3339, wire.PickupTime); err == nil {
			result.PickupAt = at
		}
	}

	if loc := strings.TrimSpace(wire.Location); loc != "" {
		if g.Geocoder == nil {
			result.LocationQuery = loc
		} else {
			place, err := g.Geocoder.Resolve(ctx, loc)
			if err != nil {
				return nil, err
			}
			result.Candidate = place
			result.Action = ActionConfirmLocation
		}
	}

	return result, nil
}
