package nlu

import (
	"context"
	"testing"
	"time"

	"voicecab/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePassengers(t *testing.T) {
	cases := []struct {
		utterance string
		want      int
	}{
		{"2", 2},
		{"2 people please", 2},
		{"there will be 12 of us", 12},
		{"three", 3},
		{"Three passengers.", 3},
		{"just one", 1},
		{"zero", 0},
		{"-1", 0},
		{"a big group", 0},
		{"", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parsePassengers(tc.utterance), "utterance %q", tc.utterance)
	}
}

func TestParseYesNo(t *testing.T) {
	yes := parseYesNo("yes that's right")
	require.NotNil(t, yes)
	assert.True(t, *yes)

	no := parseYesNo("Nope, wrong one")
	require.NotNil(t, no)
	assert.False(t, *no)

	// A denial wins when both appear.
	mixed := parseYesNo("no, that's not right, yes?")
	require.NotNil(t, mixed)
	assert.False(t, *mixed)

	assert.Nil(t, parseYesNo("maybe later"))
	assert.Nil(t, parseYesNo(""))
}

func TestParsePickupTime(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	r := NewRulesExtractor(nil)
	r.Now = func() time.Time { return now }

	got := r.parsePickupTime("tomorrow at 5 PM")
	assert.Equal(t, time.Date(2025, 1, 16, 17, 0, 0, 0, time.UTC), got.UTC())

	// Past moments are treated as unparsed so the caller gets re-asked.
	assert.True(t, r.parsePickupTime("yesterday at 5 PM").IsZero())
	assert.True(t, r.parsePickupTime("whenever works").IsZero())
}

func TestExtractLocationWithoutGeocoder(t *testing.T) {
	r := NewRulesExtractor(nil)

	result, err := r.Extract(context.Background(), Request{
		Stage:     models.StageGatheringPickup,
		Utterance: "  22 Baker Street  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "22 Baker Street", result.LocationQuery)
	assert.Nil(t, result.Candidate)

	result, err = r.Extract(context.Background(), Request{
		Stage:     models.StageGatheringDropoff,
		Utterance: "   ",
	})
	require.NoError(t, err)
	assert.Empty(t, result.LocationQuery)
}

func TestExtractRoutesByStage(t *testing.T) {
	r := NewRulesExtractor(nil)
	ctx := context.Background()

	result, err := r.Extract(ctx, Request{Stage: models.StageConfirmingBooking, Utterance: "yes"})
	require.NoError(t, err)
	require.NotNil(t, result.Confirmation)
	assert.True(t, *result.Confirmation)
	assert.Equal(t, ActionConfirmBooking, result.Action)

	_, err = r.Extract(ctx, Request{Stage: models.Stage("BOGUS"), Utterance: "yes"})
	assert.Error(t, err)
}
