package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"voicecab/models"
)

// ErrNotFound is returned when a query resolves to no place.
var ErrNotFound = errors.New("location not found")

// Geocoder resolves free-text location queries to geocoded places.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (*models.Place, error)
}

// GooglePlacesGeocoder resolves queries through the Places "find place from
// text" API, biased to a configurable search circle.
type GooglePlacesGeocoder struct {
	apiKey       string
	locationBias string
	baseURL      string
	client       *http.Client
}

const findPlaceURL = "https://maps.googleapis.com/maps/api/place/findplacefromtext/json"

// NewGooglePlacesGeocoder creates a geocoder using the given Maps API key.
// The bias circle covers Great Britain, matching the service's operating area.
func NewGooglePlacesGeocoder(apiKey string) *GooglePlacesGeocoder {
	return &GooglePlacesGeocoder{
		apiKey:       apiKey,
		locationBias: "circle:200000@54.5,-2.5",
		baseURL:      findPlaceURL,
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

// findPlaceResponse mirrors the fields we request from the Places API.
type findPlaceResponse struct {
	Status     string `json:"status"`
	Candidates []struct {
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"candidates"`
}

// Resolve returns the best candidate for the query, or ErrNotFound.
func (g *GooglePlacesGeocoder) Resolve(ctx context.Context, query string) (*models.Place, error) {
	params := url.Values{}
	params.Set("input", query)
	params.Set("inputtype", "textquery")
	params.Set("fields", "name,formatted_address,geometry")
	params.Set("locationbias", g.locationBias)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build find place request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("find place request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("find place returned status %d", resp.StatusCode)
	}

	var result findPlaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode find place response: %w", err)
	}

	if result.Status == "ZERO_RESULTS" || len(result.Candidates) == 0 {
		return nil, ErrNotFound
	}
	if result.Status != "OK" {
		return nil, fmt.Errorf("find place returned status %q", result.Status)
	}

	best := result.Candidates[0]
	place := &models.Place{
		Name:             best.Name,
		FormattedAddress: best.FormattedAddress,
		Lat:              best.Geometry.Location.Lat,
		Lng:              best.Geometry.Location.Lng,
	}
	if place.FormattedAddress == "" {
		place.FormattedAddress = best.Name
	}
	return place, nil
}
