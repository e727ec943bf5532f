package geocode

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleProvider geocodes through the Google Geocoding API.
type GoogleProvider struct {
	apiKey     string
	endpoint   string
	region     string
	httpClient *http.Client
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleEndpoint overrides the API endpoint.
func WithGoogleEndpoint(u string) GoogleOption {
	return func(p *GoogleProvider) {
		if u != "" {
			p.endpoint = u
		}
	}
}

// WithRegion biases results towards a ccTLD region code, e.g. "in".
func WithRegion(region string) GoogleOption {
	return func(p *GoogleProvider) {
		p.region = region
	}
}

// WithGoogleHTTPClient sets the HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) {
		p.httpClient = hc
	}
}

// NewGoogleProvider creates a Google provider with the given API key.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		apiKey:     apiKey,
		endpoint:   googleGeocodeURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, address string) Outcome {
	if p.apiKey == "" {
		return Permanent(eris.New("geocode: google api key not configured"))
	}

	params := url.Values{
		"address": {address},
		"key":     {p.apiKey},
	}
	if p.region != "" {
		params.Set("region", p.region)
	}

	var resp googleGeocodeResponse
	if failed := getJSON(ctx, p.httpClient, p.endpoint+"?"+params.Encode(), nil, &resp); failed != nil {
		return *failed
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return NoMatch()
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return Transient(eris.Errorf("geocode: google status %s", resp.Status))
	default:
		return Permanent(eris.Errorf("geocode: google status %s: %s", resp.Status, resp.ErrorMessage))
	}
	if len(resp.Results) == 0 {
		return NoMatch()
	}

	result := resp.Results[0]
	return Matched(Result{
		Latitude:    result.Geometry.Location.Lat,
		Longitude:   result.Geometry.Location.Lng,
		Source:      "google",
		DisplayName: result.FormattedAddress,
	})
}
