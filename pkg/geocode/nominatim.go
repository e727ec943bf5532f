package geocode

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	nominatimURL       = "https://nominatim.openstreetmap.org"
	defaultUserAgent   = "heritage-cli/1.0"
	nominatimProviderN = "nominatim"
)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimOption configures a NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimBaseURL points the provider at a different Nominatim instance.
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header; the public instance rejects
// requests without an identifying one.
func WithUserAgent(ua string) NominatimOption {
	return func(p *NominatimProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithCountryCodes restricts results to the given ISO 3166-1 alpha-2 list
// (comma separated).
func WithCountryCodes(codes string) NominatimOption {
	return func(p *NominatimProvider) {
		p.countryCodes = codes
	}
}

// WithNominatimHTTPClient sets the HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) {
		p.httpClient = hc
	}
}

// NominatimProvider geocodes through the OpenStreetMap Nominatim search API.
type NominatimProvider struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	countryCodes string
}

// NewNominatimProvider creates a provider for the public Nominatim instance.
func NewNominatimProvider(opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    nominatimURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return nominatimProviderN }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, address string) Outcome {
	params := url.Values{
		"q":      {address},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if p.countryCodes != "" {
		params.Set("countrycodes", p.countryCodes)
	}

	header := http.Header{}
	header.Set("User-Agent", p.userAgent)
	header.Set("Accept", "application/json")

	var places []nominatimPlace
	if failed := getJSON(ctx, p.httpClient, p.baseURL+"/search?"+params.Encode(), header, &places); failed != nil {
		return *failed
	}
	if len(places) == 0 {
		return NoMatch()
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Permanent(eris.Wrapf(err, "geocode: nominatim latitude %q", places[0].Lat))
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Permanent(eris.Wrapf(err, "geocode: nominatim longitude %q", places[0].Lon))
	}

	return Matched(Result{
		Latitude:    lat,
		Longitude:   lon,
		Source:      nominatimProviderN,
		DisplayName: places[0].DisplayName,
	})
}
