package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoogleServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleGeocode_Match(t *testing.T) {
	srv := newGoogleServer(t, `{
		"status": "OK",
		"results": [{
			"geometry": {
				"location": {"lat": 28.5244754, "lng": 77.1855206},
				"location_type": "GEOMETRIC_CENTER"
			},
			"formatted_address": "Qutub Minar, Mehrauli, New Delhi"
		}]
	}`)

	p := NewGoogleProvider("test-key", WithGoogleEndpoint(srv.URL), WithRegion("in"))
	out := p.Geocode(context.Background(), "Qutub Minar, Delhi")

	require.Equal(t, KindMatched, out.Kind)
	assert.Equal(t, 28.5244754, out.Result.Latitude)
	assert.Equal(t, 77.1855206, out.Result.Longitude)
	assert.Equal(t, "google", out.Result.Source)
	assert.Equal(t, "Qutub Minar, Mehrauli, New Delhi", out.Result.DisplayName)
}

func TestGoogleGeocode_StatusClassification(t *testing.T) {
	tests := []struct {
		body string
		want Kind
	}{
		{`{"status":"ZERO_RESULTS","results":[]}`, KindNoMatch},
		{`{"status":"OK","results":[]}`, KindNoMatch},
		{`{"status":"OVER_QUERY_LIMIT","results":[]}`, KindTransient},
		{`{"status":"UNKNOWN_ERROR","results":[]}`, KindTransient},
		{`{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`, KindPermanent},
		{`{"status":"INVALID_REQUEST","results":[]}`, KindPermanent},
	}

	for _, tt := range tests {
		srv := newGoogleServer(t, tt.body)
		out := NewGoogleProvider("test-key", WithGoogleEndpoint(srv.URL)).Geocode(context.Background(), "Somewhere")
		assert.Equal(t, tt.want, out.Kind, "body=%s", tt.body)
	}
}

func TestGoogleGeocode_NoKey(t *testing.T) {
	out := NewGoogleProvider("").Geocode(context.Background(), "Agra")
	assert.Equal(t, KindPermanent, out.Kind)
	assert.Error(t, out.Err)
}
