package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/heritage-atlas/heritage-cli/internal/resilience"
)

// getJSON performs a GET and decodes a JSON body into dst. A non-nil
// Outcome means the request failed and has already been classified.
func getJSON(ctx context.Context, hc *http.Client, reqURL string, header http.Header, dst any) *Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		o := Permanent(eris.Wrap(err, "geocode: build request"))
		return &o
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		o := classifyTransportError(eris.Wrap(err, "geocode: request"))
		return &o
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := eris.Errorf("geocode: provider returned status %d", resp.StatusCode)
		var o Outcome
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			o = Outcome{Kind: KindTransient, Err: resilience.NewTransientError(statusErr, resp.StatusCode)}
		} else {
			o = Permanent(statusErr)
		}
		return &o
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		o := classifyTransportError(eris.Wrap(err, "geocode: decode response"))
		return &o
	}
	return nil
}

func classifyTransportError(err error) Outcome {
	if errors.Is(err, context.Canceled) {
		return Permanent(err)
	}
	if resilience.IsTransient(err) {
		return Transient(err)
	}
	return Permanent(err)
}
