package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heritage-atlas/heritage-cli/internal/config"
	"github.com/heritage-atlas/heritage-cli/internal/db"
	"github.com/heritage-atlas/heritage-cli/internal/geocache"
	"github.com/heritage-atlas/heritage-cli/internal/llmgeo"
	"github.com/heritage-atlas/heritage-cli/internal/resilience"
	"github.com/heritage-atlas/heritage-cli/pkg/anthropic"
	"github.com/heritage-atlas/heritage-cli/pkg/geocode"
	"github.com/heritage-atlas/heritage-cli/pkg/groq"
)

// initCacheStore opens the configured geocode cache backend.
func initCacheStore(ctx context.Context, c config.CacheConfig) (geocache.Store, error) {
	switch c.Driver {
	case "file", "":
		return geocache.NewFileStore(c.Path), nil
	case "sqlite":
		return geocache.NewSQLite(ctx, c.Path)
	case "postgres":
		pool, err := db.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st := geocache.NewPostgres(pool, c.Table)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", c.Driver)
	}
}

// openCache opens the store and loads the cache from it.
func openCache(ctx context.Context, c config.CacheConfig) (*geocache.Cache, error) {
	st, err := initCacheStore(ctx, c)
	if err != nil {
		return nil, err
	}
	cache, err := geocache.Open(ctx, st,
		geocache.WithCheckpointEvery(c.CheckpointEvery),
		geocache.WithRunID(runID),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	zap.L().Info("geocode cache loaded",
		zap.String("driver", c.Driver),
		zap.Int("entries", cache.Len()),
	)
	return cache, nil
}

// initGeocoder builds the configured provider wrapped in a paced, retrying client.
func initGeocoder(c config.GeocodeConfig) (*geocode.Client, error) {
	hc := &http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}

	var p geocode.Provider
	switch c.Provider {
	case "nominatim":
		opts := []geocode.NominatimOption{
			geocode.WithUserAgent(c.UserAgent),
			geocode.WithCountryCodes(c.CountryCodes),
			geocode.WithNominatimHTTPClient(hc),
		}
		if c.BaseURL != "" {
			opts = append(opts, geocode.WithNominatimBaseURL(c.BaseURL))
		}
		p = geocode.NewNominatimProvider(opts...)
	case "google":
		opts := []geocode.GoogleOption{
			geocode.WithRegion(c.CountryCodes),
			geocode.WithGoogleHTTPClient(hc),
		}
		if c.BaseURL != "" {
			opts = append(opts, geocode.WithGoogleEndpoint(c.BaseURL))
		}
		p = geocode.NewGoogleProvider(c.GoogleKey, opts...)
	default:
		return nil, eris.Errorf("unsupported geocode provider: %s", c.Provider)
	}

	breakerCfg := resilience.FromCircuitConfig(c.BreakerThreshold, c.BreakerCooldownSecs)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("geocode: provider circuit changed state",
			zap.String("provider", p.Name()),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	return geocode.NewClient(p,
		geocode.WithMinDelay(time.Duration(c.MinDelayMs)*time.Millisecond),
		geocode.WithRetry(resilience.FromRetryConfig(c.MaxAttempts, c.RetryWaitMs)),
		geocode.WithBreaker(resilience.NewCircuitBreaker(breakerCfg)),
	), nil
}

// initCompleter builds the configured text-generation backend.
func initCompleter(c config.LLMConfig) (llmgeo.Completer, error) {
	switch c.Provider {
	case "groq":
		opts := []groq.Option{
			groq.WithBaseURL(c.GroqBaseURL),
			groq.WithTemperature(c.Temperature),
			groq.WithMaxTokens(c.MaxTokens),
		}
		if c.Model != "" {
			opts = append(opts, groq.WithModel(c.Model))
		}
		return groq.NewClient(c.GroqKey, opts...), nil
	case "anthropic":
		model := c.Model
		if model == "" {
			model = anthropic.DefaultModel
		}
		return anthropic.NewCompleter(anthropic.NewClient(c.AnthropicKey), model, int64(c.MaxTokens), c.Temperature), nil
	default:
		return nil, eris.Errorf("unsupported llm provider: %s", c.Provider)
	}
}
