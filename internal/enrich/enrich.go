// Package enrich attaches coordinates to normalized records through the
// geocode cache and a rate-limited provider.
package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heritage-atlas/heritage-cli/internal/geocache"
	"github.com/heritage-atlas/heritage-cli/internal/model"
	"github.com/heritage-atlas/heritage-cli/internal/progress"
	"github.com/heritage-atlas/heritage-cli/pkg/geocode"
)

// Geocoder resolves one address. *geocode.Client implements it.
type Geocoder interface {
	Lookup(ctx context.Context, address string) geocode.Outcome
	Provider() string
}

// Stats counts what a run did.
type Stats struct {
	Records   int
	Addresses int
	CacheHits int
	Lookups   int
	Matched   int
	NoMatch   int
	Transient int
	Permanent int
	// Skipped counts addresses never sent to the provider (breaker open, or
	// no rate-limit slot before ctx's deadline). They are left uncached so
	// the next run looks them up.
	Skipped int
	// PersistFailures counts checkpoints or final flushes that failed.
	PersistFailures int
}

// Enricher runs the enrichment pass. Lookups are issued one at a time; the
// provider's rate limit is global and parallel calls would only queue.
type Enricher struct {
	geocoder Geocoder
	cache    *geocache.Cache
	log      *zap.Logger
}

// New returns an Enricher over geocoder and cache.
func New(geocoder Geocoder, cache *geocache.Cache) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		cache:    cache,
		log:      zap.L().With(zap.String("provider", geocoder.Provider())),
	}
}

// Enrich resolves every distinct address of recs exactly once, reusing
// cached outcomes (including cached no-results), and returns recs with
// coordinates attached in input order.
//
// Provider failures never abort the run: they are cached as no-result.
// Failing to persist the cache is logged and counted but does not fail the
// run. If ctx is cancelled the lookups done so far are flushed and the
// records are returned with whatever coordinates are known, together with
// ctx's error.
func (e *Enricher) Enrich(ctx context.Context, recs []model.NormalizedRecord) ([]model.EnrichedRecord, Stats, error) {
	stats := Stats{Records: len(recs)}

	var misses []string
	seen := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.Address]; ok {
			continue
		}
		seen[r.Address] = struct{}{}
		if entry, ok := e.cache.Get(r.Address); ok {
			stats.CacheHits++
			e.log.Debug("enrich: cache hit",
				zap.String("address", r.Address),
				zap.String("status", string(entry.Status)),
			)
			continue
		}
		misses = append(misses, r.Address)
	}
	stats.Addresses = len(seen)

	e.log.Info("enrich: starting",
		zap.Int("records", stats.Records),
		zap.Int("addresses", stats.Addresses),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("lookups", len(misses)),
	)

	bar := progress.New(len(misses), "Geocoding")
	runErr := e.lookupAll(ctx, misses, bar, &stats)
	bar.Finish()

	// Flush even when cancelled so finished lookups are not lost.
	if err := e.cache.Flush(context.WithoutCancel(ctx)); err != nil {
		stats.PersistFailures++
		e.log.Warn("enrich: cache flush failed, results of this run are kept in memory only", zap.Error(err))
	}

	out := make([]model.EnrichedRecord, len(recs))
	for i, r := range recs {
		out[i] = model.EnrichedRecord{NormalizedRecord: r}
		if entry, ok := e.cache.Get(r.Address); ok {
			out[i].Latitude, out[i].Longitude = entry.Coordinates()
		}
	}

	if runErr != nil {
		return out, stats, runErr
	}

	e.log.Info("enrich: done",
		zap.Int("lookups", stats.Lookups),
		zap.Int("matched", stats.Matched),
		zap.Int("no_match", stats.NoMatch),
		zap.Int("transient", stats.Transient),
		zap.Int("permanent", stats.Permanent),
		zap.Int("skipped", stats.Skipped),
		zap.Int("persist_failures", stats.PersistFailures),
	)
	return out, stats, nil
}

func (e *Enricher) lookupAll(ctx context.Context, addresses []string, bar *progress.Bar, stats *Stats) error {
	source := e.geocoder.Provider()
	for i, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "enrich: interrupted")
		}

		out := e.geocoder.Lookup(ctx, addr)
		if ctx.Err() != nil {
			// The outcome reflects the interruption, not the address.
			return eris.Wrap(ctx.Err(), "enrich: interrupted")
		}
		if out.Attempts > 0 {
			stats.Lookups++
		}

		var err error
		switch out.Kind {
		case geocode.KindMatched:
			stats.Matched++
			src := source
			if out.Result.Source != "" {
				src = out.Result.Source
			}
			err = e.cache.PutMatched(ctx, addr, out.Result.Latitude, out.Result.Longitude, src)
		case geocode.KindNoMatch:
			stats.NoMatch++
			e.log.Debug("enrich: no match", zap.String("address", addr))
			err = e.cache.PutNoResult(ctx, addr, source)
		case geocode.KindSkipped:
			stats.Skipped++
			e.log.Debug("enrich: provider not called, leaving uncached",
				zap.String("address", addr),
				zap.Error(out.Err),
			)
		case geocode.KindTransient:
			stats.Transient++
			e.log.Warn("enrich: retries exhausted, recording no result",
				zap.String("address", addr),
				zap.Int("attempts", out.Attempts),
				zap.Error(out.Err),
			)
			err = e.cache.PutNoResult(ctx, addr, source)
		default:
			stats.Permanent++
			e.log.Warn("enrich: provider error, recording no result",
				zap.String("address", addr),
				zap.Error(out.Err),
			)
			err = e.cache.PutNoResult(ctx, addr, source)
		}
		if err != nil {
			stats.PersistFailures++
			e.log.Warn("enrich: cache checkpoint failed", zap.Error(err))
		}

		if !bar.Enabled() && (i+1)%50 == 0 {
			e.log.Info("enrich: progress", zap.Int("done", i+1), zap.Int("total", len(addresses)))
		}
		bar.Add()
	}
	return nil
}
