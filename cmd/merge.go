package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heritage-atlas/heritage-cli/internal/dataset"
	"github.com/heritage-atlas/heritage-cli/internal/enrich"
	"github.com/heritage-atlas/heritage-cli/internal/merge"
	"github.com/heritage-atlas/heritage-cli/internal/model"
	"github.com/heritage-atlas/heritage-cli/internal/source"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge source exports into one geocoded dataset",
	Long: `Reads every configured source (a manifest, or all .csv/.xlsx files in a
directory), normalizes each onto the canonical schema, concatenates them,
attaches coordinates through the geocode cache and writes the final CSV.

Examples:
  # Merge everything under ./data using defaults
  heritage-cli merge

  # Use a manifest and also write GeoJSON
  heritage-cli merge --manifest sources.yaml --geojson sites.geojson

  # Skip geocoding entirely
  heritage-cli merge --no-geocode`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyMergeFlags(cmd)
		if err := cfg.Validate("merge"); err != nil {
			return err
		}
		noGeocode, _ := cmd.Flags().GetBool("no-geocode")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runMerge(ctx, noGeocode)
	},
}

func applyMergeFlags(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetString("dir"); v != "" {
		cfg.Sources.Dir = v
	}
	if v, _ := cmd.Flags().GetString("manifest"); v != "" {
		cfg.Sources.Manifest = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output.CSV = v
	}
	if v, _ := cmd.Flags().GetString("geojson"); v != "" {
		cfg.Output.GeoJSON = v
	}
}

func loadSourceSpecs() ([]model.SourceSpec, error) {
	if cfg.Sources.Manifest != "" {
		return source.LoadManifest(cfg.Sources.Manifest, cfg.Sources.Dir)
	}
	return source.Discover(cfg.Sources.Dir)
}

func runMerge(ctx context.Context, noGeocode bool) error {
	log := zap.L().With(zap.String("run_id", runID))

	specs, err := loadSourceSpecs()
	if err != nil {
		return eris.Wrap(err, "merge: load sources")
	}
	log.Info("sources resolved", zap.Int("sources", len(specs)))

	reader := source.NewReader(cfg.Sources.FallbackEncoding)
	recs, report, err := merge.Aggregate(ctx, specs, reader, cfg.Sources.Concurrency)
	if err != nil {
		return err
	}
	for _, f := range report.Failed() {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", f.Path, f.Err)
	}

	var enriched []model.EnrichedRecord
	if noGeocode {
		enriched = make([]model.EnrichedRecord, len(recs))
		for i, r := range recs {
			enriched[i] = model.EnrichedRecord{NormalizedRecord: r}
		}
	} else {
		enriched, err = geocodeRecords(ctx, recs)
		if err != nil && enriched == nil {
			return err
		}
	}
	// After an interrupt enriched holds what is known so far; it is still
	// written and the interrupt is reported afterwards.
	runErr := err

	if err := dataset.WriteCSV(cfg.Output.CSV, enriched); err != nil {
		return err
	}
	if cfg.Output.GeoJSON != "" {
		if err := dataset.WriteGeoJSON(cfg.Output.GeoJSON, enriched); err != nil {
			return err
		}
	}

	log.Info("merge complete",
		zap.Int("records", len(enriched)),
		zap.Int("sources", len(report.Sources)),
		zap.Int("failed_sources", len(report.Failed())),
		zap.String("output", cfg.Output.CSV),
	)
	fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", len(enriched), cfg.Output.CSV)
	return runErr
}

func geocodeRecords(ctx context.Context, recs []model.NormalizedRecord) ([]model.EnrichedRecord, error) {
	client, err := initGeocoder(cfg.Geocode)
	if err != nil {
		return nil, err
	}
	cache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return nil, eris.Wrap(err, "merge: open geocode cache")
	}
	defer func() {
		if cerr := cache.Close(context.WithoutCancel(ctx)); cerr != nil {
			zap.L().Warn("merge: close geocode cache", zap.Error(cerr))
		}
	}()

	out, stats, err := enrich.New(client, cache).Enrich(ctx, recs)
	printEnrichStats(stats)
	return out, err
}

func printEnrichStats(s enrich.Stats) {
	fmt.Fprintf(os.Stderr, "Addresses: %d (cache hits %d, lookups %d)\n", s.Addresses, s.CacheHits, s.Lookups)
	fmt.Fprintf(os.Stderr, "Matched: %d  No match: %d  Transient: %d  Errors: %d\n",
		s.Matched, s.NoMatch, s.Transient, s.Permanent)
	if s.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "Skipped: %d (provider unavailable; rerun to retry)\n", s.Skipped)
	}
	if s.PersistFailures > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d cache writes failed; cached results may be incomplete\n", s.PersistFailures)
	}
}

func init() {
	mergeCmd.Flags().String("dir", "", "directory of source exports (overrides sources.dir)")
	mergeCmd.Flags().String("manifest", "", "YAML manifest describing the sources (overrides sources.manifest)")
	mergeCmd.Flags().StringP("output", "o", "", "output CSV path (overrides output.csv)")
	mergeCmd.Flags().String("geojson", "", "also write a GeoJSON FeatureCollection to this path")
	mergeCmd.Flags().Bool("no-geocode", false, "skip geocoding; coordinates are left empty")
	rootCmd.AddCommand(mergeCmd)
}
