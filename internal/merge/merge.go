// Package merge concatenates the normalized records of every source into one
// collection.
package merge

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heritage-atlas/heritage-cli/internal/model"
)

// ErrNoRecords is returned when no source produced a single record.
var ErrNoRecords = errors.New("merge: no source produced any records")

// SourceReader loads one source. source.Reader implements it.
type SourceReader interface {
	Read(ctx context.Context, spec model.SourceSpec) ([]model.NormalizedRecord, error)
}

// SourceResult is the outcome of reading one source.
type SourceResult struct {
	Path    string
	Records int
	Err     error
}

// Report summarises an aggregation.
type Report struct {
	Sources []SourceResult
	Total   int
}

// Failed returns the sources that were skipped.
func (r Report) Failed() []SourceResult {
	var out []SourceResult
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Aggregate reads every source, at most concurrency at a time, and
// concatenates their records in the order of specs. A source that fails is logged,
// reported and skipped. When nothing was produced the error is ErrNoRecords;
// a cancelled ctx returns ctx's error.
func Aggregate(ctx context.Context, specs []model.SourceSpec, reader SourceReader, concurrency int) ([]model.NormalizedRecord, Report, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	perSource := make([][]model.NormalizedRecord, len(specs))
	report := Report{Sources: make([]SourceResult, len(specs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			recs, err := reader.Read(gctx, spec)
			report.Sources[i] = SourceResult{Path: spec.Path, Records: len(recs), Err: err}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zap.L().Warn("merge: skipping source",
					zap.String("file", spec.Path),
					zap.Error(err),
				)
				report.Sources[i].Records = 0
				return nil
			}
			perSource[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	for _, recs := range perSource {
		report.Total += len(recs)
	}
	merged := make([]model.NormalizedRecord, 0, report.Total)
	for _, recs := range perSource {
		merged = append(merged, recs...)
	}

	zap.L().Info("merge: aggregated sources",
		zap.Int("sources", len(specs)),
		zap.Int("failed", len(report.Failed())),
		zap.Int("records", report.Total),
	)

	if len(merged) == 0 {
		return nil, report, ErrNoRecords
	}
	return merged, report, nil
}
