package source

import (
	"context"

	"go.uber.org/zap"

	"github.com/heritage-atlas/heritage-cli/internal/model"
)

// Reader loads and normalizes one source file.
type Reader struct {
	FallbackEncoding string
}

// NewReader returns a Reader decoding non-UTF-8 files with fallbackEncoding.
func NewReader(fallbackEncoding string) *Reader {
	if fallbackEncoding == "" {
		fallbackEncoding = DefaultFallbackEncoding
	}
	return &Reader{FallbackEncoding: fallbackEncoding}
}

// Read returns the normalized records of spec's file. A file that cannot be
// read or parsed yields an error and no records.
func (r *Reader) Read(ctx context.Context, spec model.SourceSpec) ([]model.NormalizedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := ReadTable(spec.Path, r.FallbackEncoding)
	if err != nil {
		return nil, err
	}
	recs := Normalize(spec, t)
	zap.L().Debug("source: normalized",
		zap.String("file", spec.Path),
		zap.String("encoding", t.Encoding),
		zap.Int("rows", len(t.Rows)),
		zap.Int("records", len(recs)),
	)
	return recs, nil
}
