package llmgeo

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heritage-atlas/heritage-cli/internal/fsutil"
	"github.com/heritage-atlas/heritage-cli/internal/progress"
)

// Completer is a single-shot text completion provider. groq.Client and
// anthropic.Completer implement it.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Stats counts the outcome of a Run.
type Stats struct {
	Sites     int
	Accepted  int
	Malformed int
	Failed    int
}

// Run asks completer about each name in order and returns the accepted rows.
// A provider error or a malformed reply drops that site only. Cancelling ctx
// stops the loop and returns the rows gathered so far with ctx's error.
func Run(ctx context.Context, completer Completer, names []string) ([]string, Stats, error) {
	stats := Stats{Sites: len(names)}
	log := zap.L().With(zap.String("provider", completer.Name()))

	bar := progress.New(len(names), "Processing sites")
	defer bar.Finish()

	var rows []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return rows, stats, eris.Wrap(err, "llmgeo: interrupted")
		}

		reply, err := completer.Complete(ctx, MakePrompt(name))
		bar.Add()
		if err != nil {
			if ctx.Err() != nil {
				return rows, stats, eris.Wrap(ctx.Err(), "llmgeo: interrupted")
			}
			stats.Failed++
			log.Warn("llmgeo: completion failed", zap.String("site", name), zap.Error(err))
			continue
		}

		row, ok := ParseRow(reply)
		if !ok {
			stats.Malformed++
			log.Warn("llmgeo: malformed reply, skipping site",
				zap.String("site", name),
				zap.String("reply", reply),
			)
			continue
		}
		stats.Accepted++
		rows = append(rows, row)
	}

	log.Info("llmgeo: done",
		zap.Int("sites", stats.Sites),
		zap.Int("accepted", stats.Accepted),
		zap.Int("malformed", stats.Malformed),
		zap.Int("failed", stats.Failed),
	)
	return rows, stats, nil
}

// WriteRows atomically writes OutputHeader followed by rows, verbatim.
func WriteRows(path string, rows []string) error {
	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		var b strings.Builder
		b.WriteString(OutputHeader)
		b.WriteByte('\n')
		for _, r := range rows {
			b.WriteString(r)
			b.WriteByte('\n')
		}
		_, err := io.WriteString(w, b.String())
		return eris.Wrap(err, "llmgeo: write rows")
	})
}
