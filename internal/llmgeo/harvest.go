// Package llmgeo asks a text-generation model for the location of each site
// name found in the source files. It has no cache; malformed answers are
// dropped.
package llmgeo

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heritage-atlas/heritage-cli/internal/source"
)

// HarvestSiteNames reads every .csv file under dir without a header and
// collects each distinct cell that is not a number and has more than one
// word. Unreadable files are logged and skipped. Names are returned sorted.
func HarvestSiteNames(dir, fallbackEncoding string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "llmgeo: list %s", dir)
	}

	names := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		rows, err := source.ReadRecords(path, fallbackEncoding)
		if err != nil {
			zap.L().Warn("llmgeo: skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		for _, row := range rows {
			for _, cell := range row {
				if name, ok := candidate(cell); ok {
					names[name] = struct{}{}
				}
			}
		}
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func candidate(cell string) (string, bool) {
	v := strings.TrimSpace(cell)
	if len(strings.Fields(v)) < 2 {
		return "", false
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return "", false
	}
	return v, true
}
