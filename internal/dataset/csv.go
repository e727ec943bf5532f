// Package dataset writes the enriched site table consumed by the map
// dashboard.
package dataset

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/heritage-atlas/heritage-cli/internal/fsutil"
	"github.com/heritage-atlas/heritage-cli/internal/model"
)

// Header is the column order of the output dataset.
var Header = []string{"site_name", "city", "state", "latitude", "longitude", "category"}

// WriteCSV atomically replaces path with the dataset.
func WriteCSV(path string, recs []model.EnrichedRecord) error {
	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		return EncodeCSV(w, recs)
	})
}

// EncodeCSV writes the header and one row per record. Missing coordinates are
// empty cells; present ones keep full precision.
func EncodeCSV(w io.Writer, recs []model.EnrichedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "dataset: write header")
	}
	for _, r := range recs {
		row := []string{
			r.SiteName,
			r.City,
			r.State,
			formatCoord(r.Latitude),
			formatCoord(r.Longitude),
			r.Category,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "dataset: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush csv")
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
