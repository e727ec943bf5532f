package dataset

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/heritage-atlas/heritage-cli/internal/fsutil"
	"github.com/heritage-atlas/heritage-cli/internal/model"
)

// FeatureCollection builds a point feature for every record with coordinates.
// Records without coordinates are left out.
func FeatureCollection(recs []model.EnrichedRecord) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, r := range recs {
		if !r.HasCoordinates() {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{*r.Longitude, *r.Latitude}),
			Properties: map[string]any{
				"site_name": r.SiteName,
				"city":      r.City,
				"state":     r.State,
				"category":  r.Category,
			},
		})
	}
	return fc
}

// EncodeGeoJSON writes recs as a GeoJSON FeatureCollection.
func EncodeGeoJSON(w io.Writer, recs []model.EnrichedRecord) error {
	data, err := json.Marshal(FeatureCollection(recs))
	if err != nil {
		return eris.Wrap(err, "dataset: encode geojson")
	}
	_, err = w.Write(data)
	return eris.Wrap(err, "dataset: write geojson")
}

// WriteGeoJSON atomically replaces path with the GeoJSON export.
func WriteGeoJSON(path string, recs []model.EnrichedRecord) error {
	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		return EncodeGeoJSON(w, recs)
	})
}
