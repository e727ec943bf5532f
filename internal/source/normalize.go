package source

import (
	"path/filepath"
	"strings"

	"github.com/heritage-atlas/heritage-cli/internal/model"
)

// nullMarkers are cell values treated as missing, matching what spreadsheet
// and dataframe exports write for empty cells.
var nullMarkers = map[string]struct{}{
	"": {}, "nan": {}, "NaN": {}, "-nan": {}, "-NaN": {}, "NA": {}, "N/A": {}, "n/a": {},
	"#N/A": {}, "#NA": {}, "<NA>": {}, "NULL": {}, "null": {}, "None": {},
}

func isNull(v string) bool {
	_, ok := nullMarkers[v]
	return ok
}

// columnIndex maps each canonical field to the first header column that
// renames onto it. Headers already named after a canonical field map to it
// unless the rename table says otherwise.
func columnIndex(spec model.SourceSpec, header []string) map[model.Field]int {
	rename := spec.Columns
	if spec.FoldColumns {
		rename = make(map[string]model.Field, len(spec.Columns))
		for raw, f := range spec.Columns {
			rename[strings.ToLower(strings.TrimSpace(raw))] = f
		}
	}

	idx := make(map[model.Field]int)
	for i, h := range header {
		key := h
		if spec.FoldColumns {
			key = strings.ToLower(h)
		}
		f, ok := rename[key]
		if !ok {
			if c := model.Field(strings.ToLower(h)); c.Valid() {
				f, ok = c, true
			}
		}
		if !ok || !f.Valid() {
			continue
		}
		if _, taken := idx[f]; !taken {
			idx[f] = i
		}
	}
	return idx
}

// Normalize maps every row of t onto a NormalizedRecord. Canonical fields
// with no source column are null for every record; fixed values override
// whatever the row holds. When no address column exists the address is the
// ", "-joined non-null site name, city, district and state.
func Normalize(spec model.SourceSpec, t *Table) []model.NormalizedRecord {
	if t == nil {
		return nil
	}
	idx := columnIndex(spec, t.Header)
	_, hasAddress := idx[model.FieldAddress]
	_, hasCategory := idx[model.FieldCategory]
	name := filepath.Base(spec.Path)

	out := make([]model.NormalizedRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		get := func(f model.Field) string {
			i, ok := idx[f]
			if !ok || i >= len(row) {
				return ""
			}
			v := strings.TrimSpace(row[i])
			if isNull(v) {
				return ""
			}
			return v
		}

		rec := model.NormalizedRecord{
			SiteName: get(model.FieldSiteName),
			City:     get(model.FieldCity),
			District: get(model.FieldDistrict),
			State:    get(model.FieldState),
			Source:   name,
		}
		if spec.FixedState != "" {
			rec.State = spec.FixedState
		}
		if spec.FixedCity != "" {
			rec.City = spec.FixedCity
		}

		if hasAddress {
			rec.Address = get(model.FieldAddress)
		} else {
			rec.Address = SynthesizeAddress(rec)
		}

		switch {
		case spec.FixedCategory != "":
			rec.Category = spec.FixedCategory
		case hasCategory && get(model.FieldCategory) != "":
			rec.Category = get(model.FieldCategory)
		default:
			rec.Category = model.Categorize(rec.SiteName)
		}

		out = append(out, rec)
	}
	return out
}

// SynthesizeAddress joins the non-empty, non-"nan" site name, city, district
// and state of r, in that order, with ", ".
func SynthesizeAddress(r model.NormalizedRecord) string {
	parts := make([]string, 0, len(model.AddressParts))
	for _, f := range model.AddressParts {
		var v string
		switch f {
		case model.FieldSiteName:
			v = r.SiteName
		case model.FieldCity:
			v = r.City
		case model.FieldDistrict:
			v = r.District
		case model.FieldState:
			v = r.State
		}
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "nan") {
			continue
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, ", ")
}
