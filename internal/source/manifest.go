package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/heritage-atlas/heritage-cli/internal/model"
)

// Manifest is the YAML document listing every source of a run.
type Manifest struct {
	Sources []model.SourceSpec `yaml:"sources"`
}

// LoadManifest reads a manifest file, validates it, and resolves relative
// file paths against dir.
func LoadManifest(path, dir string) ([]model.SourceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read manifest %s", path)
	}
	return ParseManifest(data, dir)
}

// ParseManifest is LoadManifest for in-memory YAML.
func ParseManifest(data []byte, dir string) ([]model.SourceSpec, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "source: parse manifest")
	}

	for i := range m.Sources {
		spec := &m.Sources[i]
		if strings.TrimSpace(spec.Path) == "" {
			return nil, eris.Errorf("source: manifest entry %d has no file", i)
		}
		for raw, f := range spec.Columns {
			if !f.Valid() {
				return nil, eris.Errorf("source: %s: column %q maps to unknown field %q", spec.Path, raw, f)
			}
		}
		if dir != "" && !filepath.IsAbs(spec.Path) {
			spec.Path = filepath.Join(dir, spec.Path)
		}
	}
	return m.Sources, nil
}

// DefaultColumns is the alias table used for discovered sources. Keys are
// lower-case; discovered specs match headers case-insensitively.
var DefaultColumns = map[string]model.Field{
	"site_name":            model.FieldSiteName,
	"site name":            model.FieldSiteName,
	"site":                 model.FieldSiteName,
	"name":                 model.FieldSiteName,
	"name of monument":     model.FieldSiteName,
	"name of the monument": model.FieldSiteName,
	"name of monuments":    model.FieldSiteName,
	"name of site":         model.FieldSiteName,
	"monument":             model.FieldSiteName,
	"monument name":        model.FieldSiteName,
	"heritage site":        model.FieldSiteName,
	"city":                 model.FieldCity,
	"locality":             model.FieldCity,
	"location":             model.FieldCity,
	"place":                model.FieldCity,
	"town":                 model.FieldCity,
	"district":             model.FieldDistrict,
	"district name":        model.FieldDistrict,
	"state":                model.FieldState,
	"state name":           model.FieldState,
	"state/ut":             model.FieldState,
	"state / ut":           model.FieldState,
	"address":              model.FieldAddress,
	"full address":         model.FieldAddress,
	"category":             model.FieldCategory,
	"type":                 model.FieldCategory,
}

// Discover builds a SourceSpec for every .csv and .xlsx file directly under
// dir, in name order, using DefaultColumns.
func Discover(dir string) ([]model.SourceSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "source: list %s", dir)
	}

	var specs []model.SourceSpec
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
		default:
			continue
		}
		specs = append(specs, model.SourceSpec{
			Path:        filepath.Join(dir, e.Name()),
			Columns:     DefaultColumns,
			FoldColumns: true,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Path < specs[j].Path })
	return specs, nil
}
