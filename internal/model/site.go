package model

// Field is a canonical attribute every source is normalized onto.
type Field string

const (
	FieldSiteName Field = "site_name"
	FieldCity     Field = "city"
	FieldDistrict Field = "district"
	FieldState    Field = "state"
	FieldAddress  Field = "address"
	FieldCategory Field = "category"
)

// AddressParts is the fixed order used when synthesizing an address.
var AddressParts = []Field{FieldSiteName, FieldCity, FieldDistrict, FieldState}

// Valid reports whether f is one of the canonical fields.
func (f Field) Valid() bool {
	switch f {
	case FieldSiteName, FieldCity, FieldDistrict, FieldState, FieldAddress, FieldCategory:
		return true
	default:
		return false
	}
}

// SourceSpec is the static configuration of one input file.
type SourceSpec struct {
	Path          string           `yaml:"file" json:"file"`
	Columns       map[string]Field `yaml:"columns" json:"columns"`
	FixedState    string           `yaml:"state,omitempty" json:"state,omitempty"`
	FixedCity     string           `yaml:"city,omitempty" json:"city,omitempty"`
	FixedCategory string           `yaml:"category,omitempty" json:"category,omitempty"`

	// FoldColumns matches raw column names case-insensitively. Discovered
	// sources use it; manifest sources match exactly unless they opt in.
	FoldColumns bool `yaml:"fold_columns,omitempty" json:"fold_columns,omitempty"`
}

// NormalizedRecord is one source row mapped onto the canonical fields.
// An empty string means the field was null or missing in the source.
type NormalizedRecord struct {
	SiteName string `json:"site_name"`
	City     string `json:"city"`
	District string `json:"district"`
	State    string `json:"state"`
	Address  string `json:"address"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source"`
}

// EnrichedRecord is a NormalizedRecord with coordinates attached.
// Latitude and Longitude are nil when geocoding produced no result.
type EnrichedRecord struct {
	NormalizedRecord
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// HasCoordinates reports whether both coordinates are present.
func (r EnrichedRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
