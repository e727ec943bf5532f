// Package geocache is the durable address → location cache in front of the
// geocoding provider. A stored no-result marker is distinct from an address
// that was never attempted.
package geocache

import "time"

// Status is the persisted outcome of a geocode attempt.
type Status string

const (
	// StatusMatched means the provider returned coordinates.
	StatusMatched Status = "matched"
	// StatusNoResult means the address was attempted and yielded nothing
	// usable: no match, a permanent failure, or exhausted retries.
	StatusNoResult Status = "no_result"
)

// Entry is one cached outcome, keyed by the exact address string.
type Entry struct {
	Address   string    `json:"-"`
	Status    Status    `json:"status"`
	Latitude  float64   `json:"lat,omitempty"`
	Longitude float64   `json:"lon,omitempty"`
	Source    string    `json:"source,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matched reports whether the entry carries coordinates.
func (e Entry) Matched() bool { return e.Status == StatusMatched }

// Coordinates returns the entry's coordinates, or nils for a no-result entry.
func (e Entry) Coordinates() (lat, lon *float64) {
	if !e.Matched() {
		return nil, nil
	}
	la, lo := e.Latitude, e.Longitude
	return &la, &lo
}

// Stats summarises the cache content.
type Stats struct {
	Entries  int `json:"entries"`
	Matched  int `json:"matched"`
	NoResult int `json:"no_result"`
	Pending  int `json:"pending"`
}
