// Package geocode resolves free-text addresses to coordinates through
// rate-limited external providers.
package geocode

import (
	"context"
	"fmt"
)

// Kind classifies the outcome of a single provider call.
type Kind int

const (
	// KindMatched means the provider returned coordinates.
	KindMatched Kind = iota
	// KindNoMatch means the provider answered but found nothing.
	KindNoMatch
	// KindTransient is a failure expected to clear up on retry.
	KindTransient
	// KindPermanent is a failure that will not change without changing the input.
	KindPermanent
	// KindSkipped means the provider was never called for this address, so
	// nothing is known about it.
	KindSkipped
)

func (k Kind) String() string {
	switch k {
	case KindMatched:
		return "matched"
	case KindNoMatch:
		return "no_match"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result holds the coordinates returned by a provider, at full precision.
type Result struct {
	Latitude    float64
	Longitude   float64
	Source      string
	DisplayName string
}

// Outcome is the value every provider call produces. Result is set only
// for KindMatched; Err is set for every failure kind.
type Outcome struct {
	Kind     Kind
	Result   *Result
	Err      error
	Attempts int
}

// Matched builds a KindMatched outcome.
func Matched(r Result) Outcome {
	return Outcome{Kind: KindMatched, Result: &r}
}

// NoMatch builds a KindNoMatch outcome.
func NoMatch() Outcome {
	return Outcome{Kind: KindNoMatch}
}

// Transient builds a KindTransient outcome.
func Transient(err error) Outcome {
	return Outcome{Kind: KindTransient, Err: err}
}

// Permanent builds a KindPermanent outcome.
func Permanent(err error) Outcome {
	return Outcome{Kind: KindPermanent, Err: err}
}

// Skipped builds a KindSkipped outcome.
func Skipped(err error) Outcome {
	return Outcome{Kind: KindSkipped, Err: err}
}

// Provider is a single geocoding backend. Implementations make exactly one
// request per call and classify the result; retries and pacing belong to
// Client.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) Outcome
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, address string) Outcome

// Name implements Provider.
func (f ProviderFunc) Name() string { return "func" }

// Geocode implements Provider.
func (f ProviderFunc) Geocode(ctx context.Context, address string) Outcome { return f(ctx, address) }
