// Package enrich resolves network addresses to ownership context and entity
// names to geographic locations.
//
// Lookups never fail from the caller's point of view: every error is turned
// into a sentinel value and reported through the result's Outcome.
package enrich

import (
	"context"
	"errors"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// ErrNotFound is returned by a provider that answered but had no match.
var ErrNotFound = errors.New("enrich: no match")

// Registry resolves network ownership for an address (RDAP-style lookup).
type Registry interface {
	Lookup(ctx context.Context, addr string) (model.Ownership, error)
}

// Gazetteer geocodes a free-text place or entity name.
type Gazetteer interface {
	Geocode(ctx context.Context, name string) (model.Location, error)
}

// KnowledgeGraph resolves an organization's headquarters location.
type KnowledgeGraph interface {
	Headquarters(ctx context.Context, name string) (model.Location, error)
}

// Throttle blocks until the caller may contact a rate-limited provider.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Outcome tells how a result was produced.
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeCached   Outcome = "cached"
	OutcomePrivate  Outcome = "private"
	OutcomeFailed   Outcome = "failed"
	OutcomeNotFound Outcome = "not_found"
)

// OwnershipResult is the answer to ResolveOwnership.
type OwnershipResult struct {
	model.Ownership
	Outcome Outcome
	Err     error
}

// LocationResult is the answer to ResolveLocation. Provider names which
// strategy produced a resolved location. Err is set when the caller's
// context ended before the lookup could finish.
type LocationResult struct {
	model.Location
	Outcome  Outcome
	Provider string
	Err      error
}

// Sentinel values.
var (
	PrivateOwnership = model.Ownership{ASN: "Internal", Org: "Private Network", Country: "XX"}
	FailedOwnership  = model.Ownership{ASN: "Lookup_Failed", Org: "Unknown", Country: "XX"}
	UnknownLocation  = model.Location{Lat: 0, Lon: 0, Country: "Unknown", Found: false}
)

// privatePrefixes are matched literally against the address text.
var privatePrefixes = []string{"192.168.", "10.", "127."}

// Enricher is the contract the router depends on.
type Enricher interface {
	ResolveOwnership(ctx context.Context, addr string) OwnershipResult
	ResolveLocation(ctx context.Context, name string) LocationResult
}
