package enrich

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/cache"
	"github.com/telhawk-systems/telhawk-intel/internal/metrics"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// MaxOrgLength bounds the organization name kept from a registry answer.
const MaxOrgLength = 50

// Service resolves ownership and location, memoizing results in the
// injected stores. Concurrent lookups of the same key share one call.
type Service struct {
	registry  Registry
	gazetteer Gazetteer
	graph     KnowledgeGraph

	owners cache.Store[model.Ownership]
	places cache.Store[model.Location]

	ownerFlight singleflight.Group
	placeFlight singleflight.Group

	logger *slog.Logger
}

// NewService wires the providers and caches. gazetteer and graph may be nil
// to disable that strategy.
func NewService(
	registry Registry,
	gazetteer Gazetteer,
	graph KnowledgeGraph,
	owners cache.Store[model.Ownership],
	places cache.Store[model.Location],
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  registry,
		gazetteer: gazetteer,
		graph:     graph,
		owners:    owners,
		places:    places,
		logger:    logger.With(logging.Component("enrich")),
	}
}

var _ Enricher = (*Service)(nil)

// ResolveOwnership returns the ownership context of addr. Private addresses
// are answered without cache or network. Failed lookups are not cached.
func (s *Service) ResolveOwnership(ctx context.Context, addr string) OwnershipResult {
	if own, ok := s.cachedOwnership(ctx, addr); ok {
		return s.recordOwnership(OwnershipResult{Ownership: own, Outcome: OutcomeCached})
	}

	if isPrivate(addr) {
		return s.recordOwnership(OwnershipResult{Ownership: PrivateOwnership, Outcome: OutcomePrivate})
	}

	v, _, _ := s.ownerFlight.Do(addr, func() (any, error) {
		if own, ok := s.cachedOwnership(ctx, addr); ok {
			return OwnershipResult{Ownership: own, Outcome: OutcomeCached}, nil
		}

		own, err := s.registry.Lookup(ctx, addr)
		if err != nil {
			s.logger.WarnContext(ctx, "ownership lookup failed", logging.IP(addr), logging.Error(err))
			return OwnershipResult{Ownership: FailedOwnership, Outcome: OutcomeFailed, Err: err}, nil
		}

		own.Org = truncate(own.Org, MaxOrgLength)
		if err := s.owners.Set(ctx, addr, own); err != nil {
			s.logger.WarnContext(ctx, "ownership cache write failed", logging.IP(addr), logging.Error(err))
		}
		s.logger.DebugContext(ctx, "ip enriched", logging.IP(addr), slog.String("org", own.Org))
		return OwnershipResult{Ownership: own, Outcome: OutcomeResolved}, nil
	})
	return s.recordOwnership(v.(OwnershipResult))
}

// ResolveLocation geocodes name, trying the gazetteer first and the
// knowledge graph second. A miss on both is cached as UnknownLocation,
// unless ctx ended during the lookup.
func (s *Service) ResolveLocation(ctx context.Context, name string) LocationResult {
	key := NormalizeName(name)

	if loc, ok := s.cachedLocation(ctx, key); ok {
		return s.recordLocation(LocationResult{Location: loc, Outcome: OutcomeCached})
	}

	v, _, _ := s.placeFlight.Do(key, func() (any, error) {
		if loc, ok := s.cachedLocation(ctx, key); ok {
			return LocationResult{Location: loc, Outcome: OutcomeCached}, nil
		}

		result := s.lookupLocation(ctx, key)
		if err := ctx.Err(); err != nil && !result.Found {
			// An interrupted lookup is not a negative result; leave it uncached.
			return LocationResult{Location: UnknownLocation, Outcome: OutcomeFailed, Err: err}, nil
		}
		if err := s.places.Set(ctx, key, result.Location); err != nil {
			s.logger.WarnContext(ctx, "location cache write failed", logging.Subject(key), logging.Error(err))
		}
		return result, nil
	})
	return s.recordLocation(v.(LocationResult))
}

func (s *Service) lookupLocation(ctx context.Context, key string) LocationResult {
	if s.gazetteer != nil {
		loc, err := s.gazetteer.Geocode(ctx, key)
		if err == nil {
			s.logger.DebugContext(ctx, "location found", logging.Subject(key), slog.String("provider", "gazetteer"))
			return LocationResult{Location: loc, Outcome: OutcomeResolved, Provider: "gazetteer"}
		}
		s.logProviderMiss(ctx, "gazetteer", key, err)
	}

	if s.graph != nil {
		loc, err := s.graph.Headquarters(ctx, key)
		if err == nil {
			s.logger.DebugContext(ctx, "location found", logging.Subject(key), slog.String("provider", "knowledge_graph"))
			return LocationResult{Location: loc, Outcome: OutcomeResolved, Provider: "knowledge_graph"}
		}
		s.logProviderMiss(ctx, "knowledge_graph", key, err)
	}

	return LocationResult{Location: UnknownLocation, Outcome: OutcomeNotFound}
}

func (s *Service) logProviderMiss(ctx context.Context, provider, key string, err error) {
	if errors.Is(err, ErrNotFound) {
		s.logger.DebugContext(ctx, "no match", logging.Subject(key), slog.String("provider", provider))
		return
	}
	s.logger.WarnContext(ctx, "location lookup failed", logging.Subject(key), slog.String("provider", provider), logging.Error(err))
}

func (s *Service) cachedOwnership(ctx context.Context, addr string) (model.Ownership, bool) {
	own, ok, err := s.owners.Get(ctx, addr)
	if err != nil {
		s.logger.WarnContext(ctx, "ownership cache read failed", logging.IP(addr), logging.Error(err))
		return model.Ownership{}, false
	}
	return own, ok
}

func (s *Service) cachedLocation(ctx context.Context, key string) (model.Location, bool) {
	loc, ok, err := s.places.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "location cache read failed", logging.Subject(key), logging.Error(err))
		return model.Location{}, false
	}
	return loc, ok
}

func (s *Service) recordOwnership(r OwnershipResult) OwnershipResult {
	metrics.LookupsTotal.WithLabelValues("ownership", string(r.Outcome)).Inc()
	return r
}

func (s *Service) recordLocation(r LocationResult) LocationResult {
	metrics.LookupsTotal.WithLabelValues("location", string(r.Outcome)).Inc()
	return r
}
