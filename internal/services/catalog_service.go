package services

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/dzirastore/api/internal/domain"
	"github.com/dzirastore/api/internal/repositories"
)

const defaultCatalogTTL = 10 * time.Minute

// CatalogServiceDeps bundles collaborators required to construct the catalog
// service.
type CatalogServiceDeps struct {
	Store  repositories.ShippingStore
	TTL    time.Duration
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	store  repositories.ShippingStore
	ttl    time.Duration
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)

	mu        sync.RWMutex
	regions   []domain.Region
	fetchedAt time.Time
}

// NewCatalogService wires dependencies into a concrete CatalogService
// implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Store == nil {
		return nil, errors.New("catalog service: shipping store is required")
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		store:  deps.Store,
		ttl:    ttl,
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Regions returns the cached catalog, refreshing it when stale. A failed
// refresh degrades to the previous snapshot, or to an empty catalog when no
// snapshot exists yet; it never surfaces an error to the caller.
func (s *catalogService) Regions(ctx context.Context) []domain.Region {
	s.mu.RLock()
	regions, fetchedAt := s.regions, s.fetchedAt
	s.mu.RUnlock()

	if regions != nil && s.clock().Sub(fetchedAt) < s.ttl {
		return regions
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger(ctx, "catalog.fetch_failed", map[string]any{"error": err.Error()})
		if regions != nil {
			return regions
		}
		return []domain.Region{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions
}

// Refresh fetches a fresh catalog snapshot and swaps it in atomically.
func (s *catalogService) Refresh(ctx context.Context) error {
	regions, err := s.store.FetchCatalog(ctx)
	if err != nil {
		return err
	}
	if regions == nil {
		regions = []domain.Region{}
	}

	s.mu.Lock()
	s.regions = regions
	s.fetchedAt = s.clock()
	s.mu.Unlock()
	return nil
}

func (s *catalogService) RegionByID(ctx context.Context, regionID int) (domain.Region, bool) {
	for _, region := range s.Regions(ctx) {
		if region.ID == regionID {
			return region, true
		}
	}
	return domain.Region{}, false
}

// CommunesOf returns the communes of a region with duplicate ids removed.
// The first occurrence wins so the catalog's ordering is preserved.
func (s *catalogService) CommunesOf(ctx context.Context, regionID int) []domain.Commune {
	region, ok := s.RegionByID(ctx, regionID)
	if !ok {
		return []domain.Commune{}
	}
	seen := make(map[int]bool, len(region.Communes))
	communes := make([]domain.Commune, 0, len(region.Communes))
	for _, commune := range region.Communes {
		if seen[commune.ID] {
			continue
		}
		seen[commune.ID] = true
		communes = append(communes, commune)
	}
	return communes
}

func (s *catalogService) CentersOf(ctx context.Context, regionID int) []domain.Center {
	region, ok := s.RegionByID(ctx, regionID)
	if !ok {
		return []domain.Center{}
	}
	centers := make([]domain.Center, len(region.Centers))
	copy(centers, region.Centers)
	return centers
}
