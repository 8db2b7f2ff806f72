package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/shift-ledger-api/internal/models"
	appErrors "github.com/noah-isme/shift-ledger-api/pkg/errors"
)

const providerStatsKeyPrefix = "provider_stats:"

type providerStatsStore interface {
	GetProviderStats(ctx context.Context, nurseID string) (*models.ProviderStats, error)
}

// ProviderStatsService serves the aggregates behind the fee waiver. Results are
// cached briefly and dropped whenever a provider's approved hours change.
type ProviderStatsService struct {
	repo   providerStatsStore
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewProviderStatsService constructs the service. A nil cache disables caching.
func NewProviderStatsService(repo providerStatsStore, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ProviderStatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderStatsService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Stats returns the provider's approved hours and completed engagements.
func (s *ProviderStatsService) Stats(ctx context.Context, nurseID string) (*models.ProviderStats, error) {
	key := providerStatsKeyPrefix + nurseID
	var cached models.ProviderStats
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	stats, err := s.repo.GetProviderStats(ctx, nurseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load provider stats")
	}
	_ = s.cache.Set(ctx, key, stats, s.ttl)
	return stats, nil
}

// FeeWaived reports whether the provider currently qualifies for the waiver.
func (s *ProviderStatsService) FeeWaived(ctx context.Context, nurseID string) (bool, error) {
	stats, err := s.Stats(ctx, nurseID)
	if err != nil {
		return false, err
	}
	return FeeWaiverEligible(*stats), nil
}

// Invalidate drops the cached aggregate for a provider.
func (s *ProviderStatsService) Invalidate(ctx context.Context, nurseID string) {
	if err := s.cache.Invalidate(ctx, providerStatsKeyPrefix+nurseID); err != nil {
		s.logger.Debug("provider stats invalidation failed", zap.String("nurse_id", nurseID), zap.Error(err))
	}
}
