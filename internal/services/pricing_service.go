package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"serviceportal/internal/catalog"
	"serviceportal/internal/models"
	"serviceportal/internal/store"
)

// PricingService resolves price tiers: an active admin override in the store
// wins over the static catalog default. Resolved tiers are cached.
type PricingService struct {
	store store.Store
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewPricingService(st store.Store, cache Cache, ttl time.Duration, log *zap.Logger) *PricingService {
	return &PricingService{store: st, cache: cache, ttl: ttl, log: orNop(log)}
}

func pricingKey(service catalog.Service, programType, projectType, level string) string {
	return fmt.Sprintf("pricing:%s:%s:%s:%s", service, programType, projectType, level)
}

func tierFromModel(m models.PricingTier) catalog.Tier {
	return catalog.Tier{
		Service:     catalog.Service(m.Service),
		ProgramType: m.ProgramType,
		ProjectType: m.ProjectType,
		Level:       m.Level,
		BaseFee:     m.BaseFee,
		Tranche1Fee: m.Tranche1Fee,
		ProgramFee:  m.ProgramFee,
		AdvanceFee:  m.AdvanceFee,
	}
}

// Resolve returns the tier for a combination or ErrNotFound
func (s *PricingService) Resolve(ctx context.Context, service catalog.Service, programType, projectType, level string) (catalog.Tier, error) {
	key := pricingKey(service, programType, projectType, level)
	return GetOrSet(s.cache, ctx, key, s.ttl, func() (catalog.Tier, error) {
		override, err := s.store.PricingTier(ctx, string(service), programType, projectType, level)
		if err == nil {
			return tierFromModel(*override), nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return catalog.Tier{}, err
		}
		if tier, ok := catalog.DefaultTier(service, programType, projectType, level); ok {
			return tier, nil
		}
		return catalog.Tier{}, fmt.Errorf("%w: no pricing for %s/%s/%s/%s", ErrNotFound, service, programType, projectType, level)
	})
}

// List merges catalog defaults with active store overrides
func (s *PricingService) List(ctx context.Context) ([]catalog.Tier, error) {
	merged := map[string]catalog.Tier{}
	for _, t := range catalog.DefaultTiers() {
		merged[pricingKey(t.Service, t.ProgramType, t.ProjectType, t.Level)] = t
	}

	overrides, err := s.store.ListPricingTiers(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		if !o.IsActive {
			continue
		}
		t := tierFromModel(o)
		merged[pricingKey(t.Service, t.ProgramType, t.ProjectType, t.Level)] = t
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]catalog.Tier, 0, len(keys))
	for _, k := range keys {
		out = append(out, merged[k])
	}
	return out, nil
}

// Upsert stores an override and drops the cached tier
func (s *PricingService) Upsert(ctx context.Context, tier *models.PricingTier) error {
	var fields []string
	if tier.Service == "" {
		fields = append(fields, "service")
	}
	if tier.ProgramType == "" && catalog.Service(tier.Service) != catalog.ServiceWriting {
		fields = append(fields, "program_type")
	}
	for name, fee := range map[string]decimal.Decimal{
		"base_fee":     tier.BaseFee,
		"tranche1_fee": tier.Tranche1Fee,
		"program_fee":  tier.ProgramFee,
		"advance_fee":  tier.AdvanceFee,
	} {
		if fee.IsNegative() {
			fields = append(fields, name)
		}
	}
	if len(fields) > 0 {
		return newValidationError(fields)
	}

	if err := s.store.UpsertPricingTier(ctx, tier); err != nil {
		return err
	}

	key := pricingKey(catalog.Service(tier.Service), tier.ProgramType, tier.ProjectType, tier.Level)
	if s.cache != nil {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("pricingService.Upsert cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.log.Info("pricingService.Upsert saved tier", zap.String("key", key), zap.Bool("active", tier.IsActive))
	return nil
}
