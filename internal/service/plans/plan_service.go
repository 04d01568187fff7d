// internal/service/plans/plan_service.go
package plans

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"maproom-service/internal/domain/plan"
	xerrors "maproom-service/internal/pkg/errors"
	"maproom-service/internal/repository/postgres"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	planCacheTTL    = 10 * time.Minute
	planCachePrefix = "plan:"
)

// PlanService owns the plan catalog. Reads go through a Redis read-through
// cache keyed by plan ID; every mutation invalidates the entry, so quota
// checks see a plan change within one cache miss.
type PlanService struct {
	planRepo *postgres.PlanRepository
	redis    *redis.Client
	logger   *zap.Logger
}

func NewPlanService(planRepo *postgres.PlanRepository, redisClient *redis.Client, logger *zap.Logger) *PlanService {
	return &PlanService{
		planRepo: planRepo,
		redis:    redisClient,
		logger:   logger,
	}
}

// CreatePlan creates a new plan (admin only, enforced at the route)
func (s *PlanService) CreatePlan(ctx context.Context, req *plan.CreatePlanRequest) (*plan.Plan, error) {
	for resourceType, limit := range req.Limits {
		if limit < plan.Unlimited {
			return nil, fmt.Errorf("%w: invalid limit %d for %s", xerrors.ErrInvalidInput, limit, resourceType)
		}
	}

	p := &plan.Plan{
		PlanCode:     strings.ToLower(req.PlanCode),
		Name:         req.Name,
		Description:  sql.NullString{String: req.Description, Valid: req.Description != ""},
		Price:        req.Price,
		Currency:     strings.ToUpper(req.Currency),
		BillingCycle: req.BillingCycle,
		Limits:       req.Limits,
		FeatureFlags: req.FeatureFlags,
		Status:       plan.StatusActive,
		IsPublic:     req.IsPublic,
	}

	if err := s.planRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("plan created", zap.Int64("plan_id", p.ID), zap.String("plan_code", p.PlanCode))
	return p, nil
}

// GetPlan retrieves a plan by ID, through the cache
func (s *PlanService) GetPlan(ctx context.Context, id int64) (*plan.Plan, error) {
	key := s.cacheKey(id)

	if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
		var p plan.Plan
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		// unreadable entry, fall through to the database
		s.redis.Del(ctx, key)
	}

	p, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := s.redis.Set(ctx, key, data, planCacheTTL).Err(); err != nil {
			s.logger.Warn("failed to cache plan", zap.Int64("plan_id", id), zap.Error(err))
		}
	}

	return p, nil
}

// FindByID satisfies the quota service's PlanStore, cache included
func (s *PlanService) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	return s.GetPlan(ctx, id)
}

// GetPlanByCode retrieves a plan by its code
func (s *PlanService) GetPlanByCode(ctx context.Context, code string) (*plan.Plan, error) {
	return s.planRepo.FindByCode(ctx, strings.ToLower(code))
}

// UpdatePlan applies a partial update and invalidates the cache
func (s *PlanService) UpdatePlan(ctx context.Context, id int64, req *plan.UpdatePlanRequest) (*plan.Plan, error) {
	p, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = sql.NullString{String: *req.Description, Valid: *req.Description != ""}
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.BillingCycle != nil {
		p.BillingCycle = *req.BillingCycle
	}
	if req.Limits != nil {
		for resourceType, limit := range req.Limits {
			if limit < plan.Unlimited {
				return nil, fmt.Errorf("%w: invalid limit %d for %s", xerrors.ErrInvalidInput, limit, resourceType)
			}
		}
		p.Limits = req.Limits
	}
	if req.FeatureFlags != nil {
		p.FeatureFlags = req.FeatureFlags
	}
	if req.IsPublic != nil {
		p.IsPublic = *req.IsPublic
	}

	if err := s.planRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.Info("plan updated", zap.Int64("plan_id", id))
	return p, nil
}

// ActivatePlan makes a plan purchasable again
func (s *PlanService) ActivatePlan(ctx context.Context, id int64) error {
	if err := s.planRepo.UpdateStatus(ctx, id, plan.StatusActive); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// DeactivatePlan blocks new purchases; existing memberships keep consuming
// against it until they lapse.
func (s *PlanService) DeactivatePlan(ctx context.Context, id int64) error {
	if err := s.planRepo.UpdateStatus(ctx, id, plan.StatusInactive); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// DeletePlan removes a plan; fails with ErrConflict while memberships reference it
func (s *PlanService) DeletePlan(ctx context.Context, id int64) error {
	if err := s.planRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.logger.Info("plan deleted", zap.Int64("plan_id", id))
	return nil
}

// ListPlans returns plans with filters and pagination
func (s *PlanService) ListPlans(ctx context.Context, filters *plan.PlanListFilters) (*plan.PlanListResponse, error) {
	plans, total, err := s.planRepo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &plan.PlanListResponse{
		Plans:      plans,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ListPublicPlans returns only active, public plans
func (s *PlanService) ListPublicPlans(ctx context.Context, filters *plan.PlanListFilters) (*plan.PlanListResponse, error) {
	active := plan.StatusActive
	public := true
	filters.Status = &active
	filters.IsPublic = &public
	return s.ListPlans(ctx, filters)
}

func (s *PlanService) cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", planCachePrefix, id)
}

func (s *PlanService) invalidate(ctx context.Context, id int64) {
	if err := s.redis.Del(ctx, s.cacheKey(id)).Err(); err != nil {
		s.logger.Warn("failed to invalidate plan cache", zap.Int64("plan_id", id), zap.Error(err))
	}
}
