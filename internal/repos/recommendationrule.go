package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

// RuleCriteria is the matching-table query key. PracticeType is required;
// the rest is optional. A rule with a NULL column matches any value for it.
type RuleCriteria struct {
	PracticeType       string
	Goal               string
	Approach           string
	MinDurationSeconds *int
	MaxDurationSeconds *int
}

type RecommendationRuleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rules []*types.RecommendationRule) ([]*types.RecommendationRule, error)
	FindByCriteria(ctx context.Context, tx *gorm.DB, criteria RuleCriteria) ([]*types.RecommendationRule, error)
}

type recommendationRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRuleRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRuleRepo {
	return &recommendationRuleRepo{db: db, log: baseLog.With("repo", "RecommendationRuleRepo")}
}

func (r *recommendationRuleRepo) Create(ctx context.Context, tx *gorm.DB, rules []*types.RecommendationRule) ([]*types.RecommendationRule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rules) == 0 {
		return []*types.RecommendationRule{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *recommendationRuleRepo) FindByCriteria(ctx context.Context, tx *gorm.DB, criteria RuleCriteria) ([]*types.RecommendationRule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.RecommendationRule{}).
		Where("practice_type = ?", criteria.PracticeType)

	if criteria.Goal != "" {
		q = q.Where("goal IS NULL OR goal = ?", criteria.Goal)
	}
	if criteria.Approach != "" {
		q = q.Where("approach IS NULL OR approach = ?", criteria.Approach)
	}
	// Inclusive crossed comparison: the rule's configured range overlaps the
	// requested one. NULL bounds are open-ended.
	if criteria.MaxDurationSeconds != nil {
		q = q.Where("min_duration_seconds IS NULL OR min_duration_seconds <= ?", *criteria.MaxDurationSeconds)
	}
	if criteria.MinDurationSeconds != nil {
		q = q.Where("max_duration_seconds IS NULL OR max_duration_seconds >= ?", *criteria.MinDurationSeconds)
	}

	var results []*types.RecommendationRule
	if err := q.Order("priority DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
