package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

type RecommendationRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*types.RecommendationRecord) ([]*types.RecommendationRecord, error)
	ListPracticeIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
}

type recommendationRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRecordRepo {
	return &recommendationRecordRepo{db: db, log: baseLog.With("repo", "RecommendationRecordRepo")}
}

func (r *recommendationRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.RecommendationRecord) ([]*types.RecommendationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(records) == 0 {
		return []*types.RecommendationRecord{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *recommendationRecordRepo) ListPracticeIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.RecommendationRecord{}).
		Where("user_id = ?", userID).
		Distinct("practice_id").
		Pluck("practice_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
