package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

type FavoriteRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID, practiceID uuid.UUID) (*types.Favorite, error)
	Create(ctx context.Context, tx *gorm.DB, favorite *types.Favorite) (*types.Favorite, error)
	Delete(ctx context.Context, tx *gorm.DB, userID, practiceID uuid.UUID) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Favorite, error)
}

type favoriteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFavoriteRepo(db *gorm.DB, baseLog *logger.Logger) FavoriteRepo {
	return &favoriteRepo{db: db, log: baseLog.With("repo", "FavoriteRepo")}
}

func (r *favoriteRepo) Get(ctx context.Context, tx *gorm.DB, userID, practiceID uuid.UUID) (*types.Favorite, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var fav types.Favorite
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND practice_id = ?", userID, practiceID).
		First(&fav).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fav, nil
}

func (r *favoriteRepo) Create(ctx context.Context, tx *gorm.DB, favorite *types.Favorite) (*types.Favorite, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(favorite).Error; err != nil {
		return nil, err
	}
	return favorite, nil
}

func (r *favoriteRepo) Delete(ctx context.Context, tx *gorm.DB, userID, practiceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("user_id = ? AND practice_id = ?", userID, practiceID).
		Delete(&types.Favorite{}).Error
}

func (r *favoriteRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Favorite, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Favorite
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
