package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

// PracticeFilter is the library/content query surface. Zero values mean
// "no constraint"; the duration bounds are inclusive.
type PracticeFilter struct {
	PracticeType       string
	CategorySlug       string
	MediaType          types.MediaType
	MinDurationSeconds *int
	MaxDurationSeconds *int
	TextSearch         string
}

type PracticeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, practices []*types.Practice) ([]*types.Practice, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, practiceIDs []uuid.UUID) ([]*types.Practice, error)
	Find(ctx context.Context, tx *gorm.DB, filter PracticeFilter) ([]*types.Practice, error)
}

type practiceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPracticeRepo(db *gorm.DB, baseLog *logger.Logger) PracticeRepo {
	return &practiceRepo{db: db, log: baseLog.With("repo", "PracticeRepo")}
}

func (r *practiceRepo) Create(ctx context.Context, tx *gorm.DB, practices []*types.Practice) ([]*types.Practice, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(practices) == 0 {
		return []*types.Practice{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&practices).Error; err != nil {
		return nil, err
	}
	return practices, nil
}

func (r *practiceRepo) GetByIDs(ctx context.Context, tx *gorm.DB, practiceIDs []uuid.UUID) ([]*types.Practice, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Practice
	if len(practiceIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", practiceIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *practiceRepo) Find(ctx context.Context, tx *gorm.DB, filter PracticeFilter) ([]*types.Practice, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.Practice{})

	if filter.PracticeType != "" {
		q = q.Where("practice.practice_type = ?", filter.PracticeType)
	}
	if filter.MediaType != "" {
		q = q.Where("practice.media_type = ?", filter.MediaType)
	}
	if filter.CategorySlug != "" {
		q = q.Joins(`JOIN category ON category.id = practice.category_id`).
			Where("category.slug = ?", filter.CategorySlug)
	}
	if filter.MinDurationSeconds != nil {
		q = q.Where("practice.duration_seconds >= ?", *filter.MinDurationSeconds)
	}
	if filter.MaxDurationSeconds != nil {
		q = q.Where("practice.duration_seconds <= ?", *filter.MaxDurationSeconds)
	}
	if search := strings.TrimSpace(filter.TextSearch); search != "" {
		like := "%" + search + "%"
		q = q.Where("practice.title ILIKE ? OR practice.description ILIKE ?", like, like)
	}

	var results []*types.Practice
	if err := q.Order("practice.display_order ASC, practice.created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
