package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/pkg/errors"
	"github.com/dhyana-app/dhyana-backend/internal/repos"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

type PracticeService interface {
	Find(ctx context.Context, filter repos.PracticeFilter) ([]*types.Practice, error)
	GetByID(ctx context.Context, practiceID uuid.UUID) (*types.Practice, error)
	ListCategories(ctx context.Context) ([]*types.Category, error)
}

type practiceService struct {
	db           *gorm.DB
	log          *logger.Logger
	practiceRepo repos.PracticeRepo
	categoryRepo repos.CategoryRepo
}

func NewPracticeService(db *gorm.DB, log *logger.Logger, practiceRepo repos.PracticeRepo, categoryRepo repos.CategoryRepo) PracticeService {
	return &practiceService{
		db:           db,
		log:          log.With("service", "PracticeService"),
		practiceRepo: practiceRepo,
		categoryRepo: categoryRepo,
	}
}

func (s *practiceService) Find(ctx context.Context, filter repos.PracticeFilter) ([]*types.Practice, error) {
	if filter.MinDurationSeconds != nil && filter.MaxDurationSeconds != nil &&
		*filter.MaxDurationSeconds < *filter.MinDurationSeconds {
		return nil, fmt.Errorf("%w: duration range max below min", errors.ErrInvalidArgument)
	}
	return s.practiceRepo.Find(ctx, nil, filter)
}

func (s *practiceService) GetByID(ctx context.Context, practiceID uuid.UUID) (*types.Practice, error) {
	practices, err := s.practiceRepo.GetByIDs(ctx, nil, []uuid.UUID{practiceID})
	if err != nil {
		return nil, err
	}
	if len(practices) == 0 {
		return nil, fmt.Errorf("%w: practice %s", errors.ErrNotFound, practiceID)
	}
	return practices[0], nil
}

func (s *practiceService) ListCategories(ctx context.Context) ([]*types.Category, error) {
	return s.categoryRepo.List(ctx, nil)
}
