package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/repos"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

type FavoriteService interface {
	Toggle(ctx context.Context, userID, practiceID uuid.UUID) (favorited bool, err error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Practice, error)
}

type favoriteService struct {
	db           *gorm.DB
	log          *logger.Logger
	favoriteRepo repos.FavoriteRepo
	practiceRepo repos.PracticeRepo
}

func NewFavoriteService(db *gorm.DB, log *logger.Logger, favoriteRepo repos.FavoriteRepo, practiceRepo repos.PracticeRepo) FavoriteService {
	return &favoriteService{
		db:           db,
		log:          log.With("service", "FavoriteService"),
		favoriteRepo: favoriteRepo,
		practiceRepo: practiceRepo,
	}
}

func (s *favoriteService) Toggle(ctx context.Context, userID, practiceID uuid.UUID) (bool, error) {
	existing, err := s.favoriteRepo.Get(ctx, nil, userID, practiceID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if err := s.favoriteRepo.Delete(ctx, nil, userID, practiceID); err != nil {
			return false, err
		}
		return false, nil
	}
	if _, err := s.favoriteRepo.Create(ctx, nil, &types.Favorite{UserID: userID, PracticeID: practiceID}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *favoriteService) List(ctx context.Context, userID uuid.UUID) ([]*types.Practice, error) {
	favorites, err := s.favoriteRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.PracticeID)
	}
	return s.practiceRepo.GetByIDs(ctx, nil, ids)
}
