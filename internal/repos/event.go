package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

type EventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, events []*types.Event) ([]*types.Event, error)
	ListUpcoming(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Event, error)
	ListRange(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*types.Event, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "EventRepo")}
}

func (r *eventRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.Event) ([]*types.Event, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(events) == 0 {
		return []*types.Event{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepo) ListUpcoming(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.Event, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).
		Where("starts_at >= ?", now).
		Order("starts_at ASC, display_order ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var results []*types.Event
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *eventRepo) ListRange(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*types.Event, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Event
	if err := transaction.WithContext(ctx).
		Where("starts_at >= ? AND starts_at < ?", from, to).
		Order("starts_at ASC, display_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
