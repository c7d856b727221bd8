package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dhyana-app/dhyana-backend/internal/logger"
	"github.com/dhyana-app/dhyana-backend/internal/pkg/errors"
	"github.com/dhyana-app/dhyana-backend/internal/repos"
	"github.com/dhyana-app/dhyana-backend/internal/sse"
	"github.com/dhyana-app/dhyana-backend/internal/types"
)

const defaultUpcomingLimit = 50

type EventService interface {
	ListUpcoming(ctx context.Context, limit int) ([]*types.Event, error)
	ListRange(ctx context.Context, from, to time.Time) ([]*types.Event, error)
	Create(ctx context.Context, events []*types.Event) ([]*types.Event, error)
}

type eventService struct {
	db        *gorm.DB
	log       *logger.Logger
	eventRepo repos.EventRepo
	hub       *sse.Hub
}

func NewEventService(db *gorm.DB, log *logger.Logger, eventRepo repos.EventRepo, hub *sse.Hub) EventService {
	return &eventService{
		db:        db,
		log:       log.With("service", "EventService"),
		eventRepo: eventRepo,
		hub:       hub,
	}
}

func (s *eventService) ListUpcoming(ctx context.Context, limit int) ([]*types.Event, error) {
	if limit <= 0 || limit > defaultUpcomingLimit {
		limit = defaultUpcomingLimit
	}
	return s.eventRepo.ListUpcoming(ctx, nil, time.Now(), limit)
}

func (s *eventService) ListRange(ctx context.Context, from, to time.Time) ([]*types.Event, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", errors.ErrInvalidArgument)
	}
	return s.eventRepo.ListRange(ctx, nil, from, to)
}

// Create persists new calendar entries and tells every connected client
// the schedule changed.
func (s *eventService) Create(ctx context.Context, events []*types.Event) ([]*types.Event, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no events given", errors.ErrInvalidArgument)
	}
	for _, ev := range events {
		if strings.TrimSpace(ev.Title) == "" {
			return nil, fmt.Errorf("%w: event title is required", errors.ErrInvalidArgument)
		}
		if ev.StartsAt.IsZero() {
			return nil, fmt.Errorf("%w: event start time is required", errors.ErrInvalidArgument)
		}
	}
	created, err := s.eventRepo.Create(ctx, nil, events)
	if err != nil {
		return nil, err
	}
	if s.hub == nil {
		return created, nil
	}
	s.hub.Broadcast(sse.Message{
		Channel: sse.BroadcastChannel,
		Event:   sse.EventScheduleUpdated,
		Data:    map[string]any{"events": created},
	})
	return created, nil
}
