package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type presenceStore interface {
	UpdatePresence(ctx context.Context, nutritionistID, status string, lastSeen time.Time) error
	GetPresence(ctx context.Context, nutritionistID string) (*models.Presence, error)
}

type presenceCache interface {
	Set(ctx context.Context, nutritionistID, status string, lastSeen time.Time) error
	Get(ctx context.Context, nutritionistID string) (string, time.Time, bool)
}

// PresenceService flips a nutritionist between online and offline around
// session start and teardown. Callers treat failures as non-fatal.
type PresenceService struct {
	profiles presenceStore
	cache    presenceCache
}

func NewPresenceService(profiles presenceStore, cache presenceCache) *PresenceService {
	return &PresenceService{
		profiles: profiles,
		cache:    cache,
	}
}

func (s *PresenceService) SetOnline(ctx context.Context, nutritionistID string) error {
	return s.set(ctx, nutritionistID, models.PresenceOnline)
}

func (s *PresenceService) SetOffline(ctx context.Context, nutritionistID string) error {
	return s.set(ctx, nutritionistID, models.PresenceOffline)
}

func (s *PresenceService) set(ctx context.Context, nutritionistID, status string) error {
	lastSeen := time.Now().UTC()

	if err := s.profiles.UpdatePresence(ctx, nutritionistID, status, lastSeen); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, nutritionistID, status, lastSeen); err != nil {
			log.Printf("presence: cache %s for %s: %v", status, nutritionistID, err)
		}
	}
	return nil
}

func (s *PresenceService) Get(ctx context.Context, nutritionistID string) (*models.Presence, error) {
	if s.cache != nil {
		if status, lastSeen, ok := s.cache.Get(ctx, nutritionistID); ok {
			return &models.Presence{
				NutritionistID: nutritionistID,
				Status:         status,
				LastSeen:       lastSeen,
			}, nil
		}
	}

	presence, err := s.profiles.GetPresence(ctx, nutritionistID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return presence, nil
}
