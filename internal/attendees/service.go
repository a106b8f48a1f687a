package attendees

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webinarwins/backend/internal/models"
)

// Store is the persistence the rescore service needs.
type Store interface {
	ListByWebinar(ctx context.Context, webinarID uuid.UUID, tier *models.Tier) ([]models.Attendee, error)
	MessagesByWebinar(ctx context.Context, webinarID uuid.UUID) (map[uuid.UUID][]models.ChatMessage, error)
	UpdateScores(ctx context.Context, list []models.Attendee) error
}

// RescoreResult reports what a rescore changed.
type RescoreResult struct {
	Attendees  int            `json:"attendees"`
	Changed    int            `json:"changed"`
	TierCounts map[string]int `json:"tier_counts"`
}

// Service recomputes engagement scores from stored data.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates an attendee service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Rescore recomputes score and tier for every attendee of a webinar and
// persists the ones that changed.
func (s *Service) Rescore(ctx context.Context, webinarID uuid.UUID) (*RescoreResult, error) {
	list, err := s.store.ListByWebinar(ctx, webinarID, nil)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	messages, err := s.store.MessagesByWebinar(ctx, webinarID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	res := &RescoreResult{Attendees: len(list), TierCounts: make(map[string]int, models.NumTiers)}
	for _, tier := range models.Tiers() {
		res.TierCounts[tier.String()] = 0
	}
	var changed []models.Attendee
	for _, a := range list {
		before := a
		ApplyScore(&a, messages[a.ID])
		res.TierCounts[a.EngagementTier.String()]++
		if a.EngagementScore != before.EngagementScore || a.EngagementTier != before.EngagementTier ||
			a.MessageCount != before.MessageCount || a.QuestionCount != before.QuestionCount {
			changed = append(changed, a)
		}
	}
	res.Changed = len(changed)
	if len(changed) > 0 {
		if err := s.store.UpdateScores(ctx, changed); err != nil {
			return nil, fmt.Errorf("update scores: %w", err)
		}
	}
	s.logger.Info("attendees rescored",
		zap.String("webinar_id", webinarID.String()),
		zap.Int("attendees", res.Attendees),
		zap.Int("changed", res.Changed),
	)
	return res, nil
}
