package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
)

// EligibilityService answers whether a tutor may apply for the advanced tier.
type EligibilityService interface {
	Check(ctx context.Context, tutorID uint) (dto.EligibilityResponse, error)
	Invalidate(ctx context.Context, tutorID uint)
}

type eligibilityService struct {
	metrics      repository.TutorMetricsProvider
	requirements models.EligibilityRequirements
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// NewEligibilityService builds the eligibility checker. A nil cache disables caching.
func NewEligibilityService(metrics repository.TutorMetricsProvider, requirements models.EligibilityRequirements, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) EligibilityService {
	return &eligibilityService{
		metrics:      metrics,
		requirements: requirements,
		cache:        cache,
		cacheTTL:     ttl,
		logger:       logger.With().Str("component", "eligibility_service").Logger(),
		now:          time.Now,
	}
}

// InvalidateOnApplicationEvents drops cached verdicts whenever an application of the tutor changes.
// The returned function unsubscribes.
func InvalidateOnApplicationEvents(broker *EventBroker, eligibility EligibilityService) func() {
	return broker.Subscribe(func(event Event) {
		if event.EntityType != EntityUpgradeApplication {
			return
		}
		tutorID := event.RecipientID
		if event.Type == EventApplicationSubmitted {
			tutorID = event.ActorID
		}
		if tutorID == 0 {
			return
		}
		eligibility.Invalidate(context.Background(), tutorID)
	})
}

func eligibilityCacheKey(tutorID uint) string {
	return fmt.Sprintf("eligibility:tutor:%d", tutorID)
}

func (s *eligibilityService) Check(ctx context.Context, tutorID uint) (dto.EligibilityResponse, error) {
	cacheKey := eligibilityCacheKey(tutorID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.EligibilityResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("tutor_id", tutorID).Msg("eligibility cache hit")
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read eligibility cache")
		}
	}

	snapshot, err := s.metrics.GetSnapshot(ctx, tutorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EligibilityResponse{}, NotFoundError{Entity: EntityTutor, EntityID: tutorID}
		}
		return dto.EligibilityResponse{}, err
	}

	verdict := EvaluateEligibility(snapshot, s.requirements, s.now().UTC())
	response := dto.NewEligibilityResponse(verdict, snapshot, s.requirements)

	if s.cache != nil && s.cacheTTL > 0 {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store eligibility cache")
			}
		}
	}

	return response, nil
}

func (s *eligibilityService) Invalidate(ctx context.Context, tutorID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, eligibilityCacheKey(tutorID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("tutor_id", tutorID).Msg("failed to invalidate eligibility cache")
	}
}
