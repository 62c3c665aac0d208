package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-channel-gate/internal/domain"
	"telegram-channel-gate/internal/domain/ports/repository"
)

// Ensure the adapter implements the port interface.
var _ repository.OnboardingStateRepository = (*OnboardingStateRepo)(nil)

// OnboardingStateRepo keeps the transient conversational stage of a user in
// Redis with a short TTL. Losing an entry only costs prompt precision; the
// durable phone-on-file check lives in Postgres.
type OnboardingStateRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewOnboardingStateRepo(client RedisClient) repository.OnboardingStateRepository {
	return &OnboardingStateRepo{
		client: client,
		ttl:    15 * time.Minute,
	}
}

func (s *OnboardingStateRepo) stateKey(userID int64) string {
	return fmt.Sprintf("onboarding_state:%d", userID)
}

func (s *OnboardingStateRepo) SetState(ctx context.Context, userID int64, state *repository.OnboardingState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(userID), data, s.ttl)
}

func (s *OnboardingStateRepo) GetState(ctx context.Context, userID int64) (*repository.OnboardingState, error) {
	data, err := s.client.Get(ctx, s.stateKey(userID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var state repository.OnboardingState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *OnboardingStateRepo) ClearState(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.stateKey(userID))
}
