package repository

import (
	"context"
	"time"
)

type OnboardingStage string

const (
	StageAwaitingPhone OnboardingStage = "awaiting_phone"
	StageAwaitingCode  OnboardingStage = "awaiting_code"
)

// OnboardingState is the transient conversational position of a user, kept
// in a short-lived cache. The durable phone-on-file check still lives in the
// member record; this state only shapes prompts.
type OnboardingState struct {
	Stage     OnboardingStage `json:"stage"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type OnboardingStateRepository interface {
	SetState(ctx context.Context, userID int64, state *OnboardingState) error
	// GetState returns domain.ErrNotFound when no state is cached.
	GetState(ctx context.Context, userID int64) (*OnboardingState, error)
	ClearState(ctx context.Context, userID int64) error
}
