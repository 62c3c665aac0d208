package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-gate/internal/domain"
	"telegram-channel-gate/internal/domain/ports/repository"
	"telegram-channel-gate/internal/infra/i18n"
	"telegram-channel-gate/internal/usecase"
)

// BotFacade routes inbound bot events (start command, contact share, free
// text) into the lifecycle engine. Methods return the reply text so the
// Telegram adapter just forwards it to the chat; recoverable user mistakes
// become replies, not errors.
type BotFacade struct {
	membership usecase.MembershipUseCase
	states     repository.OnboardingStateRepository
	tr         *i18n.Translator
	log        *zerolog.Logger
}

func NewBotFacade(
	membership usecase.MembershipUseCase,
	states repository.OnboardingStateRepository,
	tr *i18n.Translator,
	logger *zerolog.Logger,
) *BotFacade {
	facadeLog := logger.With().Str("component", "BotFacade").Logger()
	return &BotFacade{
		membership: membership,
		states:     states,
		tr:         tr,
		log:        &facadeLog,
	}
}

// HandleStart ensures an empty record exists and prompts for the phone.
func (b *BotFacade) HandleStart(ctx context.Context, userID int64) (string, error) {
	if err := b.membership.StartOnboarding(ctx, userID); err != nil {
		return "", err
	}
	b.setState(ctx, userID, repository.StageAwaitingPhone)
	return b.tr.T("onboarding_prompt"), nil
}

// HandleContact attaches the shared phone number and prompts for a code.
func (b *BotFacade) HandleContact(ctx context.Context, userID int64, phone string) (string, error) {
	if err := b.membership.AttachPhone(ctx, userID, phone); err != nil {
		return "", err
	}
	b.setState(ctx, userID, repository.StageAwaitingCode)
	return b.tr.T("phone_received"), nil
}

// HandleText treats free text as a code redemption attempt. The onboarding
// check inside Redeem precedes any code validation.
func (b *BotFacade) HandleText(ctx context.Context, userID int64, text string) (string, error) {
	act, err := b.membership.Redeem(ctx, userID, text)
	switch {
	case err == nil:
		b.clearState(ctx, userID)
		return b.tr.T("activation_success",
			act.DurationDays, usecase.FormatExpiry(act.ExpiresAt), act.InviteLink), nil
	case errors.Is(err, domain.ErrNotOnboarded):
		if st, serr := b.states.GetState(ctx, userID); serr == nil && st.Stage == repository.StageAwaitingPhone {
			return b.tr.T("awaiting_phone_hint"), nil
		}
		return b.tr.T("not_onboarded"), nil
	case errors.Is(err, domain.ErrCodeInvalidOrUsed):
		return b.tr.T("invalid_code"), nil
	case errors.Is(err, domain.ErrGatewayFailure):
		return b.tr.T("activation_error"), nil
	default:
		return "", err
	}
}

func (b *BotFacade) setState(ctx context.Context, userID int64, stage repository.OnboardingStage) {
	st := &repository.OnboardingState{Stage: stage, UpdatedAt: time.Now().UTC()}
	if err := b.states.SetState(ctx, userID, st); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("set onboarding state failed")
	}
}

func (b *BotFacade) clearState(ctx context.Context, userID int64) {
	if err := b.states.ClearState(ctx, userID); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("clear onboarding state failed")
	}
}
