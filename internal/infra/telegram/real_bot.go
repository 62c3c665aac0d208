package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-channel-gate/internal/application"
	"telegram-channel-gate/internal/config"
	"telegram-channel-gate/internal/domain/ports/adapter"
	"telegram-channel-gate/internal/infra/i18n"
	"telegram-channel-gate/internal/infra/logging"
)

// Ensure the bot satisfies the gateway port.
var _ adapter.ChannelGateway = (*ChannelBot)(nil)

// ChannelBot is the tgbotapi adapter. It plays two roles: the inbound
// dispatcher (long polling with a worker pool) and the outbound
// ChannelGateway against the one managed channel.
type ChannelBot struct {
	bot       *tgbotapi.BotAPI
	channelID int64
	tr        *i18n.Translator
	log       *zerolog.Logger

	// facade is attached after construction; the lifecycle engine needs the
	// gateway first, and the facade needs the engine.
	facade *application.BotFacade

	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewChannelBot(cfg *config.BotConfig, channelID int64, tr *i18n.Translator, logger *zerolog.Logger) (*ChannelBot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if channelID == 0 {
		return nil, errors.New("channel id is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	botLog := logger.With().Str("component", "ChannelBot").Logger()
	return &ChannelBot{
		bot:           bot,
		channelID:     channelID,
		tr:            tr,
		log:           &botLog,
		updateWorkers: workers,
	}, nil
}

// AttachFacade wires the dispatcher target. Must be called before
// StartPolling.
func (r *ChannelBot) AttachFacade(f *application.BotFacade) { r.facade = f }

// StartPolling begins polling Telegram for updates concurrently.
// It runs until ctx is cancelled.
func (r *ChannelBot) StartPolling(ctx context.Context) error {
	if r.facade == nil {
		return errors.New("facade not attached")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, update); err != nil {
						r.log.Error().Err(err).Int("worker", workerID).Msg("error handling update")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}

	go func() {
		defer close(updateChan)
		for {
			select {
			case update := <-updates:
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	r.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

// StopPolling stops the polling loop gracefully.
func (r *ChannelBot) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// handleUpdate routes one update: /start, contact share, or free text
// (a redemption attempt). Each update gets its own trace id.
func (r *ChannelBot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	userID := msg.From.ID

	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithUserID(ctx, userID)
	log := logging.With(ctx, r.log)

	switch {
	case msg.Contact != nil:
		reply, err := r.facade.HandleContact(ctx, userID, msg.Contact.PhoneNumber)
		if err != nil {
			log.Error().Err(err).Msg("contact handling failed")
			return err
		}
		return r.sendWithMarkup(userID, reply, tgbotapi.NewRemoveKeyboard(false))

	case msg.IsCommand():
		if msg.Command() != "start" {
			return nil
		}
		reply, err := r.facade.HandleStart(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("start handling failed")
			return err
		}
		return r.sendWithMarkup(userID, reply, r.contactKeyboard())

	case msg.Text != "":
		reply, err := r.facade.HandleText(ctx, userID, msg.Text)
		if err != nil {
			log.Error().Err(err).Msg("text handling failed")
			return err
		}
		return r.SendMessage(ctx, userID, reply)
	}
	return nil
}

func (r *ChannelBot) contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(r.tr.T("share_phone_button")),
		),
	)
}

func (r *ChannelBot) sendWithMarkup(userID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = markup
	_, err := r.bot.Send(msg)
	return err
}

// SendMessage sends a plain text message to the user's private chat.
func (r *ChannelBot) SendMessage(ctx context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	_, err := r.bot.Send(msg)
	return err
}

// CreateInviteLink creates a single-use channel join link scoped to expire
// with the subscription it was issued for.
func (r *ChannelBot) CreateInviteLink(ctx context.Context, expiresAt time.Time) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: r.channelID},
		ExpireDate: int(expiresAt.Unix()),
		MemberLimit: 1,
	}
	resp, err := r.bot.Request(cfg)
	if err != nil {
		return "", err
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

// BanMember kicks the user out of the channel. With the invite link already
// spent, the ban acts as a one-time removal.
func (r *ChannelBot) BanMember(ctx context.Context, userID int64) error {
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: r.channelID, UserID: userID},
	}
	_, err := r.bot.Request(cfg)
	return err
}

// UnbanMember lifts the ban so the user can rejoin later with a fresh code.
func (r *ChannelBot) UnbanMember(ctx context.Context, userID int64) error {
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: r.channelID, UserID: userID},
	}
	_, err := r.bot.Request(cfg)
	return err
}
