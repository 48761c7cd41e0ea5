package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"classconnect-auth/internal/apperrors"
)

type telegramService struct {
	bot *tgbotapi.BotAPI
	log *zap.Logger
}

// NewTelegramService wraps an authorised bot; destinations are chat ids.
func NewTelegramService(bot *tgbotapi.BotAPI, log *zap.Logger) Notifier {
	return &telegramService{bot: bot, log: log.Named("notify.telegram")}
}

func (t *telegramService) Send(ctx context.Context, destination, code string, _ Channel) error {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil || chatID == 0 {
		return apperrors.New(apperrors.BadRequest, "invalid_destination", "telegram destination must be a chat id")
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Verification code: <b>%s</b>", code))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		done <- err
	}()
	select {
	case err = <-done:
	case <-ctx.Done():
		return notificationUnavailable(ctx.Err())
	}
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		t.log.Warn("[tg][send] rejected", zap.Int("code", apiErr.Code), zap.String("desc", apiErr.Message))
		return notificationRejected(err)
	}
	t.log.Warn("[tg][send] transport error", zap.Error(err))
	return notificationUnavailable(err)
}
