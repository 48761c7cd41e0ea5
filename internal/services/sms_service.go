package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"classconnect-auth/internal/utils"
)

type smsService struct {
	client *utils.Client
	log    *zap.Logger
}

// NewSMSService delivers codes through Mobizon.
func NewSMSService(client *utils.Client, log *zap.Logger) Notifier {
	return &smsService{client: client, log: log.Named("notify.sms")}
}

func (s *smsService) Send(ctx context.Context, destination, code string, _ Channel) error {
	resp, err := s.client.SendSMS(ctx, destination, fmt.Sprintf("Verification code: %s", code))
	if err != nil {
		var pe *utils.ProviderError
		if errors.As(err, &pe) {
			s.log.Warn("[sms][send] rejected", zap.Int("code", pe.Code))
			return notificationRejected(err)
		}
		s.log.Warn("[sms][send] transport error", zap.Error(err))
		return notificationUnavailable(err)
	}
	s.log.Info("[sms][send] ok", zap.String("message_id", resp.Data.MessageID))
	return nil
}
