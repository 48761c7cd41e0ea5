package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"classconnect-auth/internal/apperrors"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case "":
		return ChannelEmail, nil
	case ChannelEmail, ChannelSMS, ChannelTelegram:
		return Channel(s), nil
	}
	return "", apperrors.New(apperrors.BadRequest, "invalid_channel", fmt.Sprintf("unsupported channel %q", s))
}

var (
	ErrNotificationRejected    = apperrors.New(apperrors.Rejected, "notification_rejected", "notification rejected by provider")
	ErrNotificationUnavailable = apperrors.New(apperrors.Unavailable, "notification_unavailable", "notification service unavailable")
)

func notificationRejected(err error) error {
	return apperrors.Wrap(apperrors.Rejected, ErrNotificationRejected.Type, ErrNotificationRejected.Message, err)
}

func notificationUnavailable(err error) error {
	return apperrors.Wrap(apperrors.Unavailable, ErrNotificationUnavailable.Type, ErrNotificationUnavailable.Message, err)
}

// Notifier delivers a code synchronously. Failures are ErrNotificationRejected
// (the provider refused) or ErrNotificationUnavailable (it could not be reached).
type Notifier interface {
	Send(ctx context.Context, destination, code string, channel Channel) error
}

// remoteNotifier hands delivery to the notification microservice.
type remoteNotifier struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewRemoteNotifier(url string, client *http.Client, log *zap.Logger) Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &remoteNotifier{url: url, client: client, log: log.Named("notify.remote")}
}

type notificationPayload struct {
	To      string `json:"to"`
	Pin     string `json:"pin"`
	Channel string `json:"channel"`
}

func (n *remoteNotifier) Send(ctx context.Context, destination, code string, channel Channel) error {
	body, err := json.Marshal(notificationPayload{To: destination, Pin: code, Channel: string(channel)})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return notificationUnavailable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("[notify][send] transport error", zap.String("channel", string(channel)), zap.Error(err))
		return notificationUnavailable(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusForbidden:
		n.log.Warn("[notify][send] rejected", zap.String("channel", string(channel)), zap.Int("status", resp.StatusCode))
		return notificationRejected(fmt.Errorf("notification service status %d", resp.StatusCode))
	default:
		n.log.Warn("[notify][send] unexpected status", zap.String("channel", string(channel)), zap.Int("status", resp.StatusCode))
		return notificationUnavailable(fmt.Errorf("notification service status %d", resp.StatusCode))
	}
}

// channelRouter delivers directly through the configured provider per channel.
type channelRouter struct {
	senders map[Channel]Notifier
}

func NewChannelRouter(senders map[Channel]Notifier) Notifier {
	m := make(map[Channel]Notifier, len(senders))
	for ch, s := range senders {
		if s != nil {
			m[ch] = s
		}
	}
	return &channelRouter{senders: m}
}

func (r *channelRouter) Send(ctx context.Context, destination, code string, channel Channel) error {
	s, ok := r.senders[channel]
	if !ok {
		return apperrors.New(apperrors.BadRequest, "invalid_channel", fmt.Sprintf("channel %q is not configured", channel))
	}
	return s.Send(ctx, destination, code, channel)
}
