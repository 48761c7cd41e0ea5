package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type emailService struct {
	dialer *gomail.Dialer
	from   string
	log    *zap.Logger
}

// NewEmailService delivers codes over SMTP.
func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, log *zap.Logger) Notifier {
	return &emailService{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
		log:    log.Named("notify.email"),
	}
}

func pinEmail(from, to, code string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your verification code")
	m.SetBody("text/html", fmt.Sprintf(`
		<h3>Verification code</h3>
		<p>Use the following code to continue: <strong>%s</strong></p>
		<p>The code expires shortly. If you did not request it, you can ignore this email.</p>
	`, code))
	return m
}

func (s *emailService) Send(ctx context.Context, destination, code string, _ Channel) error {
	done := make(chan error, 1)
	go func() {
		done <- s.deliver(pinEmail(s.from, destination, code))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return notificationUnavailable(ctx.Err())
	}
}

// deliver separates connection failures (unavailable) from the server
// refusing the message (rejected).
func (s *emailService) deliver(m *gomail.Message) error {
	sc, err := s.dialer.Dial()
	if err != nil {
		s.log.Warn("[email][send] dial failed", zap.Error(err))
		return notificationUnavailable(err)
	}
	defer sc.Close()
	if err := gomail.Send(sc, m); err != nil {
		s.log.Warn("[email][send] rejected", zap.Error(err))
		return notificationRejected(err)
	}
	return nil
}
