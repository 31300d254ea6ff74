package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para envío de correos del flujo de cuentas.
type Sender interface {
	SendVerification(ctx context.Context, toEmail string, link string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, toEmail string, link string, expiresAt time.Time) error
	SendWelcome(ctx context.Context, toEmail string, name string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) fail() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendVerification(_ context.Context, _ string, _ string, _ time.Time) error {
	return s.fail()
}

func (s *disabledSender) SendPasswordReset(_ context.Context, _ string, _ string, _ time.Time) error {
	return s.fail()
}

func (s *disabledSender) SendWelcome(_ context.Context, _ string, _ string) error {
	return s.fail()
}
