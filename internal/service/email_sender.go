package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendEmailSender delivers verification codes through the Resend API.
type ResendEmailSender struct {
	Client *resend.Client
	From   string
}

func NewResendEmailSender(apiKey string, from string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendEmailSender{}
	}
	return &ResendEmailSender{
		Client: resend.NewClient(apiKey),
		From:   from,
	}
}

func (s *ResendEmailSender) SendActivationEmail(ctx context.Context, email string, code string) error {
	subject := "Activate your account"
	html := fmt.Sprintf(
		"<p>Welcome to the forum!</p><p>Your activation code is:</p><h2>%s</h2><p>The code is valid for 24 hours.</p>",
		code,
	)
	text := fmt.Sprintf("Your activation code is %s. The code is valid for 24 hours.", code)
	return s.send(ctx, email, subject, html, text)
}

func (s *ResendEmailSender) SendPasswordResetEmail(ctx context.Context, email string, code string) error {
	subject := "Reset your password"
	html := fmt.Sprintf(
		"<p>We received a request to reset your password.</p><p>Your reset code is:</p><h2>%s</h2><p>The code is valid for 1 hour. If you did not request this, you can ignore this email.</p>",
		code,
	)
	text := fmt.Sprintf("Your password reset code is %s. The code is valid for 1 hour.", code)
	return s.send(ctx, email, subject, html, text)
}

func (s *ResendEmailSender) send(ctx context.Context, to string, subject string, html string, text string) error {
	if s.Client == nil {
		return errors.New("email sender not configured")
	}
	params := &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	}
	if _, err := s.Client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
