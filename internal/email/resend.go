package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends emails via Resend (for production).
type ResendSender struct {
	apiKey   string
	from     string
	fromName string
	logger   *slog.Logger
}

// NewResendSender creates a new Resend email sender.
func NewResendSender(cfg *Config, logger *slog.Logger) *ResendSender {
	return &ResendSender{
		apiKey:   cfg.APIKey,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

// SendVerificationCode sends the email verification code via Resend.
func (s *ResendSender) SendVerificationCode(ctx context.Context, to, code string) error {
	return s.send(ctx, to, "Verify your email - CityTransit", formatVerificationCodeEmail(to, code))
}

// SendPasswordReset sends a password reset link via Resend.
func (s *ResendSender) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	return s.send(ctx, to, "Reset your password - CityTransit", formatPasswordResetEmail(to, resetLink))
}

func (s *ResendSender) send(ctx context.Context, to, subject, html string) error {
	client := resend.NewClient(s.apiKey)

	from := s.from
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.logger.Error("failed to send email via Resend",
			"error", err,
			"to", to,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent via Resend",
		"to", to,
		"email_id", sent.Id,
	)
	return nil
}
