package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// SMTPSender sends emails via SMTP (for local development and testing).
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	logger   *slog.Logger
}

// NewSMTPSender creates a new SMTP email sender.
func NewSMTPSender(cfg *Config, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.FromAddress,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

// SendVerificationCode sends the email verification code via SMTP.
func (s *SMTPSender) SendVerificationCode(ctx context.Context, to, code string) error {
	return s.send(to, "Verify your email - CityTransit", formatVerificationCodeEmail(to, code))
}

// SendPasswordReset sends a password reset link via SMTP.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	return s.send(to, "Reset your password - CityTransit", formatPasswordResetEmail(to, resetLink))
}

func (s *SMTPSender) send(to, subject, htmlBody string) error {
	msg := formatEmailMessage(s.from, s.fromName, to, subject, htmlBody)

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg)); err != nil {
		s.logger.Error("failed to send email via SMTP",
			"error", err,
			"to", to,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent via SMTP", "to", to)
	return nil
}

// formatEmailMessage formats an email message with headers.
func formatEmailMessage(from, fromName, to, subject, htmlBody string) string {
	fromHeader := from
	if fromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	return fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		fromHeader, to, subject, htmlBody,
	)
}

// formatVerificationCodeEmail creates the HTML body for the verification
// code email.
func formatVerificationCodeEmail(to, code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Verify your email</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background-color: #f8f9fa; border-radius: 10px; padding: 30px; margin: 20px 0;">
        <h1 style="color: #2c3e50; margin-top: 0;">Verify your email</h1>

        <p>Hi,</p>

        <p>Enter this code in <strong>CityTransit</strong> to confirm your email address:</p>

        <p style="text-align: center; font-size: 32px; letter-spacing: 8px; font-weight: bold; background-color: #ecf0f1; padding: 15px; border-radius: 5px;">%s</p>

        <p style="color: #e74c3c; font-weight: bold;">This code expires in 15 minutes.</p>

        <p>If you did not create an account, you can safely ignore this email.</p>

        <hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">

        <p style="font-size: 12px; color: #7f8c8d;">
            <em>This email was sent to: %s</em>
        </p>
    </div>
</body>
</html>`, code, to)
}

// formatPasswordResetEmail creates the HTML body for the password reset
// email.
func formatPasswordResetEmail(to, resetLink string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Reset your password</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background-color: #f8f9fa; border-radius: 10px; padding: 30px; margin: 20px 0;">
        <h1 style="color: #2c3e50; margin-top: 0;">Reset your password</h1>

        <p>Hi,</p>

        <p>We received a request to reset the password for your <strong>CityTransit</strong> account.</p>

        <div style="text-align: center; margin: 30px 0;">
            <a href="%s"
               style="background-color: #3498db; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block; font-weight: bold;">
                Reset password
            </a>
        </div>

        <p>Or copy and paste this link into your browser:</p>
        <p style="background-color: #ecf0f1; padding: 10px; border-radius: 5px; word-break: break-all;">
            <code>%s</code>
        </p>

        <p style="color: #e74c3c; font-weight: bold;">This link expires in 2 hours.</p>

        <p>If you did not request a password reset, you can safely ignore this email.</p>

        <hr style="border: none; border-top: 1px solid #ddd; margin: 30px 0;">

        <p style="font-size: 12px; color: #7f8c8d;">
            <em>This email was sent to: %s</em>
        </p>
    </div>
</body>
</html>`, resetLink, resetLink, to)
}
