package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, verifyURL, idempotencyKey string) error
}

// NoopEmailService logs verification links instead of sending them. Used when
// no Resend API key is configured (local development).
type NoopEmailService struct{}

func (s *NoopEmailService) SendVerificationEmail(ctx context.Context, toEmail, name, verifyURL, idempotencyKey string) error {
	log.Printf("[EmailService] noop send verification email to=%s url=%s", toEmail, verifyURL)
	return nil
}

// ResendEmailService sends emails via the Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendVerificationEmail(ctx context.Context, toEmail, name, verifyURL, idempotencyKey string) error {
	if toEmail == "" || verifyURL == "" {
		return fmt.Errorf("toEmail and verifyURL are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Verify your email",
		Text:    verificationEmailText(name, verifyURL),
		Html:    verificationEmailHTML(name, verifyURL),
	}

	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func verificationEmailText(name, verifyURL string) string {
	greeting := "Hi,"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	return fmt.Sprintf(`%s

Please confirm your email by clicking the link below:

%s

If you didn't request this, you can safely ignore this email.

Thanks!`, greeting, verifyURL)
}

func verificationEmailHTML(name, verifyURL string) string {
	greeting := "Hi,"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	return fmt.Sprintf(`<div style="font-family:system-ui,Segoe UI,Roboto,Arial">
  <p>%s</p>
  <p>Please confirm your email by clicking the button below:</p>
  <p><a href="%s" style="background:#111;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none">Verify email</a></p>
  <p>If the button doesn't work, copy &amp; paste this link:</p>
  <p><code>%s</code></p>
  <p>Thanks!</p>
</div>`, greeting, verifyURL, verifyURL)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
