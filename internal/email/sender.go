package email

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// Sender dispatches a verification code to an email address.
type Sender interface {
	SendOTP(ctx context.Context, to, code string) error
}

// ResendSender delivers OTP mail through the Resend API.
type ResendSender struct {
	client  *resend.Client
	from    string
	codeTTL time.Duration
}

// NewResendSender creates a Sender backed by Resend. codeTTL is the validity
// window quoted in the message copy; it must match the issuing TTL.
func NewResendSender(apiKey, from string, codeTTL time.Duration) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from, codeTTL: codeTTL}
}

// SendOTP sends the verification code. The copy quotes the validity window
// and tells recipients to ignore mail they did not request.
func (s *ResendSender) SendOTP(ctx context.Context, to, code string) error {
	subject, text, html := s.message(code)
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    text,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

func (s *ResendSender) message(code string) (subject, text, html string) {
	validity := formatValidity(s.codeTTL)
	subject = "Your ECOM verification code"
	text = fmt.Sprintf("Your ECOM verification code is %s. It expires in %s. If you did not request it, ignore this email.", code, validity)
	html = fmt.Sprintf("<p>Hello,</p><p>Your ECOM verification code is <b>%s</b> (valid for %s).</p><p>If you did not request it, please ignore this email.</p>", code, validity)
	return subject, text, html
}

// formatValidity renders a TTL for message copy ("5 minutes", "1 minute",
// "90 seconds" for sub-minute or non-whole-minute windows).
func formatValidity(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		m := int(ttl / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return fmt.Sprintf("%d seconds", int(ttl/time.Second))
}

// LogSender logs instead of sending. Used when RESEND_API_KEY is unset so
// local development does not need an email account.
type LogSender struct{}

// SendOTP logs the masked recipient. The code itself is never logged.
func (LogSender) SendOTP(_ context.Context, to, code string) error {
	logrus.WithField("to", Mask(to)).Info("otp email suppressed (no RESEND_API_KEY)")
	_ = code
	return nil
}

// Mask hides the local part of an address for logging (ab****@example.com).
func Mask(address string) string {
	at := -1
	for i, r := range address {
		if r == '@' {
			at = i
			break
		}
	}
	if at <= 2 {
		return "****"
	}
	return address[:2] + "****" + address[at:]
}
