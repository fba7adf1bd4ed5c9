// services/mailer.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/HSouheill/referral_backend/utils"
)

// EmailSender delivers a single plain-text message.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMTPEmailSender sends through an SMTP relay with gomail.
type SMTPEmailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPEmailSender(host string, port int, user, pass, from string) *SMTPEmailSender {
	if from == "" {
		from = user
	}
	return &SMTPEmailSender{dialer: gomail.NewDialer(host, port, user, pass), from: from}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogEmailSender only logs; it stands in when SMTP is not configured.
type LogEmailSender struct{}

func (LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	log.WithFields(log.Fields{"to": to, "subject": subject}).Info("SMTP not configured, email not sent")
	return nil
}

// Notifier composes the account emails and retries delivery with
// exponential backoff.
type Notifier struct {
	sender       EmailSender
	clientURL    string
	maxAttempts  int
	initialDelay time.Duration
}

func NewNotifier(sender EmailSender, clientURL string) *Notifier {
	return &Notifier{sender: sender, clientURL: clientURL, maxAttempts: 3, initialDelay: time.Second}
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) error {
	delay := n.initialDelay
	var err error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		err = n.sender.SendEmail(ctx, to, subject, body)
		if err == nil {
			if attempt > 1 {
				log.WithFields(log.Fields{"attempt": attempt, "email": to}).Info("Email sent after retry")
			}
			return nil
		}
		if attempt == n.maxAttempts {
			break
		}
		log.WithFields(log.Fields{
			"attempt":      attempt,
			"max_attempts": n.maxAttempts,
			"email":        to,
		}).WithError(err).Warn("Failed to send email, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// SendPasswordReset mails the reset link carrying the raw token.
func (n *Notifier) SendPasswordReset(ctx context.Context, to, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(n.clientURL, "/"), token)
	body := fmt.Sprintf(
		"You requested a password reset for your account.\n\n"+
			"Open the link below to choose a new password:\n%s\n\n"+
			"The link expires in one hour. If you did not request this, ignore this email.",
		resetURL,
	)
	return n.send(ctx, to, "Password Reset Request", body)
}

// SendWelcome greets a new account and includes its referral code.
func (n *Notifier) SendWelcome(ctx context.Context, to, name, referralCode string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour account is ready.\n\n"+
			"Your referral code is %s. Share %s and you both earn credits "+
			"when your friend makes their first purchase.",
		name, referralCode, utils.ShareLink(n.clientURL, referralCode),
	)
	return n.send(ctx, to, "Welcome!", body)
}
