// Package mailer builds account emails and hands them to a Mailer in the
// background.
package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/exposureshield/internal/logging"
)

// Message is an outgoing email. Link is the action URL embedded in Body.
type Message struct {
	To      string
	Subject string
	Body    string
	Link    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the logger instead of delivering them. The
// link carries a live token, so it is only logged at debug level.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "email queued", "to", msg.To, "subject", msg.Subject)
	m.log.Debug(ctx, "email link", "to", msg.To, "link", msg.Link)
	return nil
}

func link(baseURL, path string, query url.Values) string {
	return strings.TrimRight(baseURL, "/") + path + "?" + query.Encode()
}

// describeTTL renders d for an email body, e.g. "24 hours" or "15 minutes".
func describeTTL(d time.Duration) string {
	unit := func(n time.Duration, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return unit(d/time.Hour, "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return unit(d/time.Minute, "minute")
	default:
		return d.String()
	}
}

// VerificationMessage builds the email-verification mail for a token that
// lives for ttl.
func VerificationMessage(baseURL, email, token string, ttl time.Duration) Message {
	l := link(baseURL, "/auth/verify-email", url.Values{"token": {token}, "email": {email}})
	return Message{
		To:      email,
		Subject: "Verify your ExposureShield email",
		Body:    "Confirm your email address by opening this link within " + describeTTL(ttl) + ":\n\n" + l + "\n",
		Link:    l,
	}
}

// PasswordResetMessage builds the password-reset mail for a token that
// lives for ttl.
func PasswordResetMessage(baseURL, email, token string, ttl time.Duration) Message {
	l := link(baseURL, "/reset-password", url.Values{"token": {token}})
	return Message{
		To:      email,
		Subject: "Reset your ExposureShield password",
		Body: "Someone asked to reset the password for this account. " +
			"If it was you, open this link within " + describeTTL(ttl) + ":\n\n" + l +
			"\n\nOtherwise you can ignore this email.\n",
		Link: l,
	}
}
