// Package mail defines the act of requesting a mail send. Delivery transport
// lives outside the auth core; implementations receive the raw one-time token
// to embed in the mailed link.
package mail

import (
	"context"

	"github.com/nrs-org/nrs-auth/internal/logger"
)

// Mailer requests outbound auth mails.
type Mailer interface {
	SendEmailVerification(ctx context.Context, to, username, token string) error
	SendPasswordReset(ctx context.Context, to, username, token string) error
}

// LogMailer is the development Mailer: it records that a send was requested
// without delivering anything. Tokens are not written to the log.
type LogMailer struct {
	logger *logger.Logger
}

func NewLogMailer(logger *logger.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendEmailVerification(ctx context.Context, to, username, token string) error {
	m.logger.Info("Mail: email verification send requested",
		"to", MaskEmail(to),
		"username", username)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, username, token string) error {
	m.logger.Info("Mail: password reset send requested",
		"to", MaskEmail(to),
		"username", username)
	return nil
}

// MaskEmail hides most of an address for log output: "alice@example.com"
// becomes "a***@example.com".
func MaskEmail(email string) string {
	for i, r := range email {
		if r == '@' {
			if i <= 1 {
				return "***" + email[i:]
			}
			return email[:1] + "***" + email[i:]
		}
	}
	return "***"
}
