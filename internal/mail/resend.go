// Package mail delivers reset tokens to account email addresses.
package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/voidvault/voidvault-server/internal/model"
)

const resetSubject = "Password Reset Token"

var _ model.Mailer = (*ResendMailer)(nil)

// ResendMailer sends reset tokens through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer creates a mailer sending from the given address.
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

// SendResetToken mails the reset token. The token authorizes a full
// credential rotation, so it goes to the registered address and nowhere
// else.
func (m *ResendMailer) SendResetToken(ctx context.Context, to, token string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: resetSubject,
		Html:    fmt.Sprintf(`<p align="center">Paste this token in your app to initiate password reset</p><pre align="center">%s</pre>`, token),
	}

	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	return nil
}
