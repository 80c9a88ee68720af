package mail

import (
	"context"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
)

var _ model.Mailer = (*DisabledMailer)(nil)

// DisabledMailer stands in when no delivery credentials are configured.
// It fails every send, which surfaces on the wire as the same rejection
// an unknown address gets. The token is never logged.
type DisabledMailer struct {
	logger *logger.Logger
}

// NewDisabledMailer creates the stand-in mailer.
func NewDisabledMailer(logger *logger.Logger) *DisabledMailer {
	return &DisabledMailer{logger: logger}
}

// SendResetToken refuses delivery.
func (m *DisabledMailer) SendResetToken(_ context.Context, to, _ string) error {
	m.logger.Info("mail delivery disabled, reset request dropped", "to", to)
	return model.ErrNotFoundOrExists
}
