// backend/internal/adapters/out/mail/sendgrid_wire.go
package mail

import (
	"go.uber.org/zap"
)

// NewVerificationMailerWithSendGrid returns nil when SendGrid is not
// configured; callers fall back to logging codes (demo mode).
func NewVerificationMailerWithSendGrid(apiKey, fromAddr, storeName string, lg *zap.Logger) *VerificationMailer {
	if lg == nil {
		lg = zap.NewNop()
	}
	if apiKey == "" || fromAddr == "" {
		lg.Warn("SendGrid is not configured; verification codes will only be logged",
			zap.Bool("apiKeySet", apiKey != ""), zap.Bool("fromSet", fromAddr != ""))
		return nil
	}
	m := NewVerificationMailer(NewSendGridClient(apiKey, storeName, lg), fromAddr, storeName)
	lg.Info("verification mailer initialized", zap.String("from", fromAddr))
	return m
}
