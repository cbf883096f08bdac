// backend/internal/adapters/out/mail/verification_mailer.go
package mail

import (
	"context"
	"fmt"
	"strings"
)

// EmailClient は実際のメール送信クライアント（SendGrid など）を抽象化します。
type EmailClient interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// VerificationMailer implements usecase.VerificationMailer.
type VerificationMailer struct {
	client      EmailClient
	fromAddress string
	storeName   string
}

func NewVerificationMailer(client EmailClient, fromAddress, storeName string) *VerificationMailer {
	if strings.TrimSpace(storeName) == "" {
		storeName = "BookNest"
	}
	return &VerificationMailer{client: client, fromAddress: fromAddress, storeName: storeName}
}

func (m *VerificationMailer) SendVerificationCode(ctx context.Context, toEmail, code string) error {
	subject := fmt.Sprintf("[%s] Your verification code", m.storeName)
	return m.client.Send(ctx, m.fromAddress, strings.TrimSpace(toEmail), subject, VerificationBody(m.storeName, code))
}

// VerificationBody is the plain-text body of the sign-up code mail.
func VerificationBody(storeName, code string) string {
	return fmt.Sprintf(`Welcome to %s!

Your verification code is: %s

This code expires in 10 minutes. If you did not try to create an account, you can ignore this email.
`, storeName, code)
}
