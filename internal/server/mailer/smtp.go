package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/otp"
)

var subjects = map[otp.Purpose]string{
	otp.PurposeSignup:          "Verify your email",
	otp.PurposeForgotPassword:  "Reset your password",
	otp.PurposeAccountDeletion: "Account deletion request",
}

var bodies = map[otp.Purpose]string{
	otp.PurposeSignup:          "Your signup code is: %s",
	otp.PurposeForgotPassword:  "Your password reset code is: %s",
	otp.PurposeAccountDeletion: "Your code to confirm account deletion is: %s",
}

// SMTPConfig addresses a submission server. Username may be empty for
// unauthenticated relays.
type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

// SMTPSender sends plain-text mail through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig

	// send is smtp.SendMail, replaced in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) SendOTP(ctx context.Context, email string, code string, purpose otp.Purpose) error {
	subject, ok := subjects[purpose]
	if !ok {
		return fmt.Errorf("mail purpose %q: %w", purpose, common.ErrValidation)
	}
	body := fmt.Sprintf(bodies[purpose], code) + "\r\nThe code is valid for 10 minutes.\r\n"
	return s.deliver(ctx, email, subject, body)
}

func (s *SMTPSender) SendInvitation(ctx context.Context, email string, token string, inviterName string) error {
	if inviterName == "" {
		inviterName = "A member"
	}
	body := fmt.Sprintf("%s invited you to join.\r\nYour referral token: %s\r\n", inviterName, token)
	return s.deliver(ctx, email, "You are invited", body)
}

func (s *SMTPSender) deliver(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("recipient: %w", common.ErrValidation)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		host, _, err := net.SplitHostPort(s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("smtp addr: %w", err)
		}
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)

	if err := s.send(s.cfg.Addr, auth, s.cfg.From, []string{to}, []byte(b.String())); err != nil {
		return common.Unavailable("smtp send", err)
	}
	return nil
}
