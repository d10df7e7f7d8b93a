package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"time"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPTransport relays messages through an SMTP server.
type SMTPTransport struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTPTransport constructs an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

// Name implements Transport.
func (t *SMTPTransport) Name() string { return "smtp" }

// Send implements Transport. net/smtp has no context support, so the call
// runs in its own goroutine and the caller stops waiting once ctx is done.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before sending email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	var auth smtp.Auth
	if t.cfg.Username != "" && t.cfg.Password != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}
	payload := encodeRFC822(msg, t.now())

	done := make(chan error, 1)
	go func() {
		done <- t.sendMail(addr, auth, msg.From, msg.To, payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}
