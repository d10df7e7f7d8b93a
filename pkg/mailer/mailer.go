// Package mailer delivers rendered notification messages through a
// configurable transport.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoRecipients is returned when a message has nobody to deliver to.
var ErrNoRecipients = errors.New("message has no recipients")

// Message is a fully rendered plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	Tags    map[string]string
}

// Validate checks the minimum envelope required by every transport.
func (m Message) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("message sender missing")
	}
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	return nil
}

// Transport delivers a message or returns an error worth retrying.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Publisher fans out a short alert to a topic.
type Publisher interface {
	Publish(ctx context.Context, subject, body string) error
}

// encodeRFC822 renders headers and body for SMTP delivery.
func encodeRFC822(msg Message, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
