// AngelaMos | 2026
// mailer.go

package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"
)

type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

type Attachment struct {
	Filename string
	Content  []byte
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var magicLinkTemplate = template.Must(template.New("magic_link").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Helvetica, Arial, sans-serif; color: #1f2937;">
    <h2 style="color: #1E3A8A;">Sign in to ReportRiser</h2>
    <p>Click the button below to sign in. This link expires in {{.Expiry}} and can be used once.</p>
    <p>
      <a href="{{.Link}}" style="display: inline-block; padding: 12px 20px; background: #1E3A8A; color: #ffffff; text-decoration: none; border-radius: 6px;">Sign in</a>
    </p>
    <p style="font-size: 12px; color: #6b7280;">If you did not request this email you can ignore it.</p>
  </body>
</html>`))

// MagicLinkSender adapts a Mailer to the login flow.
type MagicLinkSender struct {
	mailer Mailer
}

func NewMagicLinkSender(m Mailer) *MagicLinkSender {
	return &MagicLinkSender{mailer: m}
}

func (s *MagicLinkSender) SendMagicLink(
	ctx context.Context,
	to, link string,
	ttl time.Duration,
) error {
	msg, err := MagicLinkMessage(to, link, ttl)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

func MagicLinkMessage(to, link string, ttl time.Duration) (Message, error) {
	expiry := humanDuration(ttl)

	var buf bytes.Buffer
	err := magicLinkTemplate.Execute(&buf, struct {
		Link   string
		Expiry string
	}{Link: link, Expiry: expiry})
	if err != nil {
		return Message{}, fmt.Errorf("render magic link email: %w", err)
	}

	return Message{
		To:      to,
		Subject: "Your ReportRiser sign-in link",
		HTML:    buf.String(),
		Text: fmt.Sprintf(
			"Sign in to ReportRiser: %s\n\nThis link expires in %s and can be used once.",
			link,
			expiry,
		),
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}

// LogMailer writes messages to the log instead of delivering them. Used
// when no provider key is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "email not delivered, no provider configured",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
		"attachments", len(msg.Attachments),
	)
	return nil
}
