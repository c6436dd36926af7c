package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// Mailer delivers queued emails over SMTP.
type Mailer struct {
	addr   string
	from   string
	logger *slog.Logger
}

// NewMailer constructs a Mailer pointed at the SMTP relay.
func NewMailer(host string, port int, from string, logger *slog.Logger) *Mailer {
	return &Mailer{addr: fmt.Sprintf("%s:%d", host, port), from: from, logger: logger}
}

// Send delivers a single message.
func (m *Mailer) Send(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg.String()))
}

// HandleSendEmail processes TaskTypeSendEmail tasks.
func (m *Mailer) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}
	if err := m.Send(payload.To, payload.Subject, payload.Body); err != nil {
		m.logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	return nil
}
