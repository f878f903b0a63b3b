package repo

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"CareerBot/model"

	"github.com/rs/zerolog/log"
)

// Mailer sends plain text mail through an SMTP relay.
type Mailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(host, port, username, password, from string) *Mailer {
	if from == "" {
		from = username
	}
	return &Mailer{Host: host, Port: port, Username: username, Password: password, From: from, send: smtp.SendMail}
}

// Enabled reports whether a relay is configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.Host != ""
}

func (m *Mailer) Send(ctx context.Context, mail model.Mail) error {
	if !m.Enabled() {
		return fmt.Errorf("mail relay not configured")
	}
	if len(mail.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}
	for _, to := range mail.To {
		if strings.ContainsAny(to, "\r\n") {
			return fmt.Errorf("invalid recipient %q", to)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(mail.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", strings.NewReplacer("\r", " ", "\n", " ").Replace(mail.Subject))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(mail.Body)

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	if err := m.send(net.JoinHostPort(m.Host, m.Port), auth, m.From, mail.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("error sending mail: %w", err)
	}
	log.Info().Strs("to", mail.To).Str("subject", mail.Subject).Msg("mail sent")
	return nil
}
