package publish

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/TobiSchelling/AINewsletter/internal/config"
)

const DefaultSubject = "Your AI-Powered Newsletter"

// Mailer sends a saved newsletter over SMTP with implicit TLS.
type Mailer struct {
	host     string
	port     int
	sender   string
	password string
	receiver string
	timeout  time.Duration

	deliver func(ctx context.Context, msg *mail.Msg) error
}

// NewMailer reads the sender, password and receiver from the environment
// variables named in cfg and fails when any of them is unset.
func NewMailer(cfg config.Email) (*Mailer, error) {
	sender, err := config.RequireEnv(cfg.SenderEnv, "sender email address")
	if err != nil {
		return nil, err
	}
	password, err := config.RequireEnv(cfg.PasswordEnv, "sender email password")
	if err != nil {
		return nil, err
	}
	receiver, err := config.RequireEnv(cfg.ReceiverEnv, "receiver email address")
	if err != nil {
		return nil, err
	}

	m := &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		sender:   sender,
		password: password,
		receiver: receiver,
		timeout:  cfg.Timeout,
	}
	if m.host == "" {
		m.host = "smtp.gmail.com"
	}
	if m.port == 0 {
		m.port = 465
	}
	if m.timeout == 0 {
		m.timeout = 30 * time.Second
	}
	m.deliver = m.dialAndSend
	return m, nil
}

// Receiver returns the configured recipient address.
func (m *Mailer) Receiver() string { return m.receiver }

// Message builds the HTML email for the newsletter stored at path.
func (m *Mailer) Message(subject, path string) (*mail.Msg, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading newsletter: %w", err)
	}
	if subject == "" {
		subject = DefaultSubject
	}

	msg := mail.NewMsg()
	if err := msg.From(m.sender); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.receiver); err != nil {
		return nil, fmt.Errorf("invalid receiver address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, string(body))
	return msg, nil
}

// Send emails the newsletter at path to the receiver.
func (m *Mailer) Send(ctx context.Context, subject, path string) error {
	msg, err := m.Message(subject, path)
	if err != nil {
		return err
	}
	if err := m.deliver(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	log.Printf("Email sent to %s", m.receiver)
	return nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.sender),
		mail.WithPassword(m.password),
		mail.WithTimeout(m.timeout),
	)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
