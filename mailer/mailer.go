// Package mailer sends transactional email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

var (
	ErrTransport    = errors.New("email transport failure")
	ErrNoRecipients = errors.New("email has no recipients")
)

// Message is a single email. Text is required, HTML is optional.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message and returns the transport's message id
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTP sends mail through an authenticated SMTP relay
type SMTP struct {
	client *mail.Client
	from   string
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 587
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &SMTP{client: client, from: from}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	if msg.From == "" {
		msg.From = s.from
	}

	m, err := buildMsg(msg)
	if err != nil {
		return "", err
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return messageID(m), nil
}

func buildMsg(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	m := mail.NewMsg()

	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}

	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)

	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	return m, nil
}

func messageID(m *mail.Msg) string {
	ids := m.GetGenHeader(mail.HeaderMessageID)
	if len(ids) == 0 {
		return ""
	}

	return strings.Trim(ids[0], "<>")
}

// Log writes messages to the logger instead of sending them. It is used
// when no SMTP relay is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(_ context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}

	id := uuid.NewString() + "@housinglord.local"

	l.logger.Info("email not sent, no smtp relay configured",
		zap.String("message_id", id),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)

	return id, nil
}
