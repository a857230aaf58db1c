package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string

	// Port is the SMTP server port (587 for STARTTLS, 465 for implicit TLS).
	Port int

	// Username/Password enable SMTP AUTH when Username is non-empty.
	Username string
	Password string

	// Security is "starttls" (default), "ssl" or "none".
	Security string

	// Timeout bounds connecting and each SMTP command. Default 30s.
	Timeout time.Duration
}

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP validates cfg, fills in defaults and returns an SMTP transport.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("mailer: smtp host is required")
	}
	cfg.Security = strings.ToLower(strings.TrimSpace(cfg.Security))
	switch cfg.Security {
	case "":
		cfg.Security = "starttls"
		if cfg.Port == 465 {
			cfg.Security = "ssl"
		}
	case "starttls", "ssl", "none":
	default:
		return nil, fmt.Errorf("mailer: unknown smtp security %q (want starttls, ssl or none)", cfg.Security)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
		if cfg.Security == "ssl" {
			cfg.Port = 465
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTP{cfg: cfg}, nil
}

// options builds the go-mail client options for this configuration.
func (s *SMTP) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}

	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	switch s.cfg.Security {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	return opts
}

// Send delivers msg over a fresh SMTP connection.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := build(msg)
	if err != nil {
		return err
	}

	c, err := mail.NewClient(s.cfg.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("mailer: failed to create client: %w", err)
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mailer: failed to send: %w", err)
	}
	return nil
}

// Ping dials the SMTP server, completes the handshake and disconnects.
func (s *SMTP) Ping(ctx context.Context) error {
	c, err := mail.NewClient(s.cfg.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("mailer: failed to create client: %w", err)
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("mailer: smtp dial: %w", err)
	}
	return c.Close()
}
