// Package mailer delivers the relay's outgoing messages. It wraps
// github.com/wneessen/go-mail behind a small Transport interface so the
// relay does not care whether mail leaves over SMTP, through the local
// sendmail binary, or only into the log.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Message is one plain-text email. Headers beyond From, To, Reply-To and
// Subject (MIME-Version, Content-Type, Date, Message-ID) are set by the
// transport.
type Message struct {
	To       string // Recipient address
	From     string // Sender address
	FromName string // Sender display name (optional)
	ReplyTo  string // Reply-To address (optional)
	Subject  string
	Body     string // Plain text, UTF-8
}

// Transport sends a message or reports why it could not.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, msg Message) error

// Send calls f(ctx, msg).
func (f TransportFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Pinger is implemented by transports that can check their upstream is
// reachable without sending anything.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	// ErrNoRecipient is returned when Message.To is empty.
	ErrNoRecipient = errors.New("mailer: no recipient specified")
	// ErrEmptyBody is returned when Message.Body is empty.
	ErrEmptyBody = errors.New("mailer: message body is empty")
)

// build turns a Message into a go-mail message, validating every address.
func build(msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}
	if msg.Body == "" {
		return nil, ErrEmptyBody
	}

	m := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))

	if msg.FromName != "" {
		if err := m.FromFormat(msg.FromName, msg.From); err != nil {
			return nil, fmt.Errorf("mailer: invalid from address: %w", err)
		}
	} else if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("mailer: invalid from address: %w", err)
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mailer: invalid to address: %w", err)
	}

	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("mailer: invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
