package mailer

import (
	"context"
	"fmt"
	"os"
)

// DefaultSendmailPath is where most hosts install the sendmail-compatible binary.
const DefaultSendmailPath = "/usr/sbin/sendmail"

// Sendmail pipes messages into the host's sendmail binary, the same local
// mail transport a shared web host uses for PHP's mail().
type Sendmail struct {
	path string
}

// NewSendmail returns a Sendmail transport, checking that path exists.
func NewSendmail(path string) (*Sendmail, error) {
	if path == "" {
		path = DefaultSendmailPath
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("mailer: sendmail binary: %w", err)
	}
	return &Sendmail{path: path}, nil
}

// Send writes msg to sendmail's stdin.
func (s *Sendmail) Send(ctx context.Context, msg Message) error {
	m, err := build(msg)
	if err != nil {
		return err
	}
	// -oi: a line with a single dot does not end the message; -t: take recipients from headers.
	if err := m.WriteToSendmailWithContext(ctx, s.path, "-oi", "-t"); err != nil {
		return fmt.Errorf("mailer: sendmail: %w", err)
	}
	return nil
}
