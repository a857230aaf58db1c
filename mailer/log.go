package mailer

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Log is a development transport: it renders the full message and writes it
// to the logger instead of delivering it.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Log transport. A nil logger discards everything.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Send renders msg as RFC 5322 text and logs it at info level.
func (l *Log) Send(ctx context.Context, msg Message) error {
	m, err := build(msg)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return fmt.Errorf("mailer: render message: %w", err)
	}
	l.logger.Info("mail not delivered (log transport)",
		zap.String("to", msg.To),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.String("raw", buf.String()),
	)
	return nil
}
