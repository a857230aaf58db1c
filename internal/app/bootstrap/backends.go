package bootstrap

import (
	"fmt"

	"github.com/dalemusser/formmail/mailer"
	"github.com/dalemusser/formmail/metrics"
	"github.com/dalemusser/formmail/relay"
	"go.uber.org/zap"
)

// Backends are the long-lived collaborators the handler is built from.
type Backends struct {
	Transport   mailer.Transport
	Tokens      relay.TokenVerifier
	Signer      *relay.SignedToken // nil unless token_scheme is jwt
	Submissions *metrics.Submissions
}

func newTransport(cfg AppConfig, logger *zap.Logger) (mailer.Transport, error) {
	switch cfg.MailTransport {
	case "smtp":
		return mailer.NewSMTP(cfg.SMTP)
	case "sendmail":
		return mailer.NewSendmail(cfg.SendmailPath)
	case "log":
		return mailer.NewLog(logger.Named("mail")), nil
	}
	return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
}

func newTokens(cfg AppConfig) (relay.TokenVerifier, *relay.SignedToken, error) {
	if cfg.TokenScheme == "jwt" {
		signer, err := relay.NewSignedToken(cfg.SpamToken, cfg.TokenTTL)
		if err != nil {
			return nil, nil, err
		}
		return signer, signer, nil
	}
	return relay.NewStaticToken(cfg.SpamToken), nil, nil
}
