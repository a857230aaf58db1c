package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/formmail/app"
	"github.com/dalemusser/formmail/config"
	"github.com/dalemusser/formmail/health"
	"github.com/dalemusser/formmail/mailer"
	"github.com/dalemusser/formmail/metrics"
	"github.com/dalemusser/formmail/relay"
	"github.com/dalemusser/formmail/router"
	"github.com/dalemusser/formmail/version"
	"go.uber.org/zap"
)

// APISubmitPath is always served in addition to the configured submit path.
const APISubmitPath = "/api/send-mail"

// Hooks wires formmail into app.Run.
var Hooks = app.Hooks[AppConfig, Backends]{
	Name:         "formmail",
	LoadConfig:   LoadConfig,
	Connect:      Connect,
	Startup:      Startup,
	BuildHandler: BuildHandler,
}

// LoadConfig reads core and app config from flags, env and config files.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	return loadConfig(logger, config.Options{})
}

func loadConfig(logger *zap.Logger, opts config.Options) (*config.CoreConfig, AppConfig, error) {
	opts.AppKeys = appKeys
	coreCfg, values, err := config.Load(logger, opts)
	if err != nil {
		return nil, AppConfig{}, err
	}
	appCfg, err := appConfigFrom(values)
	if err != nil {
		return nil, AppConfig{}, err
	}
	return coreCfg, appCfg, nil
}

// Connect builds the mail transport, token verifier and outcome counter.
func Connect(_ context.Context, _ *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (Backends, error) {
	transport, err := newTransport(appCfg, logger)
	if err != nil {
		return Backends{}, err
	}
	tokens, signer, err := newTokens(appCfg)
	if err != nil {
		return Backends{}, err
	}
	logger.Info("backends ready",
		zap.String("mail_transport", appCfg.MailTransport),
		zap.String("token_scheme", appCfg.TokenScheme))

	return Backends{
		Transport:   transport,
		Tokens:      tokens,
		Signer:      signer,
		Submissions: metrics.NewSubmissions(nil, logger),
	}, nil
}

// Startup probes the mail server once. A failure is only logged: the relay
// still starts and /ready reports the problem.
func Startup(ctx context.Context, _ *config.CoreConfig, _ AppConfig, b Backends, logger *zap.Logger) error {
	p, ok := b.Transport.(mailer.Pinger)
	if !ok {
		return nil
	}
	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		logger.Warn("mail server not reachable at startup", zap.Error(err))
		return nil
	}
	logger.Info("mail server reachable", zap.Duration("took", time.Since(start)))
	return nil
}

// BuildHandler mounts the relay, the token endpoint (jwt only) and the
// operational endpoints on the standard router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, b Backends, logger *zap.Logger) (http.Handler, error) {
	h, err := relay.New(relay.Config{
		Recipient:   appCfg.RecipientEmail,
		Sender:      appCfg.SenderEmail,
		SenderName:  appCfg.SenderName,
		SiteName:    appCfg.SiteName,
		MinFillTime: appCfg.MinFillTime,
		Tokens:      b.Tokens,
		Transport:   b.Transport,
		Logger:      logger,
		Metrics:     b.Submissions,
	})
	if err != nil {
		return nil, err
	}

	r := router.New(coreCfg, logger)

	// Every method reaches the relay so non-POST requests get its JSON answer.
	r.Handle(appCfg.SubmitPath, h)
	if appCfg.SubmitPath != APISubmitPath {
		r.Handle(APISubmitPath, h)
	}
	if b.Signer != nil {
		r.Method(http.MethodGet, "/form-token", b.Signer.IssueHandler(logger))
	}

	checks := map[string]health.Check{}
	if p, ok := b.Transport.(mailer.Pinger); ok {
		checks["mail"] = p.Ping
	}
	health.Mount(r, checks, logger)
	version.Mount(r)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r, nil
}
