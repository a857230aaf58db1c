package bootstrap

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dalemusser/formmail/config"
	"github.com/dalemusser/formmail/mailer"
	"github.com/dalemusser/formmail/relay"
)

// AppConfig holds the relay's own settings, loaded through config.AppKey.
type AppConfig struct {
	RecipientEmail string
	SenderEmail    string
	SenderName     string
	SiteName       string
	SubmitPath     string

	MinFillTime time.Duration
	TokenScheme string // "static" | "jwt"
	SpamToken   string // shared secret or signing key
	TokenTTL    time.Duration

	MailTransport string // "smtp" | "sendmail" | "log"
	SMTP          mailer.SMTPConfig
	SendmailPath  string
}

// appKeys are registered with config.Load; each is settable from
// config.yaml, FORMMAIL_<NAME> or --<name>.
var appKeys = []config.AppKey{
	{Name: "recipient_email", Default: "", Desc: "Address that receives every form message (required)"},
	{Name: "sender_email", Default: "", Desc: "From address of relayed messages (required)"},
	{Name: "sender_name", Default: "", Desc: "Display name for the From address"},
	{Name: "site_name", Default: relay.DefaultSiteName, Desc: "Site tag used in subjects"},
	{Name: "submit_path", Default: "/send_mail.php", Desc: "Path the forms POST to"},
	{Name: "min_fill_time", Default: "3s", Desc: "Minimum time between form render and submit"},
	{Name: "token_scheme", Default: "static", Desc: "Anti-spam token scheme: static or jwt"},
	{Name: "spam_token", Default: "", Desc: "Static token value or jwt signing key (required)"},
	{Name: "token_ttl", Default: "2h", Desc: "Lifetime of jwt form tokens"},
	{Name: "mail_transport", Default: "smtp", Desc: "Mail transport: smtp, sendmail or log"},
	{Name: "smtp_host", Default: "", Desc: "SMTP server host"},
	{Name: "smtp_port", Default: 587, Desc: "SMTP server port"},
	{Name: "smtp_username", Default: "", Desc: "SMTP AUTH username"},
	{Name: "smtp_password", Default: "", Desc: "SMTP AUTH password"},
	{Name: "smtp_security", Default: "starttls", Desc: "SMTP security: starttls, ssl or none"},
	{Name: "smtp_timeout", Default: "30s", Desc: "SMTP connect and command timeout"},
	{Name: "sendmail_path", Default: mailer.DefaultSendmailPath, Desc: "Path of the sendmail binary"},
}

// appConfigFrom maps loaded values onto AppConfig and validates them.
func appConfigFrom(v config.AppConfigValues) (AppConfig, error) {
	cfg := AppConfig{
		RecipientEmail: strings.TrimSpace(v.String("recipient_email")),
		SenderEmail:    strings.TrimSpace(v.String("sender_email")),
		SenderName:     v.String("sender_name"),
		SiteName:       v.String("site_name"),
		SubmitPath:     v.String("submit_path"),
		MinFillTime:    v.Duration("min_fill_time", relay.DefaultMinFillTime),
		TokenScheme:    strings.ToLower(strings.TrimSpace(v.String("token_scheme"))),
		SpamToken:      v.String("spam_token"),
		TokenTTL:       v.Duration("token_ttl", 2*time.Hour),
		MailTransport:  strings.ToLower(strings.TrimSpace(v.String("mail_transport"))),
		SMTP: mailer.SMTPConfig{
			Host:     v.String("smtp_host"),
			Port:     v.Int("smtp_port"),
			Username: v.String("smtp_username"),
			Password: v.String("smtp_password"),
			Security: v.String("smtp_security"),
			Timeout:  v.Duration("smtp_timeout", 30*time.Second),
		},
		SendmailPath: v.String("sendmail_path"),
	}
	return cfg, cfg.validate()
}

func (c AppConfig) validate() error {
	var missing, invalid []string

	checkAddr := func(key, val string) {
		if val == "" {
			missing = append(missing, key)
			return
		}
		if a, err := mail.ParseAddress(val); err != nil || a.Address != val {
			invalid = append(invalid, fmt.Sprintf("%s %q is not a bare email address", key, val))
		}
	}
	checkAddr("recipient_email", c.RecipientEmail)
	checkAddr("sender_email", c.SenderEmail)

	if !strings.HasPrefix(c.SubmitPath, "/") {
		invalid = append(invalid, fmt.Sprintf("submit_path %q must start with /", c.SubmitPath))
	}

	if c.SpamToken == "" {
		missing = append(missing, "spam_token")
	}
	switch c.TokenScheme {
	case "static":
	case "jwt":
		if c.SpamToken != "" && len(c.SpamToken) < 32 {
			invalid = append(invalid, "spam_token must be at least 32 bytes with token_scheme=jwt")
		}
	default:
		invalid = append(invalid, fmt.Sprintf("token_scheme %q (want static or jwt)", c.TokenScheme))
	}

	switch c.MailTransport {
	case "smtp":
		if c.SMTP.Host == "" {
			missing = append(missing, "smtp_host")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			invalid = append(invalid, fmt.Sprintf("smtp_port %d out of range", c.SMTP.Port))
		}
		if c.SMTP.Username != "" && c.SMTP.Password == "" {
			missing = append(missing, "smtp_password (smtp_username is set)")
		}
	case "sendmail", "log":
	default:
		invalid = append(invalid, fmt.Sprintf("mail_transport %q (want smtp, sendmail or log)", c.MailTransport))
	}

	return config.JoinProblems("app configuration errors", missing, invalid)
}
