// Package relay turns contact and bug-report form posts into plain-text
// emails. A Handler runs each post through a fixed sequence of checks
// (method, honeypot, time trap, anti-spam token, email address, form type,
// required fields), composes the message and hands it to a mail transport.
// Every outcome is answered with HTTP 200 and a {success, message} JSON body.
package relay

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/formmail/httputil"
	"github.com/dalemusser/formmail/mailer"
	"go.uber.org/zap"
)

// DefaultMinFillTime is how long a human needs at least to fill a form.
const DefaultMinFillTime = 3 * time.Second

// Recorder counts finished submissions. *metrics.Submissions satisfies it.
type Recorder interface {
	Observe(formType, outcome string)
}

// Config holds everything a Handler needs. Recipient, Sender, Tokens and
// Transport are required.
type Config struct {
	Recipient   string // fixed destination address
	Sender      string // From address
	SenderName  string // optional From display name
	SiteName    string // subject tag, DefaultSiteName when empty
	MinFillTime time.Duration

	Tokens    TokenVerifier
	Transport mailer.Transport

	Now     func() time.Time // defaults to time.Now
	Logger  *zap.Logger      // defaults to a no-op logger
	Metrics Recorder         // optional
}

// Handler is the form endpoint. It is safe for concurrent use.
type Handler struct {
	cfg    Config
	log    *zap.Logger
	stages []stage
}

// New validates cfg, applies defaults and returns a Handler.
func New(cfg Config) (*Handler, error) {
	var errs []error
	if cfg.Recipient == "" {
		errs = append(errs, errors.New("relay: recipient is required"))
	}
	if cfg.Sender == "" {
		errs = append(errs, errors.New("relay: sender is required"))
	}
	if cfg.Tokens == nil {
		errs = append(errs, errors.New("relay: token verifier is required"))
	}
	if cfg.Transport == nil {
		errs = append(errs, errors.New("relay: mail transport is required"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.SiteName == "" {
		cfg.SiteName = DefaultSiteName
	}
	if cfg.MinFillTime <= 0 {
		cfg.MinFillTime = DefaultMinFillTime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	h := &Handler{cfg: cfg, log: cfg.Logger.Named("relay")}
	h.stages = h.pipeline()
	return h, nil
}

func (h *Handler) now() time.Time { return h.cfg.Now() }

func postedType(sub *Submission) string {
	if sub == nil {
		return ""
	}
	return sub.RawType
}

// ServeHTTP runs the pipeline and writes its result.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := &state{r: r}
	res, outcome := h.run(st)

	formType := string(FormUnknown)
	if st.sub != nil {
		formType = string(st.sub.FormType)
	}
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.Observe(formType, outcome)
	}

	switch outcome {
	case OutcomeSent:
		h.log.Info("form relayed",
			zap.String("form_type", formType),
			zap.String("remote_ip", r.RemoteAddr))
	case OutcomeSendFailed:
		// logged by the send stage
	case OutcomeHoneypot:
		h.log.Info("honeypot triggered",
			zap.String("remote_ip", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()))
	default:
		h.log.Info("form rejected",
			zap.String("stage", outcome),
			zap.String("form_type", formType),
			zap.String("raw_form_type", postedType(st.sub)),
			zap.String("remote_ip", r.RemoteAddr))
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

// run executes stages in order until one produces a result.
func (h *Handler) run(st *state) (*Result, string) {
	for _, s := range h.stages {
		res := s.run(h, st)
		if res == nil {
			continue
		}
		if s.name != StageSend {
			return res, s.name
		}
		if res.Success {
			return res, OutcomeSent
		}
		return res, OutcomeSendFailed
	}
	// The send stage always answers; reaching here means the pipeline is
	// misconfigured.
	return fail(MsgSendFailed), OutcomeSendFailed
}
