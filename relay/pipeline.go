package relay

import (
	"net/http"
	"time"

	"github.com/dalemusser/formmail/mailer"
	"go.uber.org/zap"
)

// Stage names, in pipeline order. Rejections are logged and counted under
// these names.
const (
	StageMethod   = "method"
	StageHoneypot = "honeypot"
	StageTimeTrap = "time_trap"
	StageToken    = "token"
	StageEmail    = "email"
	StageFormType = "form_type"
	StageRequired = "required"
	StageCompose  = "compose"
	StageSend     = "send"
)

// state carries one request through the pipeline.
type state struct {
	r    *http.Request
	sub  *Submission
	form form
	msg  mailer.Message
}

// stage either lets the submission through (nil) or ends the request with
// a result.
type stage struct {
	name string
	run  func(h *Handler, st *state) *Result
}

func (h *Handler) pipeline() []stage {
	return []stage{
		{StageMethod, (*Handler).checkMethod},
		{StageHoneypot, (*Handler).checkHoneypot},
		{StageTimeTrap, (*Handler).checkTimeTrap},
		{StageToken, (*Handler).checkToken},
		{StageEmail, (*Handler).checkEmail},
		{StageFormType, (*Handler).checkFormType},
		{StageRequired, (*Handler).checkRequired},
		{StageCompose, (*Handler).compose},
		{StageSend, (*Handler).send},
	}
}

// checkMethod also decodes the body, so every later stage sees a Submission.
func (h *Handler) checkMethod(st *state) *Result {
	if st.r.Method != http.MethodPost {
		return fail(MsgPostOnly)
	}
	sub, err := readSubmission(st.r)
	if err != nil {
		h.log.Debug("form body decode failed", zap.Error(err))
	}
	st.sub = sub
	return nil
}

// checkHoneypot answers bots that fill the hidden website field with a
// success they cannot tell apart from the real thing.
// "0" counts as empty, as loosely typed form handlers treat it.
func (h *Handler) checkHoneypot(st *state) *Result {
	if v := st.sub.Honeypot; v != "" && v != "0" {
		return &Result{Success: true, Message: MsgHoneypot}
	}
	return nil
}

func (h *Handler) checkTimeTrap(st *state) *Result {
	ts := st.sub.Timestamp
	now := h.now().Unix()
	if ts == 0 || ts > now {
		return fail(MsgTooFast)
	}
	// Negative stamps are long past; skipping them keeps now-ts from overflowing.
	if ts > 0 && time.Duration(now-ts)*time.Second < h.cfg.MinFillTime {
		return fail(MsgTooFast)
	}
	return nil
}

func (h *Handler) checkToken(st *state) *Result {
	if !h.cfg.Tokens.Verify(st.r.Context(), st.sub.Token) {
		return fail(MsgBadToken)
	}
	return nil
}

func (h *Handler) checkEmail(st *state) *Result {
	if !validEmail(st.sub.Email) {
		return fail(MsgBadEmail)
	}
	return nil
}

func (h *Handler) checkFormType(st *state) *Result {
	f, ok := formFor(st.sub.FormType)
	if !ok {
		return fail(MsgUnknownForm)
	}
	st.form = f
	return nil
}

func (h *Handler) checkRequired(st *state) *Result {
	if missing := st.form.missing(st.sub); len(missing) > 0 {
		h.log.Debug("required fields missing", zap.Strings("fields", missing))
		return fail(MsgMissingFields)
	}
	return nil
}

func (h *Handler) compose(st *state) *Result {
	subject, body := st.form.compose(h.cfg.SiteName, st.sub.Email, st.sub)
	st.msg = mailer.Message{
		To:       h.cfg.Recipient,
		From:     h.cfg.Sender,
		FromName: h.cfg.SenderName,
		ReplyTo:  st.sub.Email,
		Subject:  subject,
		Body:     body,
	}
	return nil
}

func (h *Handler) send(st *state) *Result {
	if err := h.cfg.Transport.Send(st.r.Context(), st.msg); err != nil {
		h.log.Error("mail send failed",
			zap.String("form_type", string(st.sub.FormType)),
			zap.String("remote_ip", st.r.RemoteAddr),
			zap.Error(err),
		)
		return fail(MsgSendFailed)
	}
	return &Result{Success: true, Message: MsgSent}
}
