package relay

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// FormType identifies which site form produced a submission.
type FormType string

const (
	FormContact   FormType = "contact"
	FormBugReport FormType = "bug_report"
	FormUnknown   FormType = "unknown"
)

func parseFormType(s string) FormType {
	switch FormType(s) {
	case FormContact, FormBugReport:
		return FormType(s)
	}
	return FormUnknown
}

// Posted field names shared by both forms.
const (
	FieldHoneypot  = "website"
	FieldTimestamp = "timestamp"
	FieldToken     = "spam_token"
	FieldFormType  = "form_type"
	FieldEmail     = "email"
)

// Submission is one decoded form post. It lives for a single request.
type Submission struct {
	FormType  FormType
	RawType   string // form_type as posted, for logs
	Email     string // sanitized, not yet validated
	Timestamp int64  // unix seconds; 0 when absent or unparsable
	Honeypot  string
	Token     string
	Fields    url.Values
}

// Has reports whether the form posted the named field at all.
func (s *Submission) Has(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// Get returns the first posted value for name.
func (s *Submission) Get(name string) string {
	return s.Fields.Get(name)
}

const multipartMemory = 1 << 20

// readSubmission decodes the request body. Both urlencoded and multipart
// bodies are accepted; query string values are ignored. A body that fails to
// parse yields whatever values were decoded before the error, which the
// pipeline then rejects on its own terms.
func readSubmission(r *http.Request) (*Submission, error) {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = nil
	}
	fields := r.PostForm
	if fields == nil {
		fields = url.Values{}
	}

	rawType := fields.Get(FieldFormType)
	if _, ok := fields[FieldFormType]; !ok {
		rawType = string(FormUnknown)
	}

	return &Submission{
		FormType:  parseFormType(rawType),
		RawType:   rawType,
		Email:     sanitizeEmail(fields.Get(FieldEmail)),
		Timestamp: parseTimestamp(fields.Get(FieldTimestamp)),
		Honeypot:  fields.Get(FieldHoneypot),
		Token:     fields.Get(FieldToken),
		Fields:    fields,
	}, err
}

// parseTimestamp reads a leading signed decimal integer the way loosely typed
// form handlers do: "1700000000", " 42abc" and "+7" parse, anything without
// leading digits (or out of range) is 0.
func parseTimestamp(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
