package relay

import (
	"fmt"
	"strings"
)

// DefaultSiteName tags outgoing subjects when no site name is configured.
const DefaultSiteName = "KsefInvoice"

const anonymous = "Anonim"

// form describes one accepted form type: the fields it must carry and how
// its message is written.
type form struct {
	required []string
	compose  func(site, email string, s *Submission) (subject, body string)
}

func formFor(t FormType) (form, bool) {
	switch t {
	case FormContact:
		return form{
			required: []string{"name", "subject", "message"},
			compose:  composeContact,
		}, true
	case FormBugReport:
		return form{
			required: []string{"os", "version", "summary", "steps"},
			compose:  composeBugReport,
		}, true
	}
	return form{}, false
}

// missing returns the required fields that are absent or blank.
func (f form) missing(s *Submission) []string {
	var out []string
	for _, name := range f.required {
		if blank(s.Get(name)) {
			out = append(out, name)
		}
	}
	return out
}

func composeContact(site, email string, s *Submission) (string, string) {
	name := cleanLine(s.Get("name"))
	subject := cleanLine(s.Get("subject"))
	message := cleanText(s.Get("message"))

	var b strings.Builder
	b.WriteString("Nowa wiadomość z formularza kontaktowego:\n\n")
	fmt.Fprintf(&b, "Od: %s (%s)\n", name, email)
	fmt.Fprintf(&b, "Temat: %s\n\n", subject)
	b.WriteString("Treść wiadomości:\n")
	b.WriteString(message)
	b.WriteString("\n")

	return fmt.Sprintf("[%s Kontakt] %s", site, subject), b.String()
}

func composeBugReport(site, email string, s *Submission) (string, string) {
	name := cleanLine(s.Get("name"))
	if name == "" {
		name = anonymous
	}
	osName := cleanLine(s.Get("os"))
	version := cleanLine(s.Get("version"))
	summary := cleanLine(s.Get("summary"))
	steps := cleanText(s.Get("steps"))
	logs := cleanText(s.Get("logs"))

	var b strings.Builder
	b.WriteString("Nowe zgłoszenie błędu:\n\n")
	fmt.Fprintf(&b, "Zgłaszający: %s (%s)\n", name, email)
	fmt.Fprintf(&b, "System: %s\n", osName)
	fmt.Fprintf(&b, "Wersja: %s\n", version)
	fmt.Fprintf(&b, "Temat: %s\n\n", summary)
	b.WriteString("Kroki do odtworzenia:\n")
	b.WriteString(steps)
	b.WriteString("\n\n")
	if logs != "" {
		b.WriteString("Logi / Błędy:\n")
		b.WriteString(logs)
		b.WriteString("\n")
	}

	return fmt.Sprintf("[%s Bug] %s", site, summary), b.String()
}
