package relay

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// cleanText prepares multi-line user text for the message body: valid UTF-8,
// NFC-normalized, LF line endings, surrounding whitespace trimmed and HTML
// special characters escaped.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return specialChars.Replace(strings.TrimSpace(s))
}

// specialChars produces the same entities as PHP's htmlspecialchars with
// ENT_QUOTES, so relayed bodies match what recipients already receive.
var specialChars = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// cleanLine is cleanText for values that must stay on one line (names,
// subjects): control whitespace collapses to single spaces.
func cleanLine(s string) string {
	s = cleanText(s)
	return strings.Join(strings.Fields(s), " ")
}

// blank reports whether a posted value is empty once trimmed.
func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
