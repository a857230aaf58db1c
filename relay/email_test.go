package relay

import (
	"strings"
	"testing"
)

func TestSanitizeEmail(t *testing.T) {
	tests := []struct{ in, want string }{
		{"jan@example.com", "jan@example.com"},
		{" jan@example.com \r\n", "jan@example.com"},
		{"Jan Kowalski <jan@example.com>", "JanKowalskijan@example.com"},
		{"zażółć@example.com", "za@example.com"},
		{"o'neil+tag@example.com", "o'neil+tag@example.com"},
		{"a\"b(c)d,e;f:g@example.com", "abcdefg@example.com"},
	}
	for _, tt := range tests {
		if got := sanitizeEmail(tt.in); got != tt.want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"jan@example.com", true},
		{"jan.kowalski+faktury@mail.example.pl", true},
		{"o'neil@example.co.uk", true},
		{"x@a-b.example", true},
		{"", false},
		{"jan", false},
		{"jan@", false},
		{"@example.com", false},
		{"jan@localhost", false},
		{"jan@example..com", false},
		{"jan@-example.com", false},
		{"jan@example.com-", false},
		{".jan@example.com", false},
		{"jan@exa_mple.com", false},
		{"a@b@example.com", false},
		{strings.Repeat("a", 65) + "@example.com", false},
		{"a@" + strings.Repeat("b", 250) + ".pl", false},
	}
	for _, tt := range tests {
		if got := validEmail(tt.in); got != tt.want {
			t.Errorf("validEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"1700000000", 1700000000},
		{"  42", 42},
		{"42abc", 42},
		{"+7", 7},
		{"-5", -5},
		{"abc", 0},
		{"-", 0},
		{"99999999999999999999", 0},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.in); got != tt.want {
			t.Errorf("parseTimestamp(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	if got := cleanText("  <a href=\"x\">Tom & 'Jerry'</a>\r\n"); got != "&lt;a href=&quot;x&quot;&gt;Tom &amp; &#039;Jerry&#039;&lt;/a&gt;" {
		t.Errorf("cleanText = %q", got)
	}
	if got := cleanText("line1\r\nline2\rline3"); got != "line1\nline2\nline3" {
		t.Errorf("cleanText line endings = %q", got)
	}
	if got := cleanLine("a\n\tb   c"); got != "a b c" {
		t.Errorf("cleanLine = %q", got)
	}
	if got := cleanText("bad\xffbyte"); got != "bad\uFFFDbyte" {
		t.Errorf("cleanText invalid utf8 = %q", got)
	}
}
