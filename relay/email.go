package relay

import (
	"net/mail"
	"strings"
)

const (
	maxEmailLength = 254
	maxLocalLength = 64
)

// sanitizeEmail drops every character that cannot appear in an address:
// anything other than ASCII letters, digits and !#$%&'*+-=?^_`{|}~@.[]
// Whitespace and CR/LF never survive, so the result is safe for a header.
func sanitizeEmail(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("!#$%&'*+-=?^_`{|}~@.[]", r):
			return r
		}
		return -1
	}, s)
}

// validEmail reports whether addr is a single bare address with a non-empty
// local part and a dotted host name as domain.
func validEmail(addr string) bool {
	if addr == "" || len(addr) > maxEmailLength {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Name != "" || parsed.Address != addr {
		return false
	}

	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at > maxLocalLength {
		return false
	}
	local := addr[:at]
	if local[0] == '.' || local[len(local)-1] == '.' || strings.Contains(local, "..") {
		return false
	}
	return validDomain(addr[at+1:])
}

func validDomain(domain string) bool {
	if !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') {
				return false
			}
		}
	}
	return true
}
