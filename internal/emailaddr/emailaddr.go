// Package emailaddr validates email address syntax for list ingestion and
// configuration checks. Validation is purely lexical: no DNS or SMTP probing.
package emailaddr

import "strings"

// localSpecials are the non-alphanumeric characters permitted in the local
// part, per a conservative subset of RFC 5322 atext plus the dot.
const localSpecials = "!#$%&'*+-/=?^_`{|}~."

// Valid reports whether s is a syntactically acceptable email address.
// The grammar is deliberately conservative: ASCII local part, dot-separated
// domain labels of 1-63 characters (alphanumeric with interior hyphens),
// no whitespace, no consecutive dots, no leading or trailing dot.
func Valid(s string) bool {
	if s == "" || len(s) > 254 {
		return false
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}

	at := strings.LastIndex(s, "@")
	if at < 1 || at == len(s)-1 {
		return false
	}

	local, domain := s[:at], s[at+1:]
	if len(local) > 64 {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return false
	}
	for _, r := range local {
		if !isLocalChar(r) {
			return false
		}
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func isLocalChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(localSpecials, r)
}

// validLabel checks a single domain label: 1-63 chars, alphanumeric with
// interior hyphens only.
func validLabel(label string) bool {
	if len(label) < 1 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}
