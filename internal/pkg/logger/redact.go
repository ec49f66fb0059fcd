package logger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Fingerprint is a short stable digest of s. Log lines about the same
// customer share a fingerprint without carrying the identifier itself.
func Fingerprint(s string) string {
	return fmt.Sprintf("%06x", xxhash.Sum64String(s)&0xffffff)
}

// RedactEmail keeps the first character of the local part, the domain and
// a fingerprint of the full address:
//
//	"john.doe@example.com" -> "j***~<fp>@example.com"
//
// The fingerprint is case sensitive, like profile matching, so "A@x.com"
// and "a@x.com" stay distinguishable.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "***@***"
	}
	return local[:1] + "***~" + Fingerprint(email) + "@" + domain
}

// RedactID replaces a customer identifier with its fingerprint.
func RedactID(id string) string {
	if id == "" {
		return ""
	}
	return "id~" + Fingerprint(id)
}

// redactPIIValue masks a logged value by its key: email keys hold one
// address, customer keys hold an identifier, and any other value has
// embedded addresses masked.
func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "email"):
		if m := emailRegex.FindString(val); m != "" && m != val {
			return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
		}
		return RedactEmail(val)
	case strings.Contains(key, "customer"):
		return RedactID(val)
	default:
		return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	}
}
