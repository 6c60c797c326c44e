// Package hostname validates hostnames and derives the ancestor domains a
// resolver walks through.
package hostname

import (
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest hostname accepted by Validate, in characters.
const MaxLength = 128

// InvalidHostnameError reports a hostname rejected by Validate.
type InvalidHostnameError struct {
	Hostname string
	Reason   string
}

func (e *InvalidHostnameError) Error() string {
	return fmt.Sprintf("invalid hostname %q: %s", e.Hostname, e.Reason)
}

// Validate checks that h is non-empty, at most MaxLength characters and has
// no empty dot-separated label (leading, trailing or doubled dots).
// Length is counted in runes of the NFC form.
func Validate(h string) error {
	if h == "" {
		return &InvalidHostnameError{Hostname: h, Reason: "empty"}
	}
	if n := utf8.RuneCountInString(norm.NFC.String(h)); n > MaxLength {
		return &InvalidHostnameError{
			Hostname: h,
			Reason:   fmt.Sprintf("%d characters exceeds limit of %d", n, MaxLength),
		}
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" {
			return &InvalidHostnameError{Hostname: h, Reason: "empty label"}
		}
	}
	return nil
}

// Ancestors returns the candidate domains for h, most specific first: h
// itself, then each suffix left after dropping the leftmost label. The walk
// stops before a single label remains, so "a.b.com" yields
// ["a.b.com", "b.com"] and "com" yields nothing.
func Ancestors(h string) []string {
	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return nil
	}
	out := make([]string, 0, len(labels)-1)
	for len(labels) > 1 {
		out = append(out, strings.Join(labels, "."))
		labels = labels[1:]
	}
	return out
}

// Normalize turns user input into the form stored by hostcat: surrounding
// whitespace trimmed, port and a trailing dot removed, lowercased, and
// internationalized names converted to their ASCII form.
//
// Only interactive input is normalized; list files are stored verbatim apart
// from the trailing dot.
func Normalize(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", &InvalidHostnameError{Hostname: raw, Reason: "empty"}
	}

	if isASCII(host) {
		return strings.ToLower(host), nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", &InvalidHostnameError{Hostname: raw, Reason: fmt.Sprintf("idna: %v", err)}
	}
	return strings.ToLower(ascii), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
