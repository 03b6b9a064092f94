// Package normalize provides pure canonicalization helpers for free-text
// marketplace names, lifecycle statuses, and human names.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// marketplaceAliases maps lowercased free-text marketplace spellings to
// canonical marketplace codes.
var marketplaceAliases = map[string]string{
	"us":            "US",
	"usa":           "US",
	"united states": "US",
	"amazon.com":    "US",
	"amazon us":     "US",
	"ca":            "CA",
	"canada":        "CA",
	"amazon.ca":     "CA",
	"mx":            "MX",
	"mexico":        "MX",
	"amazon.com.mx": "MX",
	"uk":            "UK",
	"united kingdom": "UK",
	"amazon.co.uk":  "UK",
	"de":            "DE",
	"germany":       "DE",
	"amazon.de":     "DE",
	"fr":            "FR",
	"france":        "FR",
	"amazon.fr":     "FR",
	"it":            "IT",
	"italy":         "IT",
	"amazon.it":     "IT",
	"es":            "ES",
	"spain":         "ES",
	"amazon.es":     "ES",
	"jp":            "JP",
	"japan":         "JP",
	"amazon.co.jp":  "JP",
	"au":            "AU",
	"australia":     "AU",
	"amazon.com.au": "AU",
}

// Marketplace canonicalizes a free-text marketplace name to a two-letter
// code. Unknown inputs are returned trimmed and uppercased so they stay
// visible rather than being silently dropped.
func Marketplace(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if code, ok := marketplaceAliases[s]; ok {
		return code
	}
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Canonical lifecycle status buckets shared by partner and staff records.
const (
	StatusActive      = "active"
	StatusOnboarding  = "onboarding"
	StatusOffboarding = "offboarding"
	StatusChurned     = "churned"
	StatusPaused      = "paused"
	StatusUnknown     = "unknown"
)

var statusBuckets = []struct {
	bucket   string
	keywords []string
}{
	{StatusOnboarding, []string{"onboard", "ramp", "setup", "new"}},
	{StatusOffboarding, []string{"offboard", "winding", "exit", "notice"}},
	{StatusChurned, []string{"churn", "cancel", "terminated", "former", "ended", "inactive"}},
	{StatusPaused, []string{"pause", "hold", "suspend"}},
	{StatusActive, []string{"active", "live", "current", "ongoing"}},
}

// PartnerStatus buckets a free-text partner lifecycle string into a
// canonical status code.
func PartnerStatus(raw string) string {
	return bucketStatus(raw)
}

// StaffStatus buckets a free-text staff lifecycle string into a canonical
// status code.
func StaffStatus(raw string) string {
	return bucketStatus(raw)
}

func bucketStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusUnknown
	}
	for _, b := range statusBuckets {
		for _, kw := range b.keywords {
			if strings.Contains(s, kw) {
				return b.bucket
			}
		}
	}
	return StatusUnknown
}

var (
	middleInitialRe = regexp.MustCompile(`\b[a-z]\.?\s`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// Known name suffixes to strip during normalization.
var nameSuffixes = []string{"jr", "sr", "ii", "iii", "iv", "phd", "md", "cpa"}

// Name normalizes a human full name for comparison:
// lowercase, strip diacritics, strip suffixes and middle initials,
// collapse whitespace, and flip "Last, First" to "first last".
func Name(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return s
	}

	s = StripDiacritics(s)

	for _, suffix := range nameSuffixes {
		s = strings.TrimSuffix(s, " "+suffix)
		s = strings.TrimSuffix(s, ","+suffix)
	}

	s = middleInitialRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")

	if parts := strings.SplitN(s, ",", 2); len(parts) == 2 {
		first := strings.TrimSpace(parts[1])
		last := strings.TrimSpace(parts[0])
		if first != "" && last != "" {
			s = first + " " + last
		}
	}

	return strings.TrimSpace(s)
}

// StripDiacritics removes diacritical marks from a string by decomposing
// into NFD form and dropping combining marks.
func StripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var result strings.Builder
	result.Grow(len(decomposed))

	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}
