// Package classify decides whether a directory email address represents a
// person or a shared/role inbox.
package classify

import (
	"regexp"
	"strings"

	"github.com/sophiesociety/hub-sync/internal/normalize"
)

type AccountType string

const (
	TypePerson        AccountType = "person"
	TypeSharedAccount AccountType = "shared_account"
)

// Classification reasons.
const (
	ReasonRoleAlias           = "role_alias"
	ReasonPersonPattern       = "person_pattern"
	ReasonSharedDefault       = "shared_until_proven_human"
	ReasonHumanNameEmailMatch = "human_name_email_match"
	ReasonSharedNameHint      = "shared_name_hint"
	ReasonExistingPreserved   = "existing_preserved"
)

type Classification struct {
	Type   AccountType
	Reason string
}

// Resolution is the outcome of combining the email-pattern judgment with
// directory context. Overridden is true when directory context changed the
// pattern-only classification.
type Resolution struct {
	Type       AccountType
	Reason     string
	Overridden bool
}

// DirectoryContext carries optional directory metadata about the account.
type DirectoryContext struct {
	FullName string
}

// Role/alias prefixes that mark a local part as a shared inbox regardless
// of anything else.
var rolePrefixes = []string{
	"partner", "pod", "team", "admin", "info", "support", "hello",
	"office", "billing", "sales", "ops", "brandmanager", "noreply",
	"no-reply", "accounts",
}

var (
	trailingDigitsRe = regexp.MustCompile(`\d+$`)
	personPatternRe  = regexp.MustCompile(`^[a-z]+[._-][a-z]+`)
	singleTokenRe    = regexp.MustCompile(`^[a-z]+$`)
)

// Org-shaped name keywords: a directory full name containing one of these
// is treated as a brand/team name, not an individual.
var orgKeywords = map[string]bool{
	"llc": true, "inc": true, "ltd": true, "co": true, "corp": true,
	"team": true, "support": true, "agency": true, "brands": true,
	"society": true, "group": true, "studio": true, "media": true,
	"shop": true, "store": true, "official": true,
}

// Classify judges an email address from its local part alone.
func Classify(email string) Classification {
	local := localPart(email)

	if isRoleAlias(local) {
		return Classification{Type: TypeSharedAccount, Reason: ReasonRoleAlias}
	}
	if personPatternRe.MatchString(local) {
		return Classification{Type: TypePerson, Reason: ReasonPersonPattern}
	}
	return Classification{Type: TypeSharedAccount, Reason: ReasonSharedDefault}
}

// Resolve combines the email-pattern judgment with directory context.
//
// Role aliases dominate unconditionally: a human full name on the
// directory record never reclassifies a role alias as a person.
func Resolve(email string, existing AccountType, dir DirectoryContext) Resolution {
	local := localPart(email)

	if isRoleAlias(local) {
		return Resolution{Type: TypeSharedAccount, Reason: ReasonRoleAlias, Overridden: false}
	}

	base := Classify(email)

	if base.Reason == ReasonSharedDefault && singleTokenRe.MatchString(local) {
		if dir.FullName != "" {
			if orgShaped(dir.FullName) {
				return Resolution{Type: TypeSharedAccount, Reason: ReasonSharedNameHint, Overridden: false}
			}
			if firstNameMatches(dir.FullName, local) {
				return Resolution{Type: TypePerson, Reason: ReasonHumanNameEmailMatch, Overridden: true}
			}
		}
		// No definitive signal from the address; a previously recorded
		// type stands.
		if existing != "" {
			return Resolution{Type: existing, Reason: ReasonExistingPreserved, Overridden: false}
		}
	}

	return Resolution{Type: base.Type, Reason: base.Reason, Overridden: false}
}

func localPart(email string) string {
	local := strings.ToLower(strings.TrimSpace(email))
	if at := strings.Index(local, "@"); at >= 0 {
		local = local[:at]
	}
	return local
}

func isRoleAlias(local string) bool {
	if local == "" {
		return false
	}
	if trailingDigitsRe.MatchString(local) {
		return true
	}
	for _, prefix := range rolePrefixes {
		if strings.HasPrefix(local, prefix) {
			return true
		}
	}
	return false
}

func orgShaped(fullName string) bool {
	words := strings.Fields(normalize.Name(fullName))
	if len(words) >= 4 {
		return true
	}
	for _, w := range words {
		if orgKeywords[strings.Trim(w, ".,")] {
			return true
		}
	}
	return false
}

// firstNameMatches reports whether the directory full name's first token
// matches the email local part, after diacritic/transliteration
// normalization on both sides.
func firstNameMatches(fullName, local string) bool {
	words := strings.Fields(normalize.Name(fullName))
	if len(words) == 0 {
		return false
	}
	target := normalize.StripDiacritics(local)
	for _, w := range words {
		if w == target {
			return true
		}
	}
	return false
}
