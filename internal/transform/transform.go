// Package transform applies the declared per-column value transforms to
// raw spreadsheet cells.
package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sophiesociety/hub-sync/internal/models"
)

// Warning is a non-fatal transform outcome, recorded against the row.
type Warning struct {
	Code    string
	Message string
}

const (
	WarnAmbiguousDate = "ambiguous_date"
)

// BoolSets is a configurable truthy/falsy token set for the boolean
// transform. Tokens are compared lowercased and trimmed.
type BoolSets struct {
	Truthy map[string]bool
	Falsy  map[string]bool
}

// DefaultBools covers the token spellings seen across partner sheets.
var DefaultBools = BoolSets{
	Truthy: map[string]bool{
		"true": true, "yes": true, "y": true, "1": true, "x": true, "active": true,
	},
	Falsy: map[string]bool{
		"false": true, "no": true, "n": true, "0": true, "inactive": true,
	},
}

// Apply runs the named transform over a raw cell value.
//
// A nil value with a non-nil warning means the input could not be
// interpreted safely (e.g. an ambiguous date); the caller records the
// warning and writes nothing.
func Apply(kind models.TransformKind, raw string) (any, *Warning, error) {
	switch kind {
	case models.TransformNone, "":
		return raw, nil, nil
	case models.TransformTrim:
		return strings.TrimSpace(raw), nil, nil
	case models.TransformLowercase:
		return strings.ToLower(strings.TrimSpace(raw)), nil, nil
	case models.TransformUppercase:
		return strings.ToUpper(strings.TrimSpace(raw)), nil, nil
	case models.TransformDate:
		return applyDate(raw)
	case models.TransformCurrency:
		return applyCurrency(raw)
	case models.TransformBoolean:
		return applyBool(raw, DefaultBools)
	case models.TransformNumber:
		return applyNumber(raw)
	case models.TransformJSON:
		return applyJSON(raw)
	default:
		return nil, nil, fmt.Errorf("unknown transform %q", kind)
	}
}

// applyDate parses a date to ISO form. Slash dates where day and month
// cannot be told apart are flagged, never guessed.
func applyDate(raw string) (any, *Warning, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil, nil
	}

	for _, layout := range []string{"2006-01-02", "Jan 2, 2006", "2 Jan 2006", "January 2, 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil, nil
		}
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("unparseable date %q", raw)
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
	if errA != nil || errB != nil || errY != nil {
		return nil, nil, fmt.Errorf("unparseable date %q", raw)
	}
	if year < 100 {
		year += 2000
	}

	month, day := a, b
	switch {
	case a > 12 && b <= 12:
		// Only the D/M reading is valid.
		month, day = b, a
	case a <= 12 && b <= 12 && a != b:
		return nil, &Warning{
			Code:    WarnAmbiguousDate,
			Message: fmt.Sprintf("date %q is ambiguous between M/D and D/M", raw),
		}, nil
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil, nil, fmt.Errorf("invalid date %q", raw)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), nil, nil
}

var currencyReplacer = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

// applyCurrency parses common currency formats ($1,234.56, (12.50) for
// negative) into a decimal.
func applyCurrency(raw string) (any, *Warning, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = currencyReplacer.Replace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, nil, fmt.Errorf("unparseable currency %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil, nil
}

func applyBool(raw string, sets BoolSets) (any, *Warning, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil, nil, nil
	}
	if sets.Truthy[s] {
		return true, nil, nil
	}
	if sets.Falsy[s] {
		return false, nil, nil
	}
	return nil, nil, fmt.Errorf("unrecognized boolean token %q", raw)
}

func applyNumber(raw string) (any, *Warning, error) {
	s := currencyReplacer.Replace(strings.TrimSpace(raw))
	if s == "" {
		return nil, nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("unparseable number %q: %w", raw, err)
	}
	return f, nil, nil
}

func applyJSON(raw string) (any, *Warning, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, nil, fmt.Errorf("unparseable json: %w", err)
	}
	return v, nil, nil
}
