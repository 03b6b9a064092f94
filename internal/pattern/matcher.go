// Package pattern matches column headers against registered structural
// column patterns, primarily weekly date-stamped status columns.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sophiesociety/hub-sync/internal/models"
)

// ErrDuplicatePriority marks two active patterns sharing a priority. This
// is a configuration error surfaced to the admin, never resolved silently.
type ErrDuplicatePriority struct {
	Priority int
	Names    []string
}

func (e *ErrDuplicatePriority) Error() string {
	return fmt.Sprintf("duplicate column pattern priority %d: %s", e.Priority, strings.Join(e.Names, ", "))
}

// WeeklyHeaderRegex is the default weekly-column header shape: an M/D/YY
// or M/D/YYYY date followed by a "Week" token, tolerant of surrounding
// whitespace and newlines, case-insensitive.
const WeeklyHeaderRegex = `^\s*\d{1,2}/\d{1,2}/\d{2,4}\s*\n?\s*[Ww]eek\b`

var weekDatePrefixRe = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{2,4})`)

type compiled struct {
	pattern models.ColumnPattern
	re      *regexp.Regexp
}

// Matcher resolves column headers to the highest-priority active pattern.
type Matcher struct {
	patterns []compiled
}

// NewMatcher compiles the active patterns, sorted by descending priority.
// Inactive patterns are ignored. A priority tie among active patterns is
// rejected as a configuration error.
func NewMatcher(patterns []models.ColumnPattern) (*Matcher, error) {
	byPriority := map[int][]string{}
	var active []compiled

	for _, p := range patterns {
		if !p.IsActive {
			continue
		}
		re, err := regexp.Compile("(?i)" + p.MatchRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid regex for pattern %q: %w", p.Name, err)
		}
		byPriority[p.Priority] = append(byPriority[p.Priority], p.Name)
		active = append(active, compiled{pattern: p, re: re})
	}

	for priority, names := range byPriority {
		if len(names) > 1 {
			sort.Strings(names)
			return nil, &ErrDuplicatePriority{Priority: priority, Names: names}
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].pattern.Priority > active[j].pattern.Priority
	})

	return &Matcher{patterns: active}, nil
}

// Match returns the highest-priority active pattern matching the header.
func (m *Matcher) Match(header string) (*models.ColumnPattern, bool) {
	for _, c := range m.patterns {
		if c.re.MatchString(header) {
			p := c.pattern
			return &p, true
		}
	}
	return nil, false
}

// WeekOf parses the M/D/YY[YY] date prefix of a weekly header into the
// week's date. Two-digit years are interpreted as 20YY.
func WeekOf(header string) (time.Time, bool) {
	matches := weekDatePrefixRe.FindStringSubmatch(header)
	if matches == nil {
		return time.Time{}, false
	}

	month := atoi(matches[1])
	day := atoi(matches[2])
	year := atoi(matches[3])
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
