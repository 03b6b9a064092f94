package pattern

import (
	"errors"
	"testing"

	"github.com/sophiesociety/hub-sync/internal/models"
)

func weeklyPattern(id string, priority int) models.ColumnPattern {
	return models.ColumnPattern{
		ID:          id,
		Name:        "weekly-" + id,
		Category:    models.CategoryWeekly,
		MatchRegex:  WeeklyHeaderRegex,
		TargetTable: "weekly_status",
		Priority:    priority,
		IsActive:    true,
	}
}

func TestMatch_WeeklyHeaders(t *testing.T) {
	m, err := NewMatcher([]models.ColumnPattern{weeklyPattern("p1", 10)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tests := []struct {
		name    string
		header  string
		matches bool
	}{
		{"newline separated", "1/6/26\nWeek 2", true},
		{"single line", "1/6/26 Week 2", true},
		{"four digit year", "12/30/2025  week 14", true},
		{"leading whitespace", "  3/2/26\nWeek 9", true},
		{"notes column", "1/6/26 Notes", false},
		{"plain header", "Brand Name", false},
		{"date only", "1/6/26", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.Match(tt.header)
			if ok != tt.matches {
				t.Errorf("Match(%q) = %v, want %v", tt.header, ok, tt.matches)
			}
		})
	}
}

func TestMatch_HighestPriorityWins(t *testing.T) {
	low := weeklyPattern("low", 1)
	high := weeklyPattern("high", 5)
	high.TargetTable = "weekly_status_v2"

	m, err := NewMatcher([]models.ColumnPattern{low, high})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	p, ok := m.Match("1/6/26\nWeek 2")
	if !ok {
		t.Fatal("expected a match")
	}
	if p.ID != "high" {
		t.Errorf("expected highest-priority pattern, got %s", p.ID)
	}
}

func TestNewMatcher_DuplicatePriorityRejected(t *testing.T) {
	_, err := NewMatcher([]models.ColumnPattern{weeklyPattern("a", 3), weeklyPattern("b", 3)})
	if err == nil {
		t.Fatal("expected duplicate priority error, got nil")
	}
	var dup *ErrDuplicatePriority
	if !errors.As(err, &dup) {
		t.Fatalf("expected ErrDuplicatePriority, got %v", err)
	}
	if dup.Priority != 3 {
		t.Errorf("expected priority 3 in error, got %d", dup.Priority)
	}
}

func TestNewMatcher_InactiveDuplicateIgnored(t *testing.T) {
	inactive := weeklyPattern("b", 3)
	inactive.IsActive = false

	if _, err := NewMatcher([]models.ColumnPattern{weeklyPattern("a", 3), inactive}); err != nil {
		t.Fatalf("inactive pattern should not count toward priority ties, got %v", err)
	}
}

func TestWeekOf(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"1/6/26\nWeek 2", "2026-01-06", true},
		{"12/30/2025 Week 14", "2025-12-30", true},
		{"Brand Name", "", false},
		{"13/40/26 Week 1", "", false},
	}

	for _, tt := range tests {
		got, ok := WeekOf(tt.header)
		if ok != tt.ok {
			t.Errorf("WeekOf(%q) ok = %v, want %v", tt.header, ok, tt.ok)
			continue
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Errorf("WeekOf(%q) = %s, want %s", tt.header, got.Format("2006-01-02"), tt.want)
		}
	}
}
