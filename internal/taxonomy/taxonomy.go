// Package taxonomy derives partner classification from synced source data
// and staffing signals. The sync engine computes it inline; the
// reconciliation pass re-derives it to self-heal drift.
package taxonomy

import (
	"fmt"

	"github.com/sophiesociety/hub-sync/internal/models"
	"github.com/sophiesociety/hub-sync/internal/normalize"
)

// Partner taxonomy values.
const (
	TypeChurned     = "churned"
	TypeFullService = "full_service"
	TypeConsulting  = "consulting"
	TypeProspect    = "prospect"
)

// WeekEntry is one week of synced status history inside a partner's
// source_data blob.
type WeekEntry struct {
	WeekStart string
	Value     string
}

// WeeklyColumnSet is the typed form of the weekly section of a partner's
// source_data. The opaque JSON blob is parsed strictly into this shape at
// the boundary; business logic never touches raw maps.
type WeeklyColumnSet struct {
	Weeks []WeekEntry
}

// ParseWeeklyColumnSet converts the "weekly" section of a source_data
// blob. A missing section parses as empty; a malformed one is an error.
func ParseWeeklyColumnSet(sourceData models.JSONB) (*WeeklyColumnSet, error) {
	set := &WeeklyColumnSet{}
	if sourceData == nil {
		return set, nil
	}

	raw, ok := sourceData["weekly"]
	if !ok || raw == nil {
		return set, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("source_data.weekly is %T, expected array", raw)
	}

	for i, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("source_data.weekly[%d] is %T, expected object", i, item)
		}
		week, ok := entry["week"].(string)
		if !ok || week == "" {
			return nil, fmt.Errorf("source_data.weekly[%d] missing week", i)
		}
		value, _ := entry["value"].(string)
		set.Weeks = append(set.Weeks, WeekEntry{WeekStart: week, Value: value})
	}
	return set, nil
}

// DerivePartnerType classifies a partner from its source data and the
// number of active staff assigned to it.
func DerivePartnerType(sourceData models.JSONB, activeStaff int) (string, error) {
	weekly, err := ParseWeeklyColumnSet(sourceData)
	if err != nil {
		return "", err
	}

	status := ""
	if sourceData != nil {
		if s, ok := sourceData["status"].(string); ok {
			status = s
		}
	}

	switch {
	case normalize.PartnerStatus(status) == normalize.StatusChurned:
		return TypeChurned, nil
	case activeStaff > 0:
		return TypeFullService, nil
	case len(weekly.Weeks) > 0:
		return TypeConsulting, nil
	default:
		return TypeProspect, nil
	}
}
