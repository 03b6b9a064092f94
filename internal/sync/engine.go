// Package sync implements the data-enrichment sync engine: it loads a
// tab's mapping configuration, fetches live rows from the external
// source, transforms and diffs each row against the existing entity
// record, applies authority rules to decide per-field overwrite, and
// persists create/update/skip decisions plus a per-run audit trail.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sophiesociety/hub-sync/internal/classify"
	"github.com/sophiesociety/hub-sync/internal/connector"
	"github.com/sophiesociety/hub-sync/internal/models"
	"github.com/sophiesociety/hub-sync/internal/pattern"
	"github.com/sophiesociety/hub-sync/internal/repository"
	"github.com/sophiesociety/hub-sync/internal/transform"
)

// ConfigLoader supplies a tab's mapping configuration.
type ConfigLoader interface {
	LoadConfig(ctx context.Context, tabMappingID string) (*repository.SyncConfig, error)
}

// RunStore manages SyncRun rows; CreateActive is the run lock.
type RunStore interface {
	CreateActive(ctx context.Context, tabMappingID, triggeredBy string, dryRun bool) (*models.SyncRun, error)
	Finalize(ctx context.Context, runID string, status models.SyncRunStatus, stats repository.RunStats, runErrors []map[string]interface{}, lastError *string) error
}

// EntityStore reads and writes entity rows.
type EntityStore interface {
	FindByKey(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error)
	Create(ctx context.Context, entity models.EntityType, fields map[string]interface{}) (string, error)
	UpdateFields(ctx context.Context, entity models.EntityType, id string, fields map[string]interface{}) error
}

// WeeklyStore upserts week-keyed status history entries into the target
// table named by the matched column pattern.
type WeeklyStore interface {
	Upsert(ctx context.Context, targetTable string, entry models.WeeklyStatus) error
}

// LineageRecorder appends field lineage entries.
type LineageRecorder interface {
	Record(ctx context.Context, entries []models.FieldLineage) error
}

// ConnectorResolver picks the connector for a source type.
type ConnectorResolver interface {
	Resolve(sourceType models.DataSourceType) (connector.Connector, error)
}

// CredentialOpener decrypts a stored connector credential.
type CredentialOpener interface {
	DecryptString(token string) (string, error)
}

// Auditor records run-level audit entries; implementations never fail the
// caller.
type Auditor interface {
	SyncRun(ctx context.Context, run *models.SyncRun, stats repository.RunStats)
}

// Deps wires the engine's collaborators. Secrets and Audit are optional.
type Deps struct {
	Configs    ConfigLoader
	Runs       RunStore
	Entities   EntityStore
	Weekly     WeeklyStore
	Lineage    LineageRecorder
	Connectors ConnectorResolver
	Secrets    CredentialOpener
	Audit      Auditor
	Log        *logrus.Logger
	Now        func() time.Time
}

// Engine orchestrates one tab sync per call. Rows within a run are
// processed sequentially; authority resolution must observe a consistent
// prior state. Runs across different tabs may execute in parallel, each
// guarded by its own run lock.
type Engine struct {
	deps Deps
}

func New(deps Deps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logrus.New()
	}
	return &Engine{deps: deps}
}

// Options controls one SyncTab invocation.
type Options struct {
	DryRun bool
	// ForceOverwrite is the admin escape hatch: write every mapped field
	// regardless of authority.
	ForceOverwrite bool
	RowLimit       int
	TriggeredBy    string
}

type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeSkip   ChangeType = "skip"
)

// Skip reasons.
const (
	SkipMissingKey = "missing key"
	SkipNoChanges  = "no changes"
)

// EntityChange is one proposed or applied row mutation.
type EntityChange struct {
	Entity     models.EntityType      `json:"entity"`
	KeyField   string                 `json:"key_field"`
	KeyValue   string                 `json:"key_value"`
	Type       ChangeType             `json:"type"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Existing   map[string]interface{} `json:"existing,omitempty"`
	SkipReason string                 `json:"skip_reason,omitempty"`
}

// RowError is a non-fatal per-row problem.
type RowError struct {
	Row      int    `json:"row"`
	Severity string `json:"severity"` // warning | error
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Result summarizes one run.
type Result struct {
	RunID         string
	Status        models.SyncRunStatus
	Stats         repository.RunStats
	Changes       []EntityChange
	RowErrors     []RowError
	WeeklyUpserts int
	DurationMs    int64
}

// SyncTab runs one sync for a tab mapping.
//
// Fatal conditions (lock contention, bad mapping config, fetch failure)
// abort the whole run; the error is returned and, when a run row exists,
// it is finalized as failed. Row-level problems never fail the run.
func (e *Engine) SyncTab(ctx context.Context, tabMappingID string, opts Options) (*Result, error) {
	started := e.deps.Now()

	run, err := e.deps.Runs.CreateActive(ctx, tabMappingID, opts.TriggeredBy, opts.DryRun)
	if err != nil {
		return nil, err
	}

	log := e.deps.Log.WithFields(logrus.Fields{
		"sync_run_id": run.ID,
		"tab_mapping": tabMappingID,
		"dry_run":     opts.DryRun,
	})
	log.Info("sync run started")

	cfg, err := e.deps.Configs.LoadConfig(ctx, tabMappingID)
	if err != nil {
		return nil, e.abort(ctx, run, fmt.Errorf("config load failed: %w", err))
	}

	if cfg.Key.TargetField == nil || *cfg.Key.TargetField == "" {
		return nil, e.abort(ctx, run, fmt.Errorf("config load failed: %w", repository.ErrNoKeyColumn))
	}
	keyField := *cfg.Key.TargetField

	matcher, err := pattern.NewMatcher(cfg.Patterns)
	if err != nil {
		return nil, e.abort(ctx, run, fmt.Errorf("config load failed: %w", err))
	}

	rows, err := e.fetch(ctx, cfg, opts)
	if err != nil {
		return nil, e.abort(ctx, run, fmt.Errorf("fetch failed: %w", err))
	}

	weeklyCols := detectWeeklyColumns(rows.Headers, matcher)

	result := &Result{RunID: run.ID, Status: models.RunStatusCompleted}
	for i, row := range rows.Rows {
		e.processRow(ctx, run, cfg, keyField, weeklyCols, i, row, opts, result)
	}

	result.DurationMs = e.deps.Now().Sub(started).Milliseconds()

	if err := e.finalize(ctx, run, result); err != nil {
		log.WithError(err).Error("failed to finalize sync run")
		return result, err
	}

	if e.deps.Audit != nil {
		e.deps.Audit.SyncRun(ctx, run, result.Stats)
	}

	log.WithFields(logrus.Fields{
		"processed": result.Stats.Processed,
		"created":   result.Stats.Created,
		"updated":   result.Stats.Updated,
		"skipped":   result.Stats.Skipped,
	}).Info("sync run completed")

	return result, nil
}

// fetch resolves the connector and credential and reads the tab's rows.
// Failures here are systemic, never attributed to individual rows.
func (e *Engine) fetch(ctx context.Context, cfg *repository.SyncConfig, opts Options) (*connector.RowSet, error) {
	conn, err := e.deps.Connectors.Resolve(cfg.Source.Type)
	if err != nil {
		return nil, err
	}

	credential := ""
	if cfg.Source.Credential != nil && *cfg.Source.Credential != "" {
		if e.deps.Secrets == nil {
			return nil, fmt.Errorf("source has a credential but no cipher is configured")
		}
		credential, err = e.deps.Secrets.DecryptString(*cfg.Source.Credential)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt source credential: %w", err)
		}
	}

	location := ""
	if cfg.Source.Config != nil {
		if v, ok := cfg.Source.Config["location"].(string); ok {
			location = v
		}
	}
	if location == "" {
		return nil, fmt.Errorf("data source %q has no location configured", cfg.Source.Name)
	}

	return conn.FetchRows(ctx, credential, connector.SourceRef{
		Location:       location,
		TabName:        cfg.Tab.TabName,
		HeaderRowIndex: cfg.Tab.HeaderRowIndex,
	}, connector.FetchOptions{RowLimit: opts.RowLimit})
}

type weeklyColumn struct {
	index int
	week  time.Time
	table string
}

func detectWeeklyColumns(headers []string, matcher *pattern.Matcher) []weeklyColumn {
	var cols []weeklyColumn
	for i, header := range headers {
		p, ok := matcher.Match(header)
		if !ok || p.Category != models.CategoryWeekly {
			continue
		}
		week, ok := pattern.WeekOf(header)
		if !ok {
			continue
		}
		cols = append(cols, weeklyColumn{index: i, week: week, table: p.TargetTable})
	}
	return cols
}

func (e *Engine) processRow(ctx context.Context, run *models.SyncRun, cfg *repository.SyncConfig, keyField string, weeklyCols []weeklyColumn, rowIndex int, row []string, opts Options, result *Result) {
	result.Stats.Processed++
	entity := cfg.Tab.PrimaryEntity

	keyValue := ""
	if cfg.Key.SourceIndex < len(row) {
		keyValue = strings.TrimSpace(row[cfg.Key.SourceIndex])
	}
	if keyValue == "" {
		result.Stats.Skipped++
		result.Changes = append(result.Changes, EntityChange{
			Entity: entity, KeyField: keyField, Type: ChangeSkip, SkipReason: SkipMissingKey,
		})
		return
	}

	existing, found, err := e.deps.Entities.FindByKey(ctx, entity, keyField, keyValue)
	if err != nil {
		e.rowError(result, rowIndex, "error", "lookup_failed", err.Error())
		result.Stats.Failed++
		return
	}

	fields, rowFailed := e.mapColumns(cfg, row, existing, rowIndex, opts, result)
	e.deriveFields(entity, existing, fields)

	change := EntityChange{
		Entity:   entity,
		KeyField: keyField,
		KeyValue: keyValue,
		Existing: existing,
		Fields:   fields,
	}

	switch {
	case !found:
		if _, ok := fields[keyField]; !ok {
			fields[keyField] = keyValue
		}
		change.Type = ChangeCreate
	case len(fields) == 0:
		change.Type = ChangeSkip
		change.SkipReason = SkipNoChanges
	default:
		change.Type = ChangeUpdate
	}
	result.Changes = append(result.Changes, change)

	if opts.DryRun {
		e.count(result, change, rowFailed)
		return
	}

	entityID := ""
	if found {
		entityID, _ = existing["id"].(string)
	}

	switch change.Type {
	case ChangeCreate:
		id, err := e.deps.Entities.Create(ctx, entity, fields)
		if err != nil {
			e.rowError(result, rowIndex, "error", "create_failed", err.Error())
			result.Stats.Failed++
			return
		}
		entityID = id
		e.recordLineage(ctx, run, cfg, entity, entityID, fields, nil)
	case ChangeUpdate:
		if err := e.deps.Entities.UpdateFields(ctx, entity, entityID, fields); err != nil {
			e.rowError(result, rowIndex, "error", "update_failed", err.Error())
			result.Stats.Failed++
			return
		}
		e.recordLineage(ctx, run, cfg, entity, entityID, fields, existing)
	}

	// Weekly-pattern columns never land on the entity row; each produces
	// a week-keyed history upsert.
	if entityID != "" {
		for _, wc := range weeklyCols {
			if wc.index >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[wc.index])
			if value == "" {
				continue
			}
			err := e.deps.Weekly.Upsert(ctx, wc.table, models.WeeklyStatus{
				EntityType: entity,
				EntityID:   entityID,
				WeekStart:  wc.week,
				Value:      value,
				SyncRunID:  run.ID,
			})
			if err != nil {
				e.rowError(result, rowIndex, "error", "weekly_upsert_failed", err.Error())
				continue
			}
			result.WeeklyUpserts++
		}
	}

	e.count(result, change, rowFailed)
}

// mapColumns transforms every mapped column and applies authority
// resolution: reference data fills gaps, source-of-truth data always
// wins, nothing overwrites silently except source-of-truth.
func (e *Engine) mapColumns(cfg *repository.SyncConfig, row []string, existing map[string]interface{}, rowIndex int, opts Options, result *Result) (map[string]interface{}, bool) {
	fields := make(map[string]interface{})
	rowFailed := false

	for _, col := range cfg.Columns {
		switch col.Category {
		case models.CategorySkip, models.CategoryWeekly, models.CategoryComputed:
			continue
		}
		// Derived fields are computed, not sourced.
		if col.Authority == models.AuthorityDerived {
			continue
		}
		if col.TargetField == nil || *col.TargetField == "" {
			continue
		}
		if col.SourceIndex >= len(row) {
			continue
		}

		value, warn, err := transform.Apply(col.Transform, row[col.SourceIndex])
		if err != nil {
			e.rowError(result, rowIndex, "error", "transform_failed",
				fmt.Sprintf("column %q: %v", col.SourceColumn, err))
			rowFailed = true
			continue
		}
		if warn != nil {
			e.rowError(result, rowIndex, "warning", warn.Code,
				fmt.Sprintf("column %q: %s", col.SourceColumn, warn.Message))
		}
		if value == nil {
			continue
		}

		target := *col.TargetField
		existingValue, hasExisting := currentValue(existing, target)

		if hasExisting && !opts.ForceOverwrite && col.Authority != models.AuthoritySourceOfTruth {
			// Reference authority never overwrites a non-null value.
			continue
		}
		if hasExisting && equalValues(existingValue, value) {
			continue
		}
		if !hasExisting && isEmptyValue(value) {
			continue
		}

		fields[target] = value
	}

	return fields, rowFailed
}

// deriveFields computes classification fields excluded from the
// per-column authority path.
func (e *Engine) deriveFields(entity models.EntityType, existing map[string]interface{}, fields map[string]interface{}) {
	if entity != models.EntityStaff {
		return
	}

	email := stringField(fields, "email")
	if email == "" {
		email = stringField(existing, "email")
	}
	if email == "" {
		return
	}

	existingType, _ := currentValue(existing, "google_account_type")
	fullName := stringField(fields, "full_name")
	if fullName == "" {
		fullName = stringField(existing, "full_name")
	}

	var prior classify.AccountType
	if s, ok := existingType.(string); ok {
		prior = classify.AccountType(s)
	}
	resolved := classify.Resolve(email, prior, classify.DirectoryContext{FullName: fullName})

	if existingType == nil || !equalValues(existingType, string(resolved.Type)) {
		fields["google_account_type"] = string(resolved.Type)
	}
}

func (e *Engine) count(result *Result, change EntityChange, rowFailed bool) {
	switch change.Type {
	case ChangeCreate:
		result.Stats.Created++
	case ChangeUpdate:
		result.Stats.Updated++
	case ChangeSkip:
		result.Stats.Skipped++
	}
	if rowFailed {
		result.Stats.Failed++
	}
}

func (e *Engine) recordLineage(ctx context.Context, run *models.SyncRun, cfg *repository.SyncConfig, entity models.EntityType, entityID string, fields map[string]interface{}, existing map[string]interface{}) {
	entries := make([]models.FieldLineage, 0, len(fields))
	now := e.deps.Now()
	sourceRef := fmt.Sprintf("%s/%s", cfg.Source.Name, cfg.Tab.TabName)

	for name, value := range fields {
		var previous *string
		if existing != nil {
			if prev, ok := currentValue(existing, name); ok {
				s := fmt.Sprintf("%v", prev)
				previous = &s
			}
		}
		newValue := fmt.Sprintf("%v", value)
		entries = append(entries, models.FieldLineage{
			EntityType:    entity,
			EntityID:      entityID,
			FieldName:     name,
			SourceType:    string(cfg.Source.Type),
			SourceRef:     sourceRef,
			PreviousValue: previous,
			NewValue:      &newValue,
			SyncRunID:     run.ID,
			ChangedBy:     run.TriggeredBy,
			ChangedAt:     now,
		})
	}

	if err := e.deps.Lineage.Record(ctx, entries); err != nil {
		e.deps.Log.WithError(err).Warn("failed to record field lineage")
	}
}

func (e *Engine) rowError(result *Result, rowIndex int, severity, code, message string) {
	if len(result.RowErrors) >= models.MaxStoredRowErrors {
		return
	}
	result.RowErrors = append(result.RowErrors, RowError{
		Row:      rowIndex,
		Severity: severity,
		Code:     code,
		Message:  message,
	})
}

// abort finalizes the run as failed after a systemic error. No rows are
// (further) touched.
func (e *Engine) abort(ctx context.Context, run *models.SyncRun, cause error) error {
	msg := cause.Error()
	if err := e.deps.Runs.Finalize(ctx, run.ID, models.RunStatusFailed, repository.RunStats{}, nil, &msg); err != nil {
		e.deps.Log.WithError(err).Error("failed to mark sync run failed")
	}
	return cause
}

func (e *Engine) finalize(ctx context.Context, run *models.SyncRun, result *Result) error {
	var stored []map[string]interface{}
	for _, re := range result.RowErrors {
		stored = append(stored, map[string]interface{}{
			"row":      re.Row,
			"severity": re.Severity,
			"code":     re.Code,
			"message":  re.Message,
		})
	}
	return e.deps.Runs.Finalize(ctx, run.ID, result.Status, result.Stats, stored, nil)
}

// currentValue reads a field from an existing row, treating nil and empty
// string as absent.
func currentValue(existing map[string]interface{}, field string) (interface{}, bool) {
	if existing == nil {
		return nil, false
	}
	v, ok := existing[field]
	if !ok || v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func stringField(m map[string]interface{}, field string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[field].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// equalValues compares a stored value against a freshly transformed one
// using their canonical string forms, since storage drivers widen types.
func equalValues(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
