package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sophiesociety/hub-sync/internal/connector"
	"github.com/sophiesociety/hub-sync/internal/models"
	"github.com/sophiesociety/hub-sync/internal/pattern"
	"github.com/sophiesociety/hub-sync/internal/repository"
)

type mockConfigLoader struct {
	LoadConfigFunc func(ctx context.Context, tabMappingID string) (*repository.SyncConfig, error)
}

func (m *mockConfigLoader) LoadConfig(ctx context.Context, tabMappingID string) (*repository.SyncConfig, error) {
	return m.LoadConfigFunc(ctx, tabMappingID)
}

type mockRunStore struct {
	CreateActiveFunc func(ctx context.Context, tabMappingID, triggeredBy string, dryRun bool) (*models.SyncRun, error)
	FinalizeFunc     func(ctx context.Context, runID string, status models.SyncRunStatus, stats repository.RunStats, runErrors []map[string]interface{}, lastError *string) error

	finalizedStatus models.SyncRunStatus
	finalizedStats  repository.RunStats
	lastError       *string
	finalized       bool
}

func (m *mockRunStore) CreateActive(ctx context.Context, tabMappingID, triggeredBy string, dryRun bool) (*models.SyncRun, error) {
	if m.CreateActiveFunc != nil {
		return m.CreateActiveFunc(ctx, tabMappingID, triggeredBy, dryRun)
	}
	return &models.SyncRun{ID: "run-1", TabMappingID: tabMappingID, Status: models.RunStatusRunning, TriggeredBy: triggeredBy, DryRun: dryRun, StartedAt: time.Now()}, nil
}

func (m *mockRunStore) Finalize(ctx context.Context, runID string, status models.SyncRunStatus, stats repository.RunStats, runErrors []map[string]interface{}, lastError *string) error {
	m.finalized = true
	m.finalizedStatus = status
	m.finalizedStats = stats
	m.lastError = lastError
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, runID, status, stats, runErrors, lastError)
	}
	return nil
}

type mockEntityStore struct {
	FindByKeyFunc func(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error)

	created []map[string]interface{}
	updated []map[string]interface{}
}

func (m *mockEntityStore) FindByKey(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error) {
	if m.FindByKeyFunc != nil {
		return m.FindByKeyFunc(ctx, entity, keyField, keyValue)
	}
	return nil, false, nil
}

func (m *mockEntityStore) Create(ctx context.Context, entity models.EntityType, fields map[string]interface{}) (string, error) {
	m.created = append(m.created, fields)
	return "new-id", nil
}

func (m *mockEntityStore) UpdateFields(ctx context.Context, entity models.EntityType, id string, fields map[string]interface{}) error {
	m.updated = append(m.updated, fields)
	return nil
}

type mockWeeklyStore struct {
	upserts []models.WeeklyStatus
	tables  []string
}

func (m *mockWeeklyStore) Upsert(ctx context.Context, targetTable string, entry models.WeeklyStatus) error {
	m.upserts = append(m.upserts, entry)
	m.tables = append(m.tables, targetTable)
	return nil
}

type mockLineage struct {
	entries []models.FieldLineage
}

func (m *mockLineage) Record(ctx context.Context, entries []models.FieldLineage) error {
	m.entries = append(m.entries, entries...)
	return nil
}

type mockConnector struct {
	FetchRowsFunc func(ctx context.Context, credential string, ref connector.SourceRef, opts connector.FetchOptions) (*connector.RowSet, error)
	fetchCalls    int
}

func (m *mockConnector) FetchRows(ctx context.Context, credential string, ref connector.SourceRef, opts connector.FetchOptions) (*connector.RowSet, error) {
	m.fetchCalls++
	return m.FetchRowsFunc(ctx, credential, ref, opts)
}

type mockResolver struct {
	conn connector.Connector
}

func (m *mockResolver) Resolve(sourceType models.DataSourceType) (connector.Connector, error) {
	return m.conn, nil
}

func strPtr(s string) *string { return &s }

func partnerConfig(columns []models.ColumnMapping, patterns []models.ColumnPattern) *repository.SyncConfig {
	key, _ := repository.SelectKeyColumn(columns)
	return &repository.SyncConfig{
		Tab: models.TabMapping{
			ID:            "tab-1",
			TabName:       "Partners",
			PrimaryEntity: models.EntityPartners,
			Status:        models.TabStatusActive,
		},
		Source: models.DataSource{
			ID:     "src-1",
			Name:   "Master Sheet",
			Type:   models.SourceTypeGoogleSheet,
			Config: models.JSONB{"location": "sheet-abc"},
		},
		Columns:  columns,
		Patterns: patterns,
		Key:      key,
	}
}

func basicColumns() []models.ColumnMapping {
	return []models.ColumnMapping{
		{ID: "c1", SourceColumn: "Brand", SourceIndex: 0, Category: models.CategoryPartner,
			TargetField: strPtr("brand_name"), Transform: models.TransformTrim,
			Authority: models.AuthoritySourceOfTruth, IsKey: true},
		{ID: "c2", SourceColumn: "Status", SourceIndex: 1, Category: models.CategoryPartner,
			TargetField: strPtr("status"), Transform: models.TransformTrim,
			Authority: models.AuthoritySourceOfTruth},
		{ID: "c3", SourceColumn: "Notes", SourceIndex: 2, Category: models.CategoryPartner,
			TargetField: strPtr("notes"), Transform: models.TransformTrim,
			Authority: models.AuthorityReference},
	}
}

func newTestEngine(cfg *repository.SyncConfig, rows *connector.RowSet) (*Engine, *mockRunStore, *mockEntityStore, *mockWeeklyStore, *mockLineage, *mockConnector) {
	runs := &mockRunStore{}
	entities := &mockEntityStore{}
	weekly := &mockWeeklyStore{}
	lineage := &mockLineage{}
	conn := &mockConnector{
		FetchRowsFunc: func(ctx context.Context, credential string, ref connector.SourceRef, opts connector.FetchOptions) (*connector.RowSet, error) {
			return rows, nil
		},
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	eng := New(Deps{
		Configs: &mockConfigLoader{
			LoadConfigFunc: func(ctx context.Context, tabMappingID string) (*repository.SyncConfig, error) {
				return cfg, nil
			},
		},
		Runs:       runs,
		Entities:   entities,
		Weekly:     weekly,
		Lineage:    lineage,
		Connectors: &mockResolver{conn: conn},
		Log:        log,
	})
	return eng, runs, entities, weekly, lineage, conn
}

func TestSyncTabCreatesNewEntities(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes"},
		Rows: [][]string{
			{"Acme Co", "Active", "Launch Q2"},
			{"Globex", "Onboarding", ""},
		},
	}
	eng, runs, entities, _, lineage, _ := newTestEngine(cfg, rows)

	result, err := eng.SyncTab(context.Background(), "tab-1", Options{TriggeredBy: "admin"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stats.Created != 2 || result.Stats.Processed != 2 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
	if len(entities.created) != 2 {
		t.Fatalf("expected 2 creates, got %d", len(entities.created))
	}
	if entities.created[0]["brand_name"] != "Acme Co" {
		t.Errorf("key field not written on create: %+v", entities.created[0])
	}
	if !runs.finalized || runs.finalizedStatus != models.RunStatusCompleted {
		t.Errorf("run not finalized completed: %v %s", runs.finalized, runs.finalizedStatus)
	}
	if len(lineage.entries) == 0 {
		t.Error("expected lineage entries for created fields")
	}
}

func TestSyncTabRunLockRefusal(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	eng, runs, _, _, _, conn := newTestEngine(cfg, &connector.RowSet{})
	runs.CreateActiveFunc = func(ctx context.Context, tabMappingID, triggeredBy string, dryRun bool) (*models.SyncRun, error) {
		return nil, repository.ErrSyncInProgress
	}

	_, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if !errors.Is(err, repository.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if conn.fetchCalls != 0 {
		t.Error("fetch must not run when the lock is held")
	}
}

func TestSyncTabKeyPreconditionBeforeFetch(t *testing.T) {
	columns := []models.ColumnMapping{
		{ID: "c1", SourceColumn: "Brand", SourceIndex: 0, Category: models.CategoryPartner,
			TargetField: strPtr("brand_name"), Authority: models.AuthoritySourceOfTruth},
	}
	cfg := partnerConfig(columns, nil)
	eng, runs, _, _, _, conn := newTestEngine(cfg, &connector.RowSet{})
	eng.deps.Configs = &mockConfigLoader{
		LoadConfigFunc: func(ctx context.Context, tabMappingID string) (*repository.SyncConfig, error) {
			return nil, repository.ErrNoKeyColumn
		},
	}

	_, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if !errors.Is(err, repository.ErrNoKeyColumn) {
		t.Fatalf("expected ErrNoKeyColumn, got %v", err)
	}
	if conn.fetchCalls != 0 {
		t.Error("fetch must not run when the key precondition fails")
	}
	if !runs.finalized || runs.finalizedStatus != models.RunStatusFailed {
		t.Error("run must be finalized failed on config error")
	}
}

func TestSyncTabSkipsBlankKeys(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes"},
		Rows: [][]string{
			{"Acme Co", "Active", ""},
			{"   ", "Active", ""},
			{"", "Churned", ""},
		},
	}
	eng, _, entities, _, _, _ := newTestEngine(cfg, rows)

	result, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stats.Skipped != 2 || result.Stats.Created != 1 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
	if len(entities.created) != 1 {
		t.Errorf("expected 1 create, got %d", len(entities.created))
	}
	for _, c := range result.Changes {
		if c.Type == ChangeSkip && c.SkipReason != SkipMissingKey {
			t.Errorf("unexpected skip reason %q", c.SkipReason)
		}
	}
}

func TestSyncTabReferenceFillsBlanksOnly(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes"},
		Rows:    [][]string{{"Acme Co", "Paused", "From reference tab"}},
	}
	eng, _, entities, _, _, _ := newTestEngine(cfg, rows)
	entities.FindByKeyFunc = func(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error) {
		return map[string]interface{}{
			"id":         "p-1",
			"brand_name": "Acme Co",
			"status":     "Active",
			"notes":      "Existing note",
		}, true, nil
	}

	result, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stats.Updated != 1 {
		t.Fatalf("expected 1 update, got %+v", result.Stats)
	}

	fields := entities.updated[0]
	// source_of_truth always wins over a differing existing value.
	if fields["status"] != "Paused" {
		t.Errorf("source-of-truth column must overwrite, got %v", fields["status"])
	}
	// reference never overwrites a populated field.
	if _, ok := fields["notes"]; ok {
		t.Errorf("reference column must not overwrite existing value: %v", fields["notes"])
	}
}

func TestSyncTabReferenceFillsWhenBlank(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes"},
		Rows:    [][]string{{"Acme Co", "Active", "Filled in"}},
	}
	eng, _, entities, _, _, _ := newTestEngine(cfg, rows)
	entities.FindByKeyFunc = func(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error) {
		return map[string]interface{}{
			"id":         "p-1",
			"brand_name": "Acme Co",
			"status":     "Active",
			"notes":      nil,
		}, true, nil
	}

	_, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entities.updated) != 1 {
		t.Fatalf("expected 1 update, got %d", len(entities.updated))
	}
	if entities.updated[0]["notes"] != "Filled in" {
		t.Errorf("reference column must fill a blank field: %+v", entities.updated[0])
	}
}

func TestSyncTabForceOverwrite(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes"},
		Rows:    [][]string{{"Acme Co", "Active", "Replacement note"}},
	}
	eng, _, entities, _, _, _ := newTestEngine(cfg, rows)
	entities.FindByKeyFunc = func(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error) {
		return map[string]interface{}{
			"id":     "p-1",
			"status": "Active",
			"notes":  "Old note",
		}, true, nil
	}

	_, err := eng.SyncTab(context.Background(), "tab-1", Options{ForceOverwrite: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entities.updated) != 1 {
		t.Fatalf("expected 1 update, got %d", len(entities.updated))
	}
	if entities.updated[0]["notes"] != "Replacement note" {
		t.Errorf("force overwrite must write reference columns too: %+v", entities.updated[0])
	}
}

func TestSyncTabIdempotentSecondRun(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes"},
		Rows:    [][]string{{"Acme Co", "Active", "Note"}},
	}
	eng, _, entities, _, lineage, _ := newTestEngine(cfg, rows)
	entities.FindByKeyFunc = func(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error) {
		// State after the first run: every field already holds the synced value.
		return map[string]interface{}{
			"id":         "p-1",
			"brand_name": "Acme Co",
			"status":     "Active",
			"notes":      "Note",
		}, true, nil
	}

	result, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stats.Skipped != 1 || result.Stats.Updated != 0 {
		t.Errorf("second identical run must be a no-op, got %+v", result.Stats)
	}
	if len(entities.updated) != 0 {
		t.Errorf("no writes expected, got %d", len(entities.updated))
	}
	if len(lineage.entries) != 0 {
		t.Errorf("no lineage expected on a no-op run, got %d", len(lineage.entries))
	}
	if result.Changes[0].SkipReason != SkipNoChanges {
		t.Errorf("unexpected skip reason %q", result.Changes[0].SkipReason)
	}
}

func TestSyncTabDryRunWritesNothing(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes"},
		Rows: [][]string{
			{"Acme Co", "Active", ""},
			{"Globex", "Paused", ""},
			{"", "", ""},
		},
	}
	eng, runs, entities, weekly, lineage, _ := newTestEngine(cfg, rows)

	result, err := eng.SyncTab(context.Background(), "tab-1", Options{DryRun: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entities.created)+len(entities.updated)+len(weekly.upserts)+len(lineage.entries) != 0 {
		t.Error("dry run must not write entities, weekly status, or lineage")
	}
	if result.Stats.Created != 2 || result.Stats.Skipped != 1 {
		t.Errorf("dry run must still report proposed changes: %+v", result.Stats)
	}
	if len(result.Changes) != 3 {
		t.Errorf("expected a change entry per row, got %d", len(result.Changes))
	}
	// Dry runs still create and finalize a run row: they hold the lock too.
	if !runs.finalized || runs.finalizedStatus != models.RunStatusCompleted {
		t.Error("dry run must finalize its run row")
	}
}

func TestSyncTabWeeklyColumns(t *testing.T) {
	columns := basicColumns()
	patterns := []models.ColumnPattern{
		{ID: "pat-1", Name: "weekly-status", MatchRegex: pattern.WeeklyHeaderRegex,
			Category: models.CategoryWeekly, TargetTable: "weekly_status", Priority: 100, IsActive: true},
	}
	cfg := partnerConfig(columns, patterns)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes", "1/6/26\nWeek 2", "1/13/26\nWeek 3"},
		Rows: [][]string{
			{"Acme Co", "Active", "", "On track", ""},
		},
	}
	eng, _, _, weekly, _, _ := newTestEngine(cfg, rows)

	result, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.WeeklyUpserts != 1 {
		t.Fatalf("expected 1 weekly upsert (blank cells skipped), got %d", result.WeeklyUpserts)
	}
	entry := weekly.upserts[0]
	if entry.Value != "On track" {
		t.Errorf("unexpected weekly value %q", entry.Value)
	}
	want := time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)
	if !entry.WeekStart.Equal(want) {
		t.Errorf("unexpected week start %v, want %v", entry.WeekStart, want)
	}
	// The matched pattern's target table names the history table.
	if weekly.tables[0] != "weekly_status" {
		t.Errorf("unexpected target table %q", weekly.tables[0])
	}
}

func TestSyncTabWeeklyTargetTableFromPattern(t *testing.T) {
	patterns := []models.ColumnPattern{
		{ID: "pat-asin", Name: "asin-weekly", MatchRegex: pattern.WeeklyHeaderRegex,
			Category: models.CategoryWeekly, TargetTable: "asin_weekly_status", Priority: 200, IsActive: true},
	}
	cfg := partnerConfig(basicColumns(), patterns)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Status", "Notes", "2/3/26\nWeek 6"},
		Rows:    [][]string{{"Acme Co", "Active", "", "Shipping"}},
	}
	eng, _, _, weekly, _, _ := newTestEngine(cfg, rows)

	if _, err := eng.SyncTab(context.Background(), "tab-1", Options{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(weekly.tables) != 1 || weekly.tables[0] != "asin_weekly_status" {
		t.Errorf("pattern target table must reach the store, got %v", weekly.tables)
	}
}

func TestSyncTabDerivesStaffAccountType(t *testing.T) {
	columns := []models.ColumnMapping{
		{ID: "c1", SourceColumn: "Email", SourceIndex: 0, Category: models.CategoryStaff,
			TargetField: strPtr("email"), Transform: models.TransformLowercase,
			Authority: models.AuthoritySourceOfTruth, IsKey: true},
		{ID: "c2", SourceColumn: "Name", SourceIndex: 1, Category: models.CategoryStaff,
			TargetField: strPtr("full_name"), Transform: models.TransformTrim,
			Authority: models.AuthoritySourceOfTruth},
		{ID: "c3", SourceColumn: "Type", SourceIndex: 2, Category: models.CategoryStaff,
			TargetField: strPtr("google_account_type"), Authority: models.AuthorityDerived},
	}
	cfg := partnerConfig(columns, nil)
	cfg.Tab.PrimaryEntity = models.EntityStaff
	cfg.Tab.TabName = "Staff"

	rows := &connector.RowSet{
		Headers: []string{"Email", "Name", "Type"},
		Rows: [][]string{
			{"chris.rawlings@sophie.co", "Chris Rawlings", "whatever the sheet says"},
			{"brandmanager21@sophie.co", "Chris Rawlings", ""},
		},
	}
	eng, _, entities, _, _, _ := newTestEngine(cfg, rows)

	_, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entities.created) != 2 {
		t.Fatalf("expected 2 creates, got %d", len(entities.created))
	}
	if entities.created[0]["google_account_type"] != "person" {
		t.Errorf("first.last address must classify as person: %+v", entities.created[0])
	}
	// Role alias with trailing digits stays shared even with a human name.
	if entities.created[1]["google_account_type"] != "shared_account" {
		t.Errorf("role alias must classify as shared_account: %+v", entities.created[1])
	}
	// The derived column never copies the sheet value.
	if entities.created[0]["google_account_type"] == "whatever the sheet says" {
		t.Error("derived column must not be sourced from the sheet")
	}
}

func TestSyncTabFetchFailureFinalizesFailed(t *testing.T) {
	cfg := partnerConfig(basicColumns(), nil)
	eng, runs, _, _, _, conn := newTestEngine(cfg, nil)
	conn.FetchRowsFunc = func(ctx context.Context, credential string, ref connector.SourceRef, opts connector.FetchOptions) (*connector.RowSet, error) {
		return nil, errors.New("sheet unavailable")
	}

	_, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if !runs.finalized || runs.finalizedStatus != models.RunStatusFailed {
		t.Error("run must be finalized failed on fetch error")
	}
	if runs.lastError == nil {
		t.Error("last error must be recorded")
	}
}

func TestSyncTabAmbiguousDateWarns(t *testing.T) {
	columns := []models.ColumnMapping{
		{ID: "c1", SourceColumn: "Brand", SourceIndex: 0, Category: models.CategoryPartner,
			TargetField: strPtr("brand_name"), Authority: models.AuthoritySourceOfTruth, IsKey: true},
		{ID: "c2", SourceColumn: "Launch", SourceIndex: 1, Category: models.CategoryPartner,
			TargetField: strPtr("launch_date"), Transform: models.TransformDate,
			Authority: models.AuthoritySourceOfTruth},
	}
	cfg := partnerConfig(columns, nil)
	rows := &connector.RowSet{
		Headers: []string{"Brand", "Launch"},
		Rows:    [][]string{{"Acme Co", "3/4/2025"}},
	}
	eng, _, entities, _, _, _ := newTestEngine(cfg, rows)

	result, err := eng.SyncTab(context.Background(), "tab-1", Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entities.created) != 1 {
		t.Fatalf("expected the row to still create, got %d creates", len(entities.created))
	}
	if _, ok := entities.created[0]["launch_date"]; ok {
		t.Error("ambiguous date must not be written")
	}
	found := false
	for _, re := range result.RowErrors {
		if re.Code == "ambiguous_date" && re.Severity == "warning" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an ambiguous_date warning, got %+v", result.RowErrors)
	}
}
