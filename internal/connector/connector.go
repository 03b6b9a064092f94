// Package connector abstracts row fetching from external tabular sources.
// The sync engine is agnostic to which connector serves a source as long
// as it returns rectangular string rows.
package connector

import (
	"context"
	"fmt"

	"github.com/sophiesociety/hub-sync/internal/models"
)

// SourceRef identifies one tab within one external source.
type SourceRef struct {
	// SpreadsheetID for google_sheet sources, file path for workbook sources.
	Location       string
	TabName        string
	HeaderRowIndex int
}

// FetchOptions bounds a fetch.
type FetchOptions struct {
	// RowLimit caps data rows returned (0 = all). Used for test syncs.
	RowLimit int
}

// RowSet is the rectangular result of a fetch: one header row plus data
// rows, all cells as strings, rows padded to header width.
type RowSet struct {
	Headers []string
	Rows    [][]string
}

// Connector fetches rows from one external system type.
type Connector interface {
	FetchRows(ctx context.Context, credential string, ref SourceRef, opts FetchOptions) (*RowSet, error)
}

// Registry resolves a connector by data source type.
type Registry struct {
	connectors map[models.DataSourceType]Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[models.DataSourceType]Connector)}
}

func (r *Registry) Register(sourceType models.DataSourceType, c Connector) {
	r.connectors[sourceType] = c
}

func (r *Registry) Resolve(sourceType models.DataSourceType) (Connector, error) {
	c, ok := r.connectors[sourceType]
	if !ok {
		return nil, fmt.Errorf("no connector registered for source type %q", sourceType)
	}
	return c, nil
}

// shape pads or truncates raw rows to the header width and applies the
// header-row offset and row limit.
func shape(all [][]string, ref SourceRef, opts FetchOptions) (*RowSet, error) {
	if ref.HeaderRowIndex < 0 || ref.HeaderRowIndex >= len(all) {
		return nil, fmt.Errorf("header row %d out of range (%d rows)", ref.HeaderRowIndex, len(all))
	}

	headers := all[ref.HeaderRowIndex]
	width := len(headers)
	data := all[ref.HeaderRowIndex+1:]
	if opts.RowLimit > 0 && len(data) > opts.RowLimit {
		data = data[:opts.RowLimit]
	}

	rows := make([][]string, 0, len(data))
	for _, raw := range data {
		row := make([]string, width)
		copy(row, raw)
		rows = append(rows, row)
	}

	return &RowSet{Headers: headers, Rows: rows}, nil
}
