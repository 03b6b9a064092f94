package connector

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook fetches rows from an uploaded .xlsx workbook on disk. No
// credential is required; ref.Location is the file path.
type Workbook struct{}

func NewWorkbook() *Workbook {
	return &Workbook{}
}

func (w *Workbook) FetchRows(_ context.Context, _ string, ref SourceRef, opts FetchOptions) (*RowSet, error) {
	f, err := excelize.OpenFile(ref.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	all, err := f.GetRows(ref.TabName)
	if err != nil {
		return nil, fmt.Errorf("failed to read tab %q: %w", ref.TabName, err)
	}

	return shape(all, ref, opts)
}
