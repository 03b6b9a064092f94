package connector

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheets fetches rows from the Google Sheets API. The credential is
// an OAuth access token for the spreadsheet's owner.
type GoogleSheets struct{}

func NewGoogleSheets() *GoogleSheets {
	return &GoogleSheets{}
}

// FetchRows reads the whole tab and shapes it against the configured
// header row. API/auth failures here are systemic and abort the caller's
// run; they are never attributed to individual rows.
func (g *GoogleSheets) FetchRows(ctx context.Context, credential string, ref SourceRef, opts FetchOptions) (*RowSet, error) {
	token := &oauth2.Token{
		AccessToken: credential,
		TokenType:   "Bearer",
	}

	svc, err := sheets.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	resp, err := svc.Spreadsheets.Values.Get(ref.Location, ref.TabName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read tab %q: %w", ref.TabName, err)
	}

	all := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprintf("%v", cell))
		}
		all = append(all, row)
	}

	return shape(all, ref, opts)
}
