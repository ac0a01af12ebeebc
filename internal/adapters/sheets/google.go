// Package sheets provides the secondary spreadsheet sinks.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"postsync/internal/core/domain"
)

const (
	// DefaultRange covers the eight row columns of the first sheet.
	DefaultRange = "Sheet1!A:H"

	valueInputRaw  = "RAW"
	defaultTimeout = 30 * time.Second
)

// GoogleConfig identifies the target spreadsheet.
type GoogleConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsJSON []byte
	// Timeout bounds each read and write.
	Timeout time.Duration
}

// GoogleSheet implements ports.SpreadsheetStore with the Sheets v4 API.
type GoogleSheet struct {
	svc           *gsheets.Service
	spreadsheetID string
	rng           string
	timeout       time.Duration
}

// NewGoogleSheet creates a GoogleSheet authenticated with service-account
// credentials. Extra client options are appended after the credentials.
func NewGoogleSheet(ctx context.Context, cfg GoogleConfig, opts ...option.ClientOption) (*GoogleSheet, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id required: %w", domain.ErrConfiguration)
	}
	if cfg.Range == "" {
		cfg.Range = DefaultRange
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	clientOpts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if len(cfg.CredentialsJSON) > 0 {
		clientOpts = append(clientOpts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &GoogleSheet{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: cfg.Range, timeout: cfg.Timeout}, nil
}

// ReadRange returns the range values as strings, header first.
func (g *GoogleSheet) ReadRange(ctx context.Context) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", g.rng, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRange overwrites the range starting at its first row, values taken literally.
func (g *GoogleSheet) WriteRange(ctx context.Context, rows [][]string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	values := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = v
		}
		values[i] = row
	}

	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, g.rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", g.rng, err)
	}
	return nil
}

// SheetName returns the sheet part of an A1 range such as "Sheet1!A:H".
func SheetName(rng string) string {
	name, _, found := strings.Cut(rng, "!")
	if !found {
		return rng
	}
	return strings.Trim(name, "'")
}
