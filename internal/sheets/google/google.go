// Package google appends spend logs to a Google Sheets spreadsheet,
// one year-named sheet per calendar year.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneymanager/internal/core"
	ports "moneymanager/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.LogAppender = (*Client)(nil)

// New creates a client for the given spreadsheet. sheetBase is the
// sheet name without the year prefix; rows land on "<year> <base>".
func New(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "SpendLogs"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
	}, nil
}

// newSheetsService builds a Sheets service from service-account
// credentials. Uses GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Append writes one spend log to the year's sheet.
func (c *Client) Append(ctx context.Context, s core.SpendLog) (string, error) {
	sheetName := sheetNameFor(c.sheetBase, s.Date.Year())
	values := &gsheet.ValueRange{Values: [][]interface{}{rowFor(s)}}

	resp, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, sheetName+"!A:F", values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheetName, err)
	}

	rowRef := sheetName
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		rowRef = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Spend log appended to sheet",
		"spend_id", s.ID,
		"sheet_ref", rowRef)
	return rowRef, nil
}

// sheetNameFor prefixes the base sheet name with the entry's year.
func sheetNameFor(base string, year int) string {
	return fmt.Sprintf("%d %s", year, base)
}

// rowFor flattens a spend log into the sheet's column order:
// date, category, amount, payment method, note, entry id.
func rowFor(s core.SpendLog) []interface{} {
	return []interface{}{
		s.Date.Format("2006-01-02"),
		s.Category,
		s.Amount.Fixed2(),
		s.PaymentMethod,
		s.Note,
		s.ID,
	}
}
