// Package google mirrors expenses into a Google Sheets worksheet.
//
// Each expense is one row: id, date, description, category, amount,
// payment_method. Column A identifies the row; rows whose first cell is
// not an integer (a header, notes) are ignored.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

const DefaultSheetName = "Expenses"

var _ ports.IndexedMirror = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// rowMu serializes read-then-write sequences. Deletes address rows by
	// index, so a second delete computed from a stale read hits the wrong row.
	rowMu sync.Mutex

	mu      sync.Mutex
	sheetID *int64
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// NewFromConfig authenticates with a service account and returns a client.
func NewFromConfig(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentialsJSON, err := serviceAccountCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		applog.FieldComponent, applog.ComponentSheets,
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)
	return New(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// serviceAccountCredentials resolves inline JSON first, then a key file,
// then GOOGLE_APPLICATION_CREDENTIALS.
func serviceAccountCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// a1 builds an A1 range on the mirror sheet. The sheet name is always
// quoted so names with spaces work.
func (c *Client) a1(cols string) string {
	return "'" + strings.ReplaceAll(c.sheetName, "'", "''") + "'!" + cols
}

// AppendExpense writes e as a new row unless a row with the same id is
// already present, in which case its range is returned.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if e.ID <= 0 {
		return "", fmt.Errorf("mirror expense: invalid id %d", e.ID)
	}

	c.rowMu.Lock()
	defer c.rowMu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	for i, id := range ids {
		if id == e.ID {
			return c.a1(fmt.Sprintf("A%d:F%d", i+1, i+1)), nil
		}
	}

	vr := &gsheet.ValueRange{Values: [][]any{{
		e.ID, e.Date, e.Description, e.Category, e.Amount, e.PaymentMethod,
	}}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:F"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append row to %s: %w", c.sheetName, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Expense mirrored",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOperation, applog.OpSync,
		applog.FieldExpenseID, e.ID,
		"range", ref)
	return ref, nil
}

// DeleteExpense removes the row holding id. A missing row is a no-op.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.rowMu.Lock()
	defer c.rowMu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	row := -1
	for i, v := range ids {
		if v == id {
			row = i
			break
		}
	}
	if row < 0 {
		slog.DebugContext(ctx, "Expense not in mirror, nothing to delete",
			applog.FieldComponent, applog.ComponentSheets,
			applog.FieldExpenseID, id)
		return nil
	}

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row + 1),
					// zero is a valid sheet id and row index
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d from %s: %w", row+1, c.sheetName, err)
	}

	slog.InfoContext(ctx, "Expense removed from mirror",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id,
		"row", row+1)
	return nil
}

// MirroredIDs returns the ids present in column A, in row order.
func (c *Client) MirroredIDs(ctx context.Context) ([]int64, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

// readIDs returns column A indexed by row (0 is row 1). Cells that do not
// hold an id are reported as 0.
func (c *Client) readIDs(ctx context.Context) ([]int64, error) {
	rng := c.a1("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]int64, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		ids[i] = parseID(row[0])
	}
	return ids, nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet %s", c.sheetName, c.spreadsheetID)
}

func parseID(v any) int64 {
	switch x := v.(type) {
	case float64:
		if x > 0 && x == float64(int64(x)) {
			return int64(x)
		}
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err == nil && id > 0 {
			return id
		}
	}
	return 0
}
