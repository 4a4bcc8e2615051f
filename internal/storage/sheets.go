package storage

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultSheetsBaseURL = "https://sheets.googleapis.com"
	sheetsScope          = "https://www.googleapis.com/auth/spreadsheets"
	lastColumn           = "K"
)

// numericColumns are sent as JSON numbers so the sheet stores numbers, not text.
var numericColumns = map[int]bool{3: true, 4: true, 5: true, 6: true, 7: true, 8: true}

// SheetsTable is a worksheet in a Google spreadsheet. Row 1 holds the header.
type SheetsTable struct {
	client        *resty.Client
	spreadsheetID string
	worksheet     string

	mu      sync.Mutex
	sheetID *int64
}

var _ TabularBackend = (*SheetsTable)(nil)

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

type batchUpdateRequest struct {
	Requests []map[string]any `json:"requests"`
}

// NewSheetsHTTPClient builds an OAuth2 client from service-account credentials JSON
func NewSheetsHTTPClient(ctx context.Context, credentialsJSON []byte) (*http.Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, sheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Google credentials: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// NewSheetsTable creates a table over one worksheet. baseURL may be empty for the public API.
func NewSheetsTable(httpClient *http.Client, baseURL, spreadsheetID, worksheet string) (*SheetsTable, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}
	if worksheet == "" {
		return nil, fmt.Errorf("worksheet name is required")
	}
	if baseURL == "" {
		baseURL = defaultSheetsBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")

	return &SheetsTable{
		client:        client,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
	}, nil
}

// EnsureWorksheet creates the worksheet with its header row when it does not exist yet
func (s *SheetsTable) EnsureWorksheet(ctx context.Context) error {
	id, found, err := s.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	if found {
		logrus.Debugf("Worksheet %s already exists", s.worksheet)
		s.setSheetID(id)
		return nil
	}

	var out struct {
		Replies []struct {
			AddSheet struct {
				Properties struct {
					SheetID int64 `json:"sheetId"`
				} `json:"properties"`
			} `json:"addSheet"`
		} `json:"replies"`
	}
	req := batchUpdateRequest{Requests: []map[string]any{{
		"addSheet": map[string]any{
			"properties": map[string]any{
				"title":          s.worksheet,
				"gridProperties": map[string]any{"rowCount": 1000, "columnCount": 20},
			},
		},
	}}}
	if err := s.batchUpdate(ctx, req, &out); err != nil {
		return fmt.Errorf("failed to create worksheet %s: %w", s.worksheet, err)
	}
	if len(out.Replies) > 0 {
		s.setSheetID(out.Replies[0].AddSheet.Properties.SheetID)
	}

	header := make([]string, len(Columns))
	copy(header, Columns)
	if err := s.putRange(ctx, s.rowRange(1), header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	logrus.Infof("Created worksheet %s", s.worksheet)
	return nil
}

func (s *SheetsTable) ListRows(ctx context.Context) ([][]string, error) {
	var out valueRange
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"id":    s.spreadsheetID,
			"range": fmt.Sprintf("%s!A2:%s", s.worksheet, lastColumn),
		}).
		SetQueryParam("valueRenderOption", "UNFORMATTED_VALUE").
		SetResult(&out).
		Get("/v4/spreadsheets/{id}/values/{range}")
	if err != nil {
		return nil, fmt.Errorf("sheets request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sheets API error %d: %s", resp.StatusCode(), resp.String())
	}

	rows := make([][]string, 0, len(out.Values))
	for _, values := range out.Values {
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *SheetsTable) AppendRow(ctx context.Context, row []string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"id":    s.spreadsheetID,
			"range": fmt.Sprintf("%s!A:%s", s.worksheet, lastColumn),
		}).
		SetQueryParams(map[string]string{
			"valueInputOption": "RAW",
			"insertDataOption": "INSERT_ROWS",
		}).
		SetBody(valueRange{Values: [][]any{typedCells(row)}}).
		Post("/v4/spreadsheets/{id}/values/{range}:append")
	if err != nil {
		return fmt.Errorf("sheets request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sheets API error %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (s *SheetsTable) UpdateRow(ctx context.Context, index int, row []string) error {
	if index < 0 {
		return fmt.Errorf("update row %d: %w", index, ErrIndexOutOfRange)
	}
	return s.putRange(ctx, s.rowRange(index+2), row)
}

func (s *SheetsTable) DeleteRow(ctx context.Context, index int) error {
	if index < 0 {
		return fmt.Errorf("delete row %d: %w", index, ErrIndexOutOfRange)
	}
	sheetID, err := s.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	// Data row i lives on sheet row i+2, which is 0-based grid index i+1.
	req := batchUpdateRequest{Requests: []map[string]any{{
		"deleteDimension": map[string]any{
			"range": map[string]any{
				"sheetId":    sheetID,
				"dimension":  "ROWS",
				"startIndex": index + 1,
				"endIndex":   index + 2,
			},
		},
	}}}
	if err := s.batchUpdate(ctx, req, nil); err != nil {
		return fmt.Errorf("delete row %d: %w", index, err)
	}
	return nil
}

func (s *SheetsTable) rowRange(sheetRow int) string {
	return fmt.Sprintf("%s!A%d:%s%d", s.worksheet, sheetRow, lastColumn, sheetRow)
}

func (s *SheetsTable) putRange(ctx context.Context, rng string, row []string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"id": s.spreadsheetID, "range": rng}).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(valueRange{Range: rng, MajorDimension: "ROWS", Values: [][]any{typedCells(row)}}).
		Put("/v4/spreadsheets/{id}/values/{range}")
	if err != nil {
		return fmt.Errorf("sheets request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sheets API error %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (s *SheetsTable) batchUpdate(ctx context.Context, body batchUpdateRequest, result any) error {
	req := s.client.R().
		SetContext(ctx).
		SetPathParam("id", s.spreadsheetID).
		SetBody(body)
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Post("/v4/spreadsheets/{id}:batchUpdate")
	if err != nil {
		return fmt.Errorf("sheets request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sheets API error %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (s *SheetsTable) lookupSheetID(ctx context.Context) (int64, bool, error) {
	var meta spreadsheetMeta
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", s.spreadsheetID).
		SetQueryParam("fields", "sheets.properties").
		SetResult(&meta).
		Get("/v4/spreadsheets/{id}")
	if err != nil {
		return 0, false, fmt.Errorf("sheets request failed: %w", err)
	}
	if resp.IsError() {
		return 0, false, fmt.Errorf("sheets API error %d: %s", resp.StatusCode(), resp.String())
	}

	for _, sh := range meta.Sheets {
		if sh.Properties.Title == s.worksheet {
			return sh.Properties.SheetID, true, nil
		}
	}
	return 0, false, nil
}

func (s *SheetsTable) resolveSheetID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	cached := s.sheetID
	s.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	id, found, err := s.lookupSheetID(ctx)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("worksheet %s not found", s.worksheet)
	}
	s.setSheetID(id)
	return id, nil
}

func (s *SheetsTable) setSheetID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheetID = &id
}

// typedCells converts the numeric columns so they are stored as numbers.
func typedCells(row []string) []any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
		if !numericColumns[i] {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cells[i] = n
		}
	}
	return cells
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
