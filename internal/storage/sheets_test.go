package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rowRangePattern = regexp.MustCompile(`!A(\d+):K(\d+)$`)

// fakeSheets emulates the slice of the Sheets v4 API the table uses.
type fakeSheets struct {
	mu       sync.Mutex
	title    string
	exists   bool
	grid     [][]any // grid[0] is the header row
	requests []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	f.requests = append(f.requests, r.Method+" "+path)
	prefix := "/v4/spreadsheets/sheet-id"

	switch {
	case r.Method == http.MethodGet && path == prefix:
		var sheets []map[string]any
		if f.exists {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": 42, "title": f.title}})
		}
		writeJSON(w, map[string]any{"sheets": sheets})

	case r.Method == http.MethodPost && path == prefix+":batchUpdate":
		var body struct {
			Requests []struct {
				AddSheet *struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
				DeleteDimension *struct {
					Range struct {
						StartIndex int `json:"startIndex"`
						EndIndex   int `json:"endIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, req := range body.Requests {
			if req.AddSheet != nil {
				f.exists = true
				f.title = req.AddSheet.Properties.Title
				writeJSON(w, map[string]any{"replies": []any{map[string]any{
					"addSheet": map[string]any{"properties": map[string]any{"sheetId": 42}},
				}}})
				return
			}
			if d := req.DeleteDimension; d != nil {
				f.grid = append(f.grid[:d.Range.StartIndex], f.grid[d.Range.EndIndex:]...)
			}
		}
		writeJSON(w, map[string]any{})

	case r.Method == http.MethodGet && strings.HasPrefix(path, prefix+"/values/"):
		var values [][]any
		if len(f.grid) > 1 {
			values = f.grid[1:]
		}
		writeJSON(w, map[string]any{"values": values})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var body valueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(f.grid) == 0 {
			f.grid = append(f.grid, []any{})
		}
		f.grid = append(f.grid, body.Values...)
		writeJSON(w, map[string]any{})

	case r.Method == http.MethodPut && strings.HasPrefix(path, prefix+"/values/"):
		m := rowRangePattern.FindStringSubmatch(path)
		if m == nil {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		var body valueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n, _ := strconv.Atoi(m[1])
		for len(f.grid) < n {
			f.grid = append(f.grid, []any{})
		}
		f.grid[n-1] = body.Values[0]
		writeJSON(w, map[string]any{})

	default:
		http.Error(w, "unexpected request "+r.Method+" "+path, http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestSheets(t *testing.T, fake *fakeSheets) *SheetsTable {
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	table, err := NewSheetsTable(server.Client(), server.URL, "sheet-id", "diary_data")
	require.NoError(t, err)
	return table
}

func TestSheetsTable(t *testing.T) {
	fake := &fakeSheets{}
	table := newTestSheets(t, fake)

	require.NoError(t, table.EnsureWorksheet(context.Background()))
	exerciseBackend(t, table)
}

func TestSheetsTable_EnsureWorksheetWritesHeader(t *testing.T) {
	fake := &fakeSheets{}
	table := newTestSheets(t, fake)

	require.NoError(t, table.EnsureWorksheet(context.Background()))

	require.NotEmpty(t, fake.grid)
	header := make([]string, 0, len(fake.grid[0]))
	for _, v := range fake.grid[0] {
		header = append(header, v.(string))
	}
	assert.Equal(t, Columns, header)

	// A second call finds the sheet and creates nothing.
	before := len(fake.requests)
	require.NoError(t, table.EnsureWorksheet(context.Background()))
	assert.Len(t, fake.requests, before+1)
}

func TestSheetsTable_NumericColumnsAreNumbers(t *testing.T) {
	fake := &fakeSheets{exists: true, title: "diary_data"}
	table := newTestSheets(t, fake)

	require.NoError(t, table.AppendRow(context.Background(), sampleRow("2025-01-01", "first")))

	row := fake.grid[1]
	assert.IsType(t, "", row[0])
	assert.IsType(t, float64(0), row[3])
	assert.IsType(t, float64(0), row[8])
	assert.IsType(t, "", row[9])
}

func TestSheetsTable_APIErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":429}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	table, err := NewSheetsTable(server.Client(), server.URL, "sheet-id", "diary_data")
	require.NoError(t, err)

	_, err = table.ListRows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewSheetsTable_Validation(t *testing.T) {
	_, err := NewSheetsTable(nil, "", "", "diary_data")
	assert.Error(t, err)

	_, err = NewSheetsTable(nil, "", "id", "")
	assert.Error(t, err)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "6.18", cellString(6.18))
	assert.Equal(t, "7", cellString(float64(7)))
	assert.Equal(t, "true", cellString(true))
	assert.Equal(t, "text", cellString("text"))
}
