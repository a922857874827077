package gsheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
)

// fakeSheetsAPI answers the handful of Sheets v4 calls the store makes.
type fakeSheetsAPI struct {
	mu         sync.Mutex
	renders    []string
	inputs     []string
	written    map[string]any
	duplicates []map[string]any
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case path == "/v4/spreadsheets/missing":
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`)
	case path == "/v4/spreadsheets/sp1" && r.Method == http.MethodGet:
		io.WriteString(w, `{"spreadsheetId":"sp1","sheets":[
			{"properties":{"sheetId":0,"title":"APR 25","index":0}},
			{"properties":{"sheetId":77,"title":"Owner's Notes","index":1}}]}`)
	case path == "/v4/spreadsheets/sp1:batchUpdate":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		reqs := body["requests"].([]any)
		dup := reqs[0].(map[string]any)["duplicateSheet"].(map[string]any)
		f.duplicates = append(f.duplicates, dup)
		if dup["newSheetName"] == "Owner's Notes" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"code":400,"message":"Invalid requests[0].duplicateSheet: A sheet with the name \"Owner's Notes\" already exists. Please enter another name.","status":"INVALID_ARGUMENT"}}`)
			return
		}
		io.WriteString(w, `{"spreadsheetId":"sp1","replies":[{"duplicateSheet":{"properties":{"sheetId":99,"title":"MAY 25","index":2}}}]}`)
	case strings.HasPrefix(path, "/v4/spreadsheets/sp1/values/") && r.Method == http.MethodGet:
		render := r.URL.Query().Get("valueRenderOption")
		f.renders = append(f.renders, render)
		if render == "FORMULA" {
			io.WriteString(w, `{"range":"'APR 25'!A1:C2","majorDimension":"ROWS","values":[["Jan Sales","=SUM(B1:B1)",1200],["Total"]]}`)
			return
		}
		io.WriteString(w, `{"range":"'APR 25'!A1:C2","majorDimension":"ROWS","values":[["Jan Sales","1,200","1,200"],["Total"]]}`)
	case strings.HasPrefix(path, "/v4/spreadsheets/sp1/values/") && r.Method == http.MethodPut:
		f.inputs = append(f.inputs, r.URL.Query().Get("valueInputOption"))
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.written = map[string]any{"path": strings.TrimPrefix(path, "/v4/spreadsheets/sp1/values/"), "values": body["values"]}
		io.WriteString(w, `{"spreadsheetId":"sp1","updatedRows":2}`)
	default:
		w.WriteHeader(http.StatusNotImplemented)
		io.WriteString(w, `{"error":{"code":501,"message":"unexpected call"}}`)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeSheetsAPI) {
	t.Helper()
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	s, err := New(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	return s, api
}

func TestOpen_ListsWorksheets(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sp, err := s.Open(ctx, "sp1")
	require.NoError(t, err)
	assert.Equal(t, "sp1", sp.ID())

	infos, err := sp.Worksheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.WorksheetInfo{
		{ID: 0, Title: "APR 25", Index: 0},
		{ID: 77, Title: "Owner's Notes", Index: 1},
	}, infos)

	ws, err := sp.WorksheetAt(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Owner's Notes", ws.Info().Title)
}

func TestOpen_MissingSpreadsheet(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrSpreadsheetNotFound)
}

func TestWorksheet_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	sp, err := s.Open(context.Background(), "sp1")
	require.NoError(t, err)

	_, err = sp.Worksheet(context.Background(), "JUN 25")
	assert.ErrorIs(t, err, store.ErrSheetNotFound)
	assert.Contains(t, err.Error(), "JUN 25")
}

func TestWorksheet_ReadsBothViews(t *testing.T) {
	s, api := newTestStore(t)
	ctx := context.Background()
	sp, err := s.Open(ctx, "sp1")
	require.NoError(t, err)
	ws, err := sp.Worksheet(ctx, "APR 25")
	require.NoError(t, err)

	display, err := ws.Values(ctx)
	require.NoError(t, err)
	formulas, err := ws.Formulas(ctx)
	require.NoError(t, err)

	assert.Equal(t, grid.Grid{{"Jan Sales", "1,200", "1,200"}, {"Total", "", ""}}, display)
	assert.Equal(t, grid.Grid{{"Jan Sales", "=SUM(B1:B1)", "1200"}, {"Total", "", ""}}, formulas)
	assert.Equal(t, []string{"FORMATTED_VALUE", "FORMULA"}, api.renders)
}

func TestWorksheet_UpdateIsUserEnteredFromA1(t *testing.T) {
	s, api := newTestStore(t)
	ctx := context.Background()
	sp, err := s.Open(ctx, "sp1")
	require.NoError(t, err)
	ws, err := sp.Worksheet(ctx, "Owner's Notes")
	require.NoError(t, err)

	require.NoError(t, ws.Update(ctx, grid.Grid{{"a", "=A1"}, {"3"}}))

	assert.Equal(t, []string{"USER_ENTERED"}, api.inputs)
	assert.Equal(t, "'Owner''s Notes'!A1", api.written["path"])
	assert.Equal(t, []any{[]any{"a", "=A1"}, []any{"3"}}, api.written["values"])
}

func TestWorksheet_UpdateEmptyGridIsNoop(t *testing.T) {
	s, api := newTestStore(t)
	ctx := context.Background()
	sp, err := s.Open(ctx, "sp1")
	require.NoError(t, err)
	ws, err := sp.Worksheet(ctx, "APR 25")
	require.NoError(t, err)

	require.NoError(t, ws.Update(ctx, grid.Grid{}))
	assert.Empty(t, api.inputs)
}

func TestDuplicate_SendsZeroSheetID(t *testing.T) {
	s, api := newTestStore(t)
	ctx := context.Background()
	sp, err := s.Open(ctx, "sp1")
	require.NoError(t, err)
	src, err := sp.Worksheet(ctx, "APR 25")
	require.NoError(t, err)

	dup, err := sp.Duplicate(ctx, src, "MAY 25")
	require.NoError(t, err)

	assert.Equal(t, store.WorksheetInfo{ID: 99, Title: "MAY 25", Index: 2}, dup.Info())
	require.Len(t, api.duplicates, 1)
	assert.Equal(t, float64(0), api.duplicates[0]["sourceSheetId"])
	assert.Equal(t, "MAY 25", api.duplicates[0]["newSheetName"])

	again, err := sp.Worksheet(ctx, "MAY 25")
	require.NoError(t, err)
	assert.Equal(t, int64(99), again.Info().ID)
}

func TestDuplicate_NameCollision(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sp, err := s.Open(ctx, "sp1")
	require.NoError(t, err)
	src, err := sp.Worksheet(ctx, "APR 25")
	require.NoError(t, err)

	_, err = sp.Duplicate(ctx, src, "Owner's Notes")
	assert.ErrorIs(t, err, store.ErrSheetExists)
	assert.Contains(t, err.Error(), "already exists")
}
