// Package gsheets implements store.Store on top of the Google Sheets v4 API.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
)

const (
	renderFormatted = "FORMATTED_VALUE"
	renderFormula   = "FORMULA"
	inputUser       = "USER_ENTERED"
)

// Store opens Google spreadsheets with a single Sheets API client.
type Store struct {
	svc *sheets.Service
}

// New builds a Store. Callers pass the credential options, for example
// option.WithCredentialsJSON.
func New(ctx context.Context, opts ...option.ClientOption) (*Store, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &Store{svc: svc}, nil
}

// Open fetches the worksheet list of a spreadsheet.
func (s *Store) Open(ctx context.Context, spreadsheetID string) (store.Spreadsheet, error) {
	meta, err := s.svc.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId", "sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("open %s: %w: %w", spreadsheetID, store.ErrSpreadsheetNotFound, err)
		}
		return nil, fmt.Errorf("open %s: %w", spreadsheetID, err)
	}
	sp := &spreadsheet{svc: s.svc, id: spreadsheetID}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			sp.props = append(sp.props, sh.Properties)
		}
	}
	return sp, nil
}

type spreadsheet struct {
	svc   *sheets.Service
	id    string
	props []*sheets.SheetProperties
}

func (sp *spreadsheet) ID() string { return sp.id }

func (sp *spreadsheet) Worksheets(ctx context.Context) ([]store.WorksheetInfo, error) {
	infos := make([]store.WorksheetInfo, 0, len(sp.props))
	for _, p := range sp.props {
		infos = append(infos, infoOf(p))
	}
	return infos, nil
}

func (sp *spreadsheet) Worksheet(ctx context.Context, title string) (store.Worksheet, error) {
	for _, p := range sp.props {
		if p.Title == title {
			return sp.worksheet(p), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrSheetNotFound, title)
}

func (sp *spreadsheet) WorksheetAt(ctx context.Context, index int) (store.Worksheet, error) {
	for _, p := range sp.props {
		if int(p.Index) == index {
			return sp.worksheet(p), nil
		}
	}
	return nil, fmt.Errorf("%w: index %d", store.ErrSheetNotFound, index)
}

func (sp *spreadsheet) Duplicate(ctx context.Context, ws store.Worksheet, title string) (store.Worksheet, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DuplicateSheet: &sheets.DuplicateSheetRequest{
				SourceSheetId: ws.Info().ID,
				NewSheetName:  title,
				// The first tab of a spreadsheet usually has id 0, which
				// would otherwise be dropped as a zero value.
				ForceSendFields: []string{"SourceSheetId"},
			},
		}},
	}
	resp, err := sp.svc.Spreadsheets.BatchUpdate(sp.id, req).Context(ctx).Do()
	if err != nil {
		if isStatus(err, http.StatusBadRequest) && strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("%w: %w", store.ErrSheetExists, err)
		}
		return nil, err
	}
	if len(resp.Replies) == 0 || resp.Replies[0].DuplicateSheet == nil || resp.Replies[0].DuplicateSheet.Properties == nil {
		return nil, fmt.Errorf("duplicate %q: empty reply", title)
	}
	p := resp.Replies[0].DuplicateSheet.Properties
	sp.props = append(sp.props, p)
	return sp.worksheet(p), nil
}

func (sp *spreadsheet) worksheet(p *sheets.SheetProperties) *worksheet {
	return &worksheet{svc: sp.svc, spreadsheetID: sp.id, props: p}
}

type worksheet struct {
	svc           *sheets.Service
	spreadsheetID string
	props         *sheets.SheetProperties
}

func (ws *worksheet) Info() store.WorksheetInfo { return infoOf(ws.props) }

func (ws *worksheet) Values(ctx context.Context) (grid.Grid, error) {
	return ws.get(ctx, renderFormatted)
}

func (ws *worksheet) Formulas(ctx context.Context) (grid.Grid, error) {
	return ws.get(ctx, renderFormula)
}

func (ws *worksheet) get(ctx context.Context, render string) (grid.Grid, error) {
	vr, err := ws.svc.Spreadsheets.Values.Get(ws.spreadsheetID, sheetRange(ws.props.Title)).
		ValueRenderOption(render).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", ws.props.Title, err)
	}
	return grid.FromValues(vr.Values).Pad(), nil
}

func (ws *worksheet) Update(ctx context.Context, g grid.Grid) error {
	if len(g) == 0 {
		return nil
	}
	vr := &sheets.ValueRange{Values: g.Values()}
	_, err := ws.svc.Spreadsheets.Values.Update(ws.spreadsheetID, sheetRange(ws.props.Title)+"!A1", vr).
		ValueInputOption(inputUser).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write %q: %w", ws.props.Title, err)
	}
	return nil
}

func infoOf(p *sheets.SheetProperties) store.WorksheetInfo {
	return store.WorksheetInfo{ID: p.SheetId, Title: p.Title, Index: int(p.Index)}
}

// sheetRange quotes a worksheet title for use in A1 notation.
func sheetRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
