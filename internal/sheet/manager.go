// Package sheet resolves company worksheets through the directory and the
// store, and runs the read, merge-write and template-clone flows on them.
package sheet

import (
	"context"
	"errors"
	"fmt"

	"go.alis.build/alog"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/directory"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
)

// Event types published after successful writes.
const (
	EventUpdated = "SHEET_UPDATED"
	EventCloned  = "SHEET_CLONED"
)

// Event describes a change to a company's spreadsheet.
type Event struct {
	Type    string `json:"type"`
	Company string `json:"company"`
	Sheet   string `json:"sheet"`
	Source  string `json:"source_sheet,omitempty"`
	Rows    int    `json:"rows,omitempty"`
	User    string `json:"user,omitempty"`
}

// Notifier receives change events.
type Notifier interface {
	Publish(Event)
}

// View is a worksheet as shown to the editor.
type View struct {
	Company  directory.Company `json:"company"`
	Sheet    string            `json:"sheet"`
	Values   grid.Grid         `json:"values"`
	Editable grid.Mask         `json:"editable"`
}

// Manager runs sheet operations for companies.
type Manager struct {
	dir    *directory.Directory
	store  store.Store
	notify Notifier
}

// NewManager wires a Manager. notify may be nil.
func NewManager(dir *directory.Directory, s store.Store, notify Notifier) *Manager {
	return &Manager{dir: dir, store: s, notify: notify}
}

// Companies lists the companies that have both an id and a spreadsheet.
func (m *Manager) Companies(ctx context.Context) ([]directory.Company, error) {
	all, err := m.dir.Companies(ctx)
	if err != nil {
		return nil, err
	}
	companies := []directory.Company{}
	for _, c := range all {
		if c.Listable() {
			companies = append(companies, c)
		}
	}
	return companies, nil
}

func (m *Manager) open(ctx context.Context, companyID string) (directory.Company, store.Spreadsheet, error) {
	c, err := m.dir.Lookup(ctx, companyID)
	switch {
	case errors.Is(err, directory.ErrCompanyNotFound):
		return c, nil, NotFound("Company not found", nil)
	case errors.Is(err, directory.ErrSpreadsheetMissing):
		return c, nil, Invalid("SpreadsheetId missing in Master Config", nil)
	case err != nil:
		return c, nil, err
	}
	sp, err := m.store.Open(ctx, c.SpreadsheetId)
	if errors.Is(err, store.ErrSpreadsheetNotFound) {
		return c, nil, NotFound(fmt.Sprintf("Spreadsheet for company '%s' not found", companyID), err)
	}
	if err != nil {
		return c, nil, err
	}
	return c, sp, nil
}

func (m *Manager) worksheet(ctx context.Context, sp store.Spreadsheet, title, label string) (store.Worksheet, error) {
	ws, err := sp.Worksheet(ctx, title)
	if errors.Is(err, store.ErrSheetNotFound) {
		return nil, NotFound(fmt.Sprintf("%s '%s' not found", label, title), err)
	}
	return ws, err
}

// Sheets lists the tabs of a company's spreadsheet.
func (m *Manager) Sheets(ctx context.Context, companyID string) ([]store.WorksheetInfo, error) {
	_, sp, err := m.open(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return sp.Worksheets(ctx)
}

// Read returns the rendered values of a worksheet with the mask of cells
// that hold no formula.
func (m *Manager) Read(ctx context.Context, companyID, sheetName string) (*View, error) {
	if sheetName == "" {
		return nil, Invalid("sheet parameter is required", nil)
	}
	c, sp, err := m.open(ctx, companyID)
	if err != nil {
		return nil, err
	}
	ws, err := m.worksheet(ctx, sp, sheetName, "Sheet")
	if err != nil {
		return nil, err
	}
	display, err := ws.Values(ctx)
	if err != nil {
		return nil, err
	}
	formulas, err := ws.Formulas(ctx)
	if err != nil {
		return nil, err
	}
	if display == nil {
		display = grid.Grid{}
	}
	return &View{
		Company:  c,
		Sheet:    sheetName,
		Values:   display,
		Editable: grid.EditableMask(display, formulas),
	}, nil
}

// UpdateRequest carries a client edit of one worksheet.
type UpdateRequest struct {
	Company  string
	Sheet    string
	Values   grid.Grid
	Editable grid.Mask
	User     string
}

// Update merges the editable cells of req.Values into the worksheet's
// formula view and writes the result back in one call. It returns the
// number of rows visited.
func (m *Manager) Update(ctx context.Context, req UpdateRequest) (int, error) {
	if req.Sheet == "" {
		return 0, Invalid("sheet parameter is required", nil)
	}
	_, sp, err := m.open(ctx, req.Company)
	if err != nil {
		return 0, err
	}
	ws, err := m.worksheet(ctx, sp, req.Sheet, "Sheet")
	if err != nil {
		return 0, err
	}
	current, err := ws.Formulas(ctx)
	if err != nil {
		return 0, err
	}
	merged, rows := grid.Merge(current, req.Values, req.Editable)
	if err := ws.Update(ctx, merged); err != nil {
		return 0, err
	}
	alog.Infof(ctx, "sheet: %s updated %s/%s (%d rows)", userOrAnon(req.User), req.Company, req.Sheet, rows)
	m.publish(Event{Type: EventUpdated, Company: req.Company, Sheet: req.Sheet, Rows: rows, User: req.User})
	return rows, nil
}

// CloneRequest names a template worksheet and the tab to create from it.
type CloneRequest struct {
	Company  string
	Source   string
	NewSheet string
	User     string
}

// Clone duplicates the source worksheet under a new title and blanks its
// numeric inputs, keeping formulas, labels and formatting.
func (m *Manager) Clone(ctx context.Context, req CloneRequest) (store.WorksheetInfo, error) {
	if req.Source == "" || req.NewSheet == "" {
		return store.WorksheetInfo{}, Invalid("source_sheet and new_sheet are required", nil)
	}
	_, sp, err := m.open(ctx, req.Company)
	if err != nil {
		return store.WorksheetInfo{}, err
	}
	src, err := m.worksheet(ctx, sp, req.Source, "Source sheet")
	if err != nil {
		return store.WorksheetInfo{}, err
	}
	dup, err := sp.Duplicate(ctx, src, req.NewSheet)
	if err != nil {
		return store.WorksheetInfo{}, Invalid(fmt.Sprintf("Cannot create sheet '%s'", req.NewSheet), err)
	}
	formulas, err := dup.Formulas(ctx)
	if err != nil {
		return store.WorksheetInfo{}, fmt.Errorf("sheet '%s' was created but its values were not cleared: %w", req.NewSheet, err)
	}
	if err := dup.Update(ctx, grid.ClearNumeric(formulas)); err != nil {
		return store.WorksheetInfo{}, fmt.Errorf("sheet '%s' was created but its values were not cleared: %w", req.NewSheet, err)
	}
	alog.Infof(ctx, "sheet: %s cloned %s/%s into %q", userOrAnon(req.User), req.Company, req.Source, req.NewSheet)
	m.publish(Event{Type: EventCloned, Company: req.Company, Sheet: req.NewSheet, Source: req.Source, User: req.User})
	return dup.Info(), nil
}

func (m *Manager) publish(e Event) {
	if m.notify != nil {
		m.notify.Publish(e)
	}
}

func userOrAnon(user string) string {
	if user == "" {
		return "anonymous"
	}
	return user
}
