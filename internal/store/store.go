// Package store defines how the service reaches the spreadsheets it edits.
// A Store opens spreadsheets by id; a Spreadsheet lists and selects its
// worksheets; a Worksheet is read and written as a grid anchored at A1.
package store

import (
	"context"
	"errors"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
)

var (
	// ErrSpreadsheetNotFound is returned when no spreadsheet has the given id.
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
	// ErrSheetNotFound is returned when a spreadsheet has no worksheet with
	// the requested title or index.
	ErrSheetNotFound = errors.New("worksheet not found")
	// ErrSheetExists is returned when a duplicate would reuse a taken title.
	ErrSheetExists = errors.New("worksheet already exists")
)

// WorksheetInfo identifies a worksheet inside its spreadsheet.
type WorksheetInfo struct {
	ID    int64
	Title string
	Index int
}

// Store opens spreadsheets.
type Store interface {
	Open(ctx context.Context, spreadsheetID string) (Spreadsheet, error)
}

// Spreadsheet is one remote workbook.
type Spreadsheet interface {
	ID() string
	Worksheets(ctx context.Context) ([]WorksheetInfo, error)
	// Worksheet selects a worksheet by title.
	Worksheet(ctx context.Context, title string) (Worksheet, error)
	// WorksheetAt selects a worksheet by its zero-based position.
	WorksheetAt(ctx context.Context, index int) (Worksheet, error)
	// Duplicate copies ws, including formatting, under a new title.
	Duplicate(ctx context.Context, ws Worksheet, title string) (Worksheet, error)
}

// Worksheet is one tab of a spreadsheet.
type Worksheet interface {
	Info() WorksheetInfo
	// Values returns the rendered cell values.
	Values(ctx context.Context) (grid.Grid, error)
	// Formulas returns formula text where a cell has one and the value
	// otherwise.
	Formulas(ctx context.Context) (grid.Grid, error)
	// Update writes g starting at A1. Values are interpreted as if typed by
	// a user, so "=..." becomes a formula and numeric text a number.
	Update(ctx context.Context, g grid.Grid) error
}
