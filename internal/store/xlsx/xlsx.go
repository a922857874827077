// Package xlsx implements store.Store over a directory of local .xlsx
// workbooks, one file per spreadsheet id. It backs local development and
// offline runs with the same duplicate/read/write contract as the Google
// backend.
package xlsx

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
)

const ext = ".xlsx"

// Store serves spreadsheets from Dir/<id>.xlsx.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // path -> file lock
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}
}

// Path returns the workbook file backing spreadsheetID.
func (s *Store) Path(spreadsheetID string) string {
	return filepath.Join(s.dir, spreadsheetID+ext)
}

func (s *Store) lock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// Open checks that the workbook exists.
func (s *Store) Open(ctx context.Context, spreadsheetID string) (store.Spreadsheet, error) {
	if spreadsheetID == "" || spreadsheetID != filepath.Base(spreadsheetID) || strings.HasPrefix(spreadsheetID, ".") {
		return nil, fmt.Errorf("open %q: %w", spreadsheetID, store.ErrSpreadsheetNotFound)
	}
	path := s.Path(spreadsheetID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %q: %w", spreadsheetID, store.ErrSpreadsheetNotFound)
		}
		return nil, err
	}
	return &spreadsheet{store: s, id: spreadsheetID, path: path}, nil
}

type spreadsheet struct {
	store *Store
	id    string
	path  string
}

// withFile opens the workbook under its lock, runs fn and saves when save
// is set.
func (sp *spreadsheet) withFile(save bool, fn func(f *excelize.File) error) error {
	l := sp.store.lock(sp.path)
	l.Lock()
	defer l.Unlock()

	f, err := excelize.OpenFile(sp.path)
	if err != nil {
		return fmt.Errorf("open workbook %s: %w", sp.id, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	if save {
		if err := f.Save(); err != nil {
			return fmt.Errorf("save workbook %s: %w", sp.id, err)
		}
	}
	return nil
}

func (sp *spreadsheet) ID() string { return sp.id }

func (sp *spreadsheet) Worksheets(ctx context.Context) ([]store.WorksheetInfo, error) {
	var infos []store.WorksheetInfo
	err := sp.withFile(false, func(f *excelize.File) error {
		infos = listInfos(f)
		return nil
	})
	return infos, err
}

func listInfos(f *excelize.File) []store.WorksheetInfo {
	ids := make(map[string]int, len(f.GetSheetMap()))
	for id, name := range f.GetSheetMap() {
		ids[name] = id
	}
	names := f.GetSheetList()
	infos := make([]store.WorksheetInfo, len(names))
	for i, name := range names {
		infos[i] = store.WorksheetInfo{ID: int64(ids[name]), Title: name, Index: i}
	}
	return infos
}

func (sp *spreadsheet) Worksheet(ctx context.Context, title string) (store.Worksheet, error) {
	infos, err := sp.Worksheets(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Title == title {
			return &worksheet{sp: sp, info: info}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrSheetNotFound, title)
}

func (sp *spreadsheet) WorksheetAt(ctx context.Context, index int) (store.Worksheet, error) {
	infos, err := sp.Worksheets(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("%w: index %d", store.ErrSheetNotFound, index)
	}
	return &worksheet{sp: sp, info: infos[index]}, nil
}

// Duplicate appends a copy of ws, styles and column widths included.
func (sp *spreadsheet) Duplicate(ctx context.Context, ws store.Worksheet, title string) (store.Worksheet, error) {
	var dup *worksheet
	err := sp.withFile(true, func(f *excelize.File) error {
		if idx, _ := f.GetSheetIndex(title); idx >= 0 {
			return fmt.Errorf("%w: %s", store.ErrSheetExists, title)
		}
		srcIdx, err := f.GetSheetIndex(ws.Info().Title)
		if err != nil {
			return err
		}
		if srcIdx < 0 {
			return fmt.Errorf("%w: %s", store.ErrSheetNotFound, ws.Info().Title)
		}
		newIdx, err := f.NewSheet(title)
		if err != nil {
			return fmt.Errorf("create sheet %q: %w", title, err)
		}
		if err := f.CopySheet(srcIdx, newIdx); err != nil {
			return fmt.Errorf("copy sheet %q: %w", title, err)
		}
		for _, info := range listInfos(f) {
			if info.Title == title {
				dup = &worksheet{sp: sp, info: info}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dup, nil
}

type worksheet struct {
	sp   *spreadsheet
	info store.WorksheetInfo
}

func (ws *worksheet) Info() store.WorksheetInfo { return ws.info }

// Values renders each cell through its number format. Formula cells
// without a cached result are calculated.
func (ws *worksheet) Values(ctx context.Context) (grid.Grid, error) {
	return ws.read(func(f *excelize.File, cell string) (string, error) {
		v, err := f.GetCellValue(ws.info.Title, cell)
		if err != nil || v != "" {
			return v, err
		}
		if fm, _ := f.GetCellFormula(ws.info.Title, cell); fm != "" {
			if calc, err := f.CalcCellValue(ws.info.Title, cell); err == nil {
				return calc, nil
			}
		}
		return v, nil
	})
}

// Formulas returns "=" plus the formula for formula cells and the raw,
// unformatted value otherwise.
func (ws *worksheet) Formulas(ctx context.Context) (grid.Grid, error) {
	return ws.read(func(f *excelize.File, cell string) (string, error) {
		fm, err := f.GetCellFormula(ws.info.Title, cell)
		if err != nil {
			return "", err
		}
		if fm != "" {
			if !grid.IsFormula(fm) {
				fm = "=" + fm
			}
			return fm, nil
		}
		return f.GetCellValue(ws.info.Title, cell, excelize.Options{RawCellValue: true})
	})
}

func (ws *worksheet) read(cellFn func(f *excelize.File, cell string) (string, error)) (grid.Grid, error) {
	var g grid.Grid
	err := ws.sp.withFile(false, func(f *excelize.File) error {
		rows, cols, err := extent(f, ws.info.Title)
		if err != nil {
			return err
		}
		g = make(grid.Grid, rows)
		for r := 0; r < rows; r++ {
			g[r] = make([]string, cols)
			for c := 0; c < cols; c++ {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if g[r][c], err = cellFn(f, cell); err != nil {
					return fmt.Errorf("read %s!%s: %w", ws.info.Title, cell, err)
				}
			}
		}
		return nil
	})
	return g, err
}

// extent is the used range of a sheet: the larger of what GetRows sees and
// the declared dimension, which also covers formula cells that have no
// cached value yet.
func extent(f *excelize.File, sheet string) (rows, cols int, err error) {
	all, err := f.GetRows(sheet)
	if err != nil {
		return 0, 0, err
	}
	rows = len(all)
	for _, row := range all {
		cols = max(cols, len(row))
	}
	if dim, err := f.GetSheetDimension(sheet); err == nil && dim != "" {
		parts := strings.Split(dim, ":")
		if c, r, err := excelize.CellNameToCoordinates(parts[len(parts)-1]); err == nil && (len(parts) > 1 || rows > 0) {
			rows, cols = max(rows, r), max(cols, c)
		}
	}
	return rows, cols, nil
}

// Update writes g from A1 the way a user would type it.
func (ws *worksheet) Update(ctx context.Context, g grid.Grid) error {
	if len(g) == 0 {
		return nil
	}
	return ws.sp.withFile(true, func(f *excelize.File) error {
		sheet := ws.info.Title
		for r, row := range g {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if err := setUserEntered(f, sheet, cell, v); err != nil {
					return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
				}
			}
		}
		return nil
	})
}

func setUserEntered(f *excelize.File, sheet, cell, v string) error {
	if grid.IsFormula(v) {
		return f.SetCellFormula(sheet, cell, strings.TrimPrefix(v, "="))
	}
	if fm, _ := f.GetCellFormula(sheet, cell); fm != "" {
		if err := f.SetCellFormula(sheet, cell, ""); err != nil {
			return err
		}
	}
	return f.SetCellValue(sheet, cell, userEntered(v))
}

// userEntered interprets typed text: a leading apostrophe forces text,
// TRUE/FALSE become booleans and numbers (thousands separators allowed)
// become numbers.
func userEntered(v string) any {
	switch {
	case v == "":
		return nil
	case strings.HasPrefix(v, "'"):
		return v[1:]
	case strings.EqualFold(v, "true"):
		return true
	case strings.EqualFold(v, "false"):
		return false
	}
	s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if strings.ContainsAny(s, "xXpP") {
		return v
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		return n
	}
	return v
}
