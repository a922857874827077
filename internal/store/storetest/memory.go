// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
)

// Sheet is the seeded content of one worksheet. Display defaults to
// Formulas when nil.
type Sheet struct {
	Title    string
	Display  grid.Grid
	Formulas grid.Grid
}

// Memory is a store.Store whose spreadsheets live in a map. Writes replace
// the formula view wholesale and count every call.
type Memory struct {
	mu     sync.Mutex
	books  map[string][]*memSheet
	nextID int64

	// Counters for assertions.
	Opens   int
	Reads   int
	Writes  int
	Written map[string]grid.Grid // "spreadsheet/title" -> last grid written

	// Fail makes every Open return this error when set.
	Fail error
	// DuplicateErr makes Duplicate return this error when set.
	DuplicateErr error
	// UpdateErr makes every worksheet Update return this error when set.
	UpdateErr error
}

type memSheet struct {
	id       int64
	title    string
	display  grid.Grid
	formulas grid.Grid
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{books: make(map[string][]*memSheet), Written: make(map[string]grid.Grid)}
}

// Add seeds a spreadsheet with the given tabs in order.
func (m *Memory) Add(spreadsheetID string, sheets ...Sheet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sheets {
		display := s.Display
		if display == nil {
			display = s.Formulas
		}
		m.books[spreadsheetID] = append(m.books[spreadsheetID], &memSheet{
			id:       m.nextID,
			title:    s.Title,
			display:  display.Clone(),
			formulas: s.Formulas.Clone(),
		})
		m.nextID++
	}
}

// Formulas returns the current formula view of a tab.
func (m *Memory) Formulas(spreadsheetID, title string) (grid.Grid, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.books[spreadsheetID] {
		if s.title == title {
			return s.formulas.Clone(), true
		}
	}
	return nil, false
}

// Titles lists the tabs of a spreadsheet in order.
func (m *Memory) Titles(spreadsheetID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var titles []string
	for _, s := range m.books[spreadsheetID] {
		titles = append(titles, s.title)
	}
	return titles
}

func (m *Memory) Open(ctx context.Context, spreadsheetID string) (store.Spreadsheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opens++
	if m.Fail != nil {
		return nil, m.Fail
	}
	if _, ok := m.books[spreadsheetID]; !ok {
		return nil, fmt.Errorf("open %s: %w", spreadsheetID, store.ErrSpreadsheetNotFound)
	}
	return &memSpreadsheet{m: m, id: spreadsheetID}, nil
}

type memSpreadsheet struct {
	m  *Memory
	id string
}

func (sp *memSpreadsheet) ID() string { return sp.id }

func (sp *memSpreadsheet) Worksheets(ctx context.Context) ([]store.WorksheetInfo, error) {
	sp.m.mu.Lock()
	defer sp.m.mu.Unlock()
	var infos []store.WorksheetInfo
	for i, s := range sp.m.books[sp.id] {
		infos = append(infos, store.WorksheetInfo{ID: s.id, Title: s.title, Index: i})
	}
	return infos, nil
}

func (sp *memSpreadsheet) Worksheet(ctx context.Context, title string) (store.Worksheet, error) {
	infos, _ := sp.Worksheets(ctx)
	for _, info := range infos {
		if info.Title == title {
			return &memWorksheet{sp: sp, info: info}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrSheetNotFound, title)
}

func (sp *memSpreadsheet) WorksheetAt(ctx context.Context, index int) (store.Worksheet, error) {
	infos, _ := sp.Worksheets(ctx)
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("%w: index %d", store.ErrSheetNotFound, index)
	}
	return &memWorksheet{sp: sp, info: infos[index]}, nil
}

func (sp *memSpreadsheet) Duplicate(ctx context.Context, ws store.Worksheet, title string) (store.Worksheet, error) {
	m := sp.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DuplicateErr != nil {
		return nil, m.DuplicateErr
	}
	var src *memSheet
	for _, s := range m.books[sp.id] {
		if s.title == title {
			return nil, fmt.Errorf("%w: %s", store.ErrSheetExists, title)
		}
		if s.id == ws.Info().ID {
			src = s
		}
	}
	if src == nil {
		return nil, errors.New("source worksheet vanished")
	}
	dup := &memSheet{id: m.nextID, title: title, display: src.display.Clone(), formulas: src.formulas.Clone()}
	m.nextID++
	m.books[sp.id] = append(m.books[sp.id], dup)
	return &memWorksheet{sp: sp, info: store.WorksheetInfo{ID: dup.id, Title: title, Index: len(m.books[sp.id]) - 1}}, nil
}

type memWorksheet struct {
	sp   *memSpreadsheet
	info store.WorksheetInfo
}

func (ws *memWorksheet) Info() store.WorksheetInfo { return ws.info }

func (ws *memWorksheet) sheet() *memSheet {
	for _, s := range ws.sp.m.books[ws.sp.id] {
		if s.id == ws.info.ID {
			return s
		}
	}
	return nil
}

func (ws *memWorksheet) Values(ctx context.Context) (grid.Grid, error) {
	ws.sp.m.mu.Lock()
	defer ws.sp.m.mu.Unlock()
	ws.sp.m.Reads++
	return ws.sheet().display.Clone(), nil
}

func (ws *memWorksheet) Formulas(ctx context.Context) (grid.Grid, error) {
	ws.sp.m.mu.Lock()
	defer ws.sp.m.mu.Unlock()
	ws.sp.m.Reads++
	return ws.sheet().formulas.Clone(), nil
}

// Update stores g as both views; no formulas are evaluated.
func (ws *memWorksheet) Update(ctx context.Context, g grid.Grid) error {
	m := ws.sp.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	s := ws.sheet()
	s.formulas = g.Clone()
	s.display = g.Clone()
	m.Written[ws.sp.id+"/"+s.title] = g.Clone()
	return nil
}
