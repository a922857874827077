package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// ErrNotGrid is returned when a client payload is not an array of arrays.
var ErrNotGrid = errors.New("values and editable must be 2D lists")

var jsonTrue = []byte("true")

// decodeRows splits raw into rows of raw cells, rejecting anything that is
// not a JSON array of JSON arrays.
func decodeRows(raw json.RawMessage) ([][]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrNotGrid
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, ErrNotGrid
	}
	out := make([][]json.RawMessage, len(rows))
	for r, row := range rows {
		row = bytes.TrimSpace(row)
		if len(row) == 0 || row[0] != '[' {
			return nil, ErrNotGrid
		}
		if err := json.Unmarshal(row, &out[r]); err != nil {
			return nil, ErrNotGrid
		}
	}
	return out, nil
}

// DecodeGrid converts a client-submitted values payload into a Grid.
// Strings are kept as-is, numbers keep their JSON spelling, booleans become
// TRUE or FALSE and null becomes an empty cell. Nested arrays or objects in
// a cell are kept as their JSON text.
func DecodeGrid(raw json.RawMessage) (Grid, error) {
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}
	g := make(Grid, len(rows))
	for r, row := range rows {
		g[r] = make([]string, len(row))
		for c, cell := range row {
			g[r][c] = cellText(cell)
		}
	}
	return g, nil
}

func cellText(cell json.RawMessage) string {
	cell = bytes.TrimSpace(cell)
	if len(cell) == 0 {
		return ""
	}
	switch cell[0] {
	case '"':
		var s string
		if err := json.Unmarshal(cell, &s); err == nil {
			return s
		}
	case 't':
		return "TRUE"
	case 'f':
		return "FALSE"
	case 'n':
		return ""
	}
	return string(cell)
}

// DecodeMask converts a client-submitted editable payload into a Mask.
// Only the JSON literal true marks a cell editable; "true", 1 and every
// other value leave it locked.
func DecodeMask(raw json.RawMessage) (Mask, error) {
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}
	m := make(Mask, len(rows))
	for r, row := range rows {
		m[r] = make([]bool, len(row))
		for c, cell := range row {
			m[r][c] = bytes.Equal(bytes.TrimSpace(cell), jsonTrue)
		}
	}
	return m, nil
}

// FromValues converts cells as returned by a typed spreadsheet API into a
// Grid. Numbers are written in their shortest form so that a user-entered
// write reads them back as the same number.
func FromValues(values [][]any) Grid {
	g := make(Grid, len(values))
	for r, row := range values {
		g[r] = make([]string, len(row))
		for c, v := range row {
			g[r][c] = valueText(v)
		}
	}
	return g
}

func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Values converts g into the cell slice shape expected by typed
// spreadsheet APIs.
func (g Grid) Values() [][]any {
	out := make([][]any, len(g))
	for r, row := range g {
		out[r] = make([]any, len(row))
		for c, v := range row {
			out[r][c] = v
		}
	}
	return out
}
