// Package grid holds the cell grid types exchanged with the spreadsheet
// store and the web client, and the algorithms that run over them:
// editable-mask derivation, merge-on-write and numeric clearing for
// template clones.
package grid

import "strings"

// Grid is a sheet's content as rows of cells. Rows may have different
// lengths; every function in this package works on the overlap only.
type Grid [][]string

// Mask marks which cells of a Grid a user may type into.
type Mask [][]bool

// IsFormula reports whether a formula-view cell holds a formula.
func IsFormula(v string) bool {
	return strings.HasPrefix(v, "=")
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for r, row := range g {
		out[r] = append([]string(nil), row...)
	}
	return out
}

// Pad returns a copy of g with every row extended with empty cells to the
// length of the longest row.
func (g Grid) Pad() Grid {
	width := 0
	for _, row := range g {
		width = max(width, len(row))
	}
	out := make(Grid, len(g))
	for r, row := range g {
		out[r] = make([]string, width)
		copy(out[r], row)
	}
	return out
}

// At returns the mask entry at (r, c) and whether one exists.
func (m Mask) At(r, c int) (editable, ok bool) {
	if r < 0 || r >= len(m) || c < 0 || c >= len(m[r]) {
		return false, false
	}
	return m[r][c], true
}

// EditableMask derives the editable mask from the rendered and formula
// views of the same range. A cell is locked when its formula view starts
// with "="; cells outside the overlap of the two grids get no entry.
func EditableMask(display, formula Grid) Mask {
	rows := min(len(display), len(formula))
	mask := make(Mask, rows)
	for r := 0; r < rows; r++ {
		cols := min(len(display[r]), len(formula[r]))
		mask[r] = make([]bool, cols)
		for c := 0; c < cols; c++ {
			mask[r][c] = !IsFormula(formula[r][c])
		}
	}
	return mask
}

// Merge copies incoming cells over current wherever editable holds true.
// current must be the formula view of the sheet. Only the overlap of
// current and incoming is visited, so the result keeps current's
// dimensions; current itself is left untouched. The returned count is the
// number of rows visited.
func Merge(current, incoming Grid, editable Mask) (Grid, int) {
	merged := current.Clone()
	rows := min(len(merged), len(incoming))
	for r := 0; r < rows; r++ {
		cols := min(len(merged[r]), len(incoming[r]))
		for c := 0; c < cols; c++ {
			if ok, _ := editable.At(r, c); ok {
				merged[r][c] = incoming[r][c]
			}
		}
	}
	return merged, rows
}
