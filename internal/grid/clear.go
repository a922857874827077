package grid

import (
	"regexp"
	"strings"
	"unicode"
)

// Decimal literal as accepted by a locale-naive float parser: optional
// sign, digits with single underscores between them, optional fraction
// and exponent, or one of inf, infinity, nan in any case.
var numericPattern = regexp.MustCompile(
	`^[+-]?(?:(?:(?:\p{Nd}(?:_?\p{Nd})*)?\.\p{Nd}(?:_?\p{Nd})*|\p{Nd}(?:_?\p{Nd})*\.?)(?:[eE][+-]?\p{Nd}(?:_?\p{Nd})*)?|(?i:infinity|inf|nan))$`,
)

// IsNumeric reports whether s reads as a number once surrounding space and
// thousands separators are dropped. "1,200", "2.5" and "1e3" are numeric;
// "N/A", "0012A" and "" are not.
func IsNumeric(s string) bool {
	s = trimSpace(strings.ReplaceAll(trimSpace(s), ",", ""))
	if s == "" {
		return false
	}
	return numericPattern.MatchString(s)
}

// isSpace also counts the information separators U+001C..U+001F, which
// spreadsheet exports sometimes leave at cell edges.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// ClearNumeric builds the grid a new period starts from: formulas and text
// are kept verbatim, numeric inputs are blanked and empty cells stay empty.
// The input is not modified.
func ClearNumeric(g Grid) Grid {
	cleaned := make(Grid, len(g))
	for r, row := range g {
		cleaned[r] = make([]string, len(row))
		for c, v := range row {
			switch {
			case IsFormula(v):
				cleaned[r][c] = v
			case trimSpace(v) == "":
				cleaned[r][c] = ""
			case IsNumeric(v):
				cleaned[r][c] = ""
			default:
				cleaned[r][c] = v
			}
		}
	}
	return cleaned
}
