package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/grid"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/store"
)

// createWorkbook writes dir/sp1.xlsx with an "APR 25" template and a
// "Notes" tab.
func createWorkbook(t *testing.T, dir string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "APR 25"))
	sheet := "APR 25"
	require.NoError(t, f.SetCellValue(sheet, "A1", "Jan Sales"))
	require.NoError(t, f.SetCellValue(sheet, "B1", 1200))
	require.NoError(t, f.SetCellValue(sheet, "C1", "N/A"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "Total"))
	require.NoError(t, f.SetCellFormula(sheet, "B2", "SUM(B1:B1)"))
	require.NoError(t, f.SetCellValue(sheet, "C2", "2.5"))
	require.NoError(t, f.SetColWidth(sheet, "A", "A", 30))

	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Notes", "A1", "memo"))

	require.NoError(t, f.SaveAs(filepath.Join(dir, "sp1.xlsx")))
}

func openTestSpreadsheet(t *testing.T) (*Store, store.Spreadsheet) {
	t.Helper()
	dir := t.TempDir()
	createWorkbook(t, dir)
	s := New(dir)
	sp, err := s.Open(context.Background(), "sp1")
	require.NoError(t, err)
	return s, sp
}

func TestOpen_Missing(t *testing.T) {
	s := New(t.TempDir())
	for _, id := range []string{"nope", "", "../etc", ".hidden"} {
		_, err := s.Open(context.Background(), id)
		assert.ErrorIs(t, err, store.ErrSpreadsheetNotFound, "id %q", id)
	}
}

func TestWorksheets(t *testing.T) {
	_, sp := openTestSpreadsheet(t)
	ctx := context.Background()

	infos, err := sp.Worksheets(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "APR 25", infos[0].Title)
	assert.Equal(t, 0, infos[0].Index)
	assert.Equal(t, "Notes", infos[1].Title)
	assert.Equal(t, 1, infos[1].Index)

	first, err := sp.WorksheetAt(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "APR 25", first.Info().Title)

	_, err = sp.WorksheetAt(ctx, 5)
	assert.ErrorIs(t, err, store.ErrSheetNotFound)
	_, err = sp.Worksheet(ctx, "MAY 25")
	assert.ErrorIs(t, err, store.ErrSheetNotFound)
}

func TestWorksheet_Views(t *testing.T) {
	_, sp := openTestSpreadsheet(t)
	ctx := context.Background()
	ws, err := sp.Worksheet(ctx, "APR 25")
	require.NoError(t, err)

	formulas, err := ws.Formulas(ctx)
	require.NoError(t, err)
	assert.Equal(t, grid.Grid{
		{"Jan Sales", "1200", "N/A"},
		{"Total", "=SUM(B1:B1)", "2.5"},
	}, formulas)

	display, err := ws.Values(ctx)
	require.NoError(t, err)
	require.Len(t, display, 2)
	assert.Equal(t, "1200", display[1][1], "formula cells are rendered")

	mask := grid.EditableMask(display, formulas)
	assert.Equal(t, grid.Mask{{true, true, true}, {true, false, true}}, mask)
}

func TestWorksheet_UpdateUserEntered(t *testing.T) {
	s, sp := openTestSpreadsheet(t)
	ctx := context.Background()
	ws, err := sp.Worksheet(ctx, "APR 25")
	require.NoError(t, err)

	require.NoError(t, ws.Update(ctx, grid.Grid{
		{"Feb Sales", "1,500", "=B1*2"},
		{"Total", "7", ""},
	}))

	f, err := excelize.OpenFile(s.Path("sp1"))
	require.NoError(t, err)
	defer f.Close()

	fm, err := f.GetCellFormula("APR 25", "C1")
	require.NoError(t, err)
	assert.Equal(t, "B1*2", fm)

	fm, err = f.GetCellFormula("APR 25", "B2")
	require.NoError(t, err)
	assert.Empty(t, fm, "typed value replaces the formula")

	v, err := f.GetCellValue("APR 25", "B1", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1500", v)

	v, err = f.GetCellValue("APR 25", "C2")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestDuplicate(t *testing.T) {
	s, sp := openTestSpreadsheet(t)
	ctx := context.Background()
	src, err := sp.Worksheet(ctx, "APR 25")
	require.NoError(t, err)

	dup, err := sp.Duplicate(ctx, src, "MAY 25")
	require.NoError(t, err)
	assert.Equal(t, "MAY 25", dup.Info().Title)
	assert.Equal(t, 2, dup.Info().Index)

	formulas, err := dup.Formulas(ctx)
	require.NoError(t, err)
	assert.Equal(t, "=SUM(B1:B1)", formulas[1][1])

	f, err := excelize.OpenFile(s.Path("sp1"))
	require.NoError(t, err)
	defer f.Close()
	width, err := f.GetColWidth("MAY 25", "A")
	require.NoError(t, err)
	assert.Equal(t, 30.0, width)

	_, err = sp.Duplicate(ctx, src, "Notes")
	assert.ErrorIs(t, err, store.ErrSheetExists)
}

func TestUserEntered(t *testing.T) {
	assert.Nil(t, userEntered(""))
	assert.Equal(t, "0012", userEntered("'0012"))
	assert.Equal(t, true, userEntered("TRUE"))
	assert.Equal(t, false, userEntered("false"))
	assert.Equal(t, 1200.0, userEntered("1,200"))
	assert.Equal(t, -2.5, userEntered(" -2.5 "))
	assert.Equal(t, "N/A", userEntered("N/A"))
	assert.Equal(t, "0x10", userEntered("0x10"))
	assert.Equal(t, "inf", userEntered("inf"))
}
