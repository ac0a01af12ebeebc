package sheets_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"postsync/internal/adapters/sheets"
)

func TestWorkbook_ReadMissingFile(t *testing.T) {
	wb := sheets.NewWorkbook(filepath.Join(t.TempDir(), "posts.xlsx"), "")

	rows, err := wb.ReadRange(t.Context())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWorkbook_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "posts.xlsx")
	wb := sheets.NewWorkbook(path, "Posts")

	first := [][]string{
		{"Timestamp", "Link post"},
		{"10:00:00", "https://x/p/1/"},
	}
	require.NoError(t, wb.WriteRange(t.Context(), first))

	second := append(first, []string{"11:00:00", "https://x/p/2/"})
	require.NoError(t, wb.WriteRange(t.Context(), second))

	rows, err := wb.ReadRange(t.Context())
	require.NoError(t, err)
	assert.Equal(t, second, rows)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Posts"}, f.GetSheetList())
}

func TestWorkbook_KeepsOtherSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "notes"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	wb := sheets.NewWorkbook(path, "Posts")
	require.NoError(t, wb.WriteRange(t.Context(), [][]string{{"Link post"}, {"u"}}))

	reopened, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.ElementsMatch(t, []string{"Sheet1", "Posts"}, reopened.GetSheetList())
	v, err := reopened.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "notes", v)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet1", sheets.SheetName("Sheet1!A:H"))
	assert.Equal(t, "My Posts", sheets.SheetName("'My Posts'!A1:H"))
	assert.Equal(t, "Posts", sheets.SheetName("Posts"))
}
