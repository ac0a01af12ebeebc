package sheets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Workbook implements ports.SpreadsheetStore on a local XLSX file.
type Workbook struct {
	mu    sync.Mutex
	path  string
	sheet string
}

// NewWorkbook creates a Workbook for the given file and sheet.
// The file is created on first write.
func NewWorkbook(path, sheet string) *Workbook {
	if sheet == "" {
		sheet = SheetName(DefaultRange)
	}
	return &Workbook{path: path, sheet: sheet}
}

// ReadRange returns all rows of the sheet. A missing file or sheet reads as empty.
func (w *Workbook) ReadRange(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(w.sheet); idx < 0 {
		return nil, nil
	}

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", w.sheet, err)
	}
	return rows, nil
}

// WriteRange writes rows from the first cell of the sheet, header first.
func (w *Workbook) WriteRange(ctx context.Context, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(w.sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", w.path, err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}

// open loads the workbook, or starts a new one, with the target sheet present.
func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
		if w.sheet != f.GetSheetName(0) {
			if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
				return nil, fmt.Errorf("name sheet %s: %w", w.sheet, err)
			}
		}
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("open workbook %s: %w", w.path, err)
	}

	if idx, _ := f.GetSheetIndex(w.sheet); idx < 0 {
		if _, err := f.NewSheet(w.sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("add sheet %s: %w", w.sheet, err)
		}
	}
	return f, nil
}
