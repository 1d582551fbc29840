// Package sheet implements the tabular store on top of xlsx workbooks.
package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when a named sheet does not exist.
var ErrSheetNotFound = errors.New("sheet: not found")

// Workbook wraps an excelize file and caches the fill styles it creates.
type Workbook struct {
	file   *excelize.File
	path   string
	styles map[string]int
}

// New returns an empty in-memory workbook with a single default sheet.
func New() *Workbook {
	return wrap(excelize.NewFile(), "")
}

// Open reads an existing workbook from path.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return wrap(f, path), nil
}

// OpenOrCreate opens path, or creates a new workbook whose first sheet is
// named sheetName when the file does not exist yet.
func OpenOrCreate(path, sheetName string) (*Workbook, error) {
	wb, err := Open(path)
	if err == nil {
		return wb, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	wb = New()
	wb.path = path
	if err := wb.file.SetSheetName(wb.file.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	return wb, nil
}

func wrap(f *excelize.File, path string) *Workbook {
	return &Workbook{file: f, path: path, styles: make(map[string]int)}
}

// Path is the file the workbook was opened from, empty for in-memory books.
func (w *Workbook) Path() string {
	return w.path
}

// Sheets lists sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

// Tab returns the named sheet.
func (w *Workbook) Tab(name string) (*Tab, error) {
	index, err := w.file.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	// GetSheetIndex matches case-insensitively; use the stored spelling.
	return &Tab{wb: w, name: w.file.GetSheetName(index)}, nil
}

// EnsureTab returns the named sheet, inserting it when missing. created
// reports whether the sheet was inserted by this call.
func (w *Workbook) EnsureTab(name string) (tab *Tab, created bool, err error) {
	tab, err = w.Tab(name)
	if err == nil {
		return tab, false, nil
	}
	if !errors.Is(err, ErrSheetNotFound) {
		return nil, false, err
	}
	if _, err := w.file.NewSheet(name); err != nil {
		return nil, false, fmt.Errorf("insert sheet %q: %w", name, err)
	}
	return &Tab{wb: w, name: name}, true, nil
}

// Save writes the workbook back to the path it was opened from.
func (w *Workbook) Save() error {
	if w.path == "" {
		return fmt.Errorf("workbook has no path")
	}
	return w.SaveAs(w.path)
}

// SaveAs writes the workbook to path, creating parent directories. The file
// is written next to the target and renamed so watchers never observe a
// half-written workbook.
func (w *Workbook) SaveAs(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := w.file.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace workbook %s: %w", path, err)
	}
	w.path = path
	return nil
}

// Close releases the workbook's temporary resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// fillStyle returns a style id for a solid background colour.
func (w *Workbook) fillStyle(color string) (int, error) {
	color = strings.TrimPrefix(strings.ToUpper(color), "#")
	if id, ok := w.styles[color]; ok {
		return id, nil
	}
	id, err := w.file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	})
	if err != nil {
		return 0, fmt.Errorf("create fill style %s: %w", color, err)
	}
	w.styles[color] = id
	return id, nil
}

// newStyle registers an arbitrary style.
func (w *Workbook) newStyle(style *excelize.Style) (int, error) {
	id, err := w.file.NewStyle(style)
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	return id, nil
}
