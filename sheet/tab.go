package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Tab is one named sheet of a workbook, addressed by 1-based (row, column).
type Tab struct {
	wb   *Workbook
	name string
}

// Name returns the sheet name.
func (t *Tab) Name() string {
	return t.name
}

// Cell returns the formatted value of a cell.
func (t *Tab) Cell(row, col int) (string, error) {
	ref, err := cellName(col, row)
	if err != nil {
		return "", err
	}
	value, err := t.wb.file.GetCellValue(t.name, ref)
	if err != nil {
		return "", fmt.Errorf("read %s!%s: %w", t.name, ref, err)
	}
	return value, nil
}

// RawCell returns a cell value without number formatting applied, so date
// cells come back as serial numbers.
func (t *Tab) RawCell(row, col int) (string, error) {
	ref, err := cellName(col, row)
	if err != nil {
		return "", err
	}
	value, err := t.wb.file.GetCellValue(t.name, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("read %s!%s: %w", t.name, ref, err)
	}
	return value, nil
}

// SetCell writes a scalar value.
func (t *Tab) SetCell(row, col int, value any) error {
	ref, err := cellName(col, row)
	if err != nil {
		return err
	}
	if err := t.wb.file.SetCellValue(t.name, ref, value); err != nil {
		return fmt.Errorf("write %s!%s: %w", t.name, ref, err)
	}
	return nil
}

// Row returns the first width cells of a row, padded with empty strings.
func (t *Tab) Row(row, width int) ([]string, error) {
	out := make([]string, width)
	for col := 1; col <= width; col++ {
		value, err := t.Cell(row, col)
		if err != nil {
			return nil, err
		}
		out[col-1] = value
	}
	return out, nil
}

// Rows returns every populated row, each padded or cut to width. Index 0
// holds row 1.
func (t *Tab) Rows(width int) ([][]string, error) {
	rows, err := t.wb.file.GetRows(t.name)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", t.name, err)
	}
	for i, row := range rows {
		rows[i] = fit(row, width)
	}
	return rows, nil
}

// LastRow is the index of the last row holding a value, 0 for an empty sheet.
func (t *Tab) LastRow() (int, error) {
	rows, err := t.wb.file.GetRows(t.name)
	if err != nil {
		return 0, fmt.Errorf("read rows of %s: %w", t.name, err)
	}
	return len(rows), nil
}

// AppendRow writes values below the last populated row and returns its index.
func (t *Tab) AppendRow(values []string) (int, error) {
	last, err := t.LastRow()
	if err != nil {
		return 0, err
	}
	row := last + 1
	if err := t.SetRow(row, values); err != nil {
		return 0, err
	}
	return row, nil
}

// SetRow writes values into a row starting at column A.
func (t *Tab) SetRow(row int, values []string) error {
	ref, err := cellName(1, row)
	if err != nil {
		return err
	}
	if err := t.wb.file.SetSheetRow(t.name, ref, &values); err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, t.name, err)
	}
	return nil
}

// DeleteRow removes a row and shifts the rows below it up.
func (t *Tab) DeleteRow(row int) error {
	if err := t.wb.file.RemoveRow(t.name, row); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", row, t.name, err)
	}
	return nil
}

// FillRow paints the background of the first width cells of a row.
func (t *Tab) FillRow(row, width int, color string) error {
	id, err := t.wb.fillStyle(color)
	if err != nil {
		return err
	}
	return t.styleRange(row, width, id)
}

// Fill returns the background colour of a cell, empty when unfilled.
func (t *Tab) Fill(row, col int) (string, error) {
	ref, err := cellName(col, row)
	if err != nil {
		return "", err
	}
	id, err := t.wb.file.GetCellStyle(t.name, ref)
	if err != nil {
		return "", fmt.Errorf("read style of %s!%s: %w", t.name, ref, err)
	}
	style, err := t.wb.file.GetStyle(id)
	if err != nil {
		return "", fmt.Errorf("read style %d: %w", id, err)
	}
	if style == nil || len(style.Fill.Color) == 0 {
		return "", nil
	}
	return strings.ToUpper(style.Fill.Color[0]), nil
}

// HeaderStyle describes the look of a header row.
type HeaderStyle struct {
	Background string
	FontColor  string
	Bold       bool
}

// SetHeader writes the header row and applies style to it.
func (t *Tab) SetHeader(headers []string, style HeaderStyle) error {
	if err := t.SetRow(1, headers); err != nil {
		return err
	}
	id, err := t.wb.newStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{style.Background}},
		Font: &excelize.Font{Bold: style.Bold, Color: style.FontColor},
	})
	if err != nil {
		return err
	}
	return t.styleRange(1, len(headers), id)
}

// RequireTextContains installs a validation rule on rows fromRow..toRow of
// a column: the cell text must contain substr. prompt is shown when an
// entry is rejected. Rules previously set on the range are replaced.
func (t *Tab) RequireTextContains(col, fromRow, toRow int, substr, prompt string) error {
	first, err := cellName(col, fromRow)
	if err != nil {
		return err
	}
	last, err := cellName(col, toRow)
	if err != nil {
		return err
	}

	sqref := first + ":" + last
	if err := t.wb.file.DeleteDataValidation(t.name, sqref); err != nil {
		return fmt.Errorf("clear validation on %s!%s: %w", t.name, sqref, err)
	}

	dv := excelize.NewDataValidation(true)
	dv.Sqref = sqref
	dv.Type = "custom"
	dv.Formula1 = fmt.Sprintf(`ISNUMBER(SEARCH("%s",%s))`, strings.ReplaceAll(substr, `"`, `""`), first)
	dv.SetError(excelize.DataValidationErrorStyleStop, "Invalid value", prompt)
	if err := t.wb.file.AddDataValidation(t.name, dv); err != nil {
		return fmt.Errorf("add validation on %s!%s: %w", t.name, dv.Sqref, err)
	}
	return nil
}

// Validations lists the validation rules of the sheet.
func (t *Tab) Validations() ([]*excelize.DataValidation, error) {
	dvs, err := t.wb.file.GetDataValidations(t.name)
	if err != nil {
		return nil, fmt.Errorf("read validations of %s: %w", t.name, err)
	}
	return dvs, nil
}

// SetColumnWidth sets the display width of one column.
func (t *Tab) SetColumnWidth(col int, width float64) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return fmt.Errorf("column %d: %w", col, err)
	}
	if err := t.wb.file.SetColWidth(t.name, name, name, width); err != nil {
		return fmt.Errorf("set width of %s!%s: %w", t.name, name, err)
	}
	return nil
}

func (t *Tab) styleRange(row, width, styleID int) error {
	first, err := cellName(1, row)
	if err != nil {
		return err
	}
	last, err := cellName(width, row)
	if err != nil {
		return err
	}
	if err := t.wb.file.SetCellStyle(t.name, first, last, styleID); err != nil {
		return fmt.Errorf("style %s!%s:%s: %w", t.name, first, last, err)
	}
	return nil
}

func cellName(col, row int) (string, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", fmt.Errorf("cell (%d,%d): %w", row, col, err)
	}
	return ref, nil
}

func fit(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
