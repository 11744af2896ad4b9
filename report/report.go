// Package report writes tables into xlsx workbooks.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"

	"weatherbot/model"

	"github.com/xuri/excelize/v2"
)

const (
	// MaxSheetRows leaves room for the header below the xlsx row limit.
	MaxSheetRows  = 1_000_000
	maxColumnWide = 30
	columnPadding = 3
	headerColor   = "#FFCCCC"
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
)

// Renderer turns tables into workbooks, one sheet per table.
type Renderer struct {
	maxRows int
}

func NewRenderer() *Renderer {
	return &Renderer{maxRows: MaxSheetRows}
}

// RenderTable writes every table into its own sheet. Tables longer than the
// sheet limit continue on sheets named "name (2)", "name (3)" and so on.
func (r *Renderer) RenderTable(tables ...model.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style : %w", err)
	}

	used := make(map[string]bool)
	for index, table := range tables {
		name := table.Name
		if name == "" {
			name = fmt.Sprintf("Table %d", index+1)
		}

		chunks := r.split(table.Rows)
		for part, rows := range chunks {
			sheet := name
			if len(chunks) > 1 {
				sheet = fmt.Sprintf("%s (%d)", name, part+1)
			}
			sheet = uniqueSheetName(sheet, used)

			if err := writeSheet(f, sheet, table.Columns, rows, headerStyle); err != nil {
				return nil, err
			}
		}
	}

	if len(used) > 0 && !used[defaultSheet] {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, fmt.Errorf("failed to drop the default sheet : %w", err)
		}
	}
	if index, err := f.GetSheetIndex(firstSheet(f)); err == nil && index >= 0 {
		f.SetActiveSheet(index)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook : %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) split(rows [][]string) [][][]string {
	if len(rows) <= r.maxRows {
		return [][][]string{rows}
	}
	var chunks [][][]string
	for start := 0; start < len(rows); start += r.maxRows {
		end := start + r.maxRows
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows [][]string, headerStyle int) error {
	if sheet != defaultSheet {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s : %w", sheet, err)
		}
	}

	widths := make([]int, len(columns))
	header := make([]interface{}, len(columns))
	for i, column := range columns {
		header[i] = column
		widths[i] = utf8.RuneCountInString(column)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s : %w", sheet, err)
	}

	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = cellValue(cell)
			if j < len(widths) {
				widths[j] = max(widths[j], utf8.RuneCountInString(cell))
			}
		}
		axis, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, axis, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s : %w", i+1, sheet, err)
		}
	}

	if len(columns) == 0 {
		return nil
	}

	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header of %s : %w", sheet, err)
	}
	for i, width := range widths {
		column, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, column, column, float64(min(width+columnPadding, maxColumnWide))); err != nil {
			return fmt.Errorf("failed to size column %s of %s : %w", column, sheet, err)
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue keeps numbers numeric so that they can be summed in a sheet.
func cellValue(cell string) interface{} {
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}

func uniqueSheetName(name string, used map[string]bool) string {
	name = sanitizeSheetName(name)
	candidate := name
	for i := 2; used[candidate]; i++ {
		suffix := fmt.Sprintf(" %d", i)
		candidate = truncate(name, maxSheetName-len([]rune(suffix))) + suffix
	}
	used[candidate] = true
	return candidate
}

func sanitizeSheetName(name string) string {
	runes := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			r = '_'
		}
		runes = append(runes, r)
	}
	return truncate(string(runes), maxSheetName)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}

func firstSheet(f *excelize.File) string {
	if sheets := f.GetSheetList(); len(sheets) > 0 {
		return sheets[0]
	}
	return defaultSheet
}

// ReadTables parses a workbook back into tables, taking the first row of
// each sheet as the header.
func ReadTables(data []byte) ([]model.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook : %w", err)
	}
	defer f.Close()

	var tables []model.Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s : %w", sheet, err)
		}
		table := model.Table{Name: sheet}
		if len(rows) > 0 {
			table.Columns = rows[0]
			table.Rows = rows[1:]
		}
		tables = append(tables, table)
	}
	return tables, nil
}
