package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"jornada/internal/clock"
	"jornada/internal/config"
)

const sheetName = "Relatório"

// CollaboratorFilename follows the relatorio_colaborador_<id>_<date>.xlsx
// pattern users already sort their downloads by.
func CollaboratorFilename(clk clock.Clock, collaboratorID int64) string {
	return fmt.Sprintf("relatorio_colaborador_%d_%s.xlsx", collaboratorID, clk.Today())
}

func DepartmentFilename(clk clock.Clock) string {
	return fmt.Sprintf("relatorio_geral_%s.xlsx", clk.Today())
}

// CollaboratorWorkbook renders one person's flat rows as a spreadsheet:
// Data, Projeto, one column per configured axis, Descrição and both hour
// renderings, with a trailing total row.
func CollaboratorWorkbook(schema config.DepartmentSchema, rep CollaboratorReport) (*excelize.File, error) {
	headers := append([]string{"Data", "Projeto"}, schema.AxisLabels()...)
	headers = append(headers, "Descrição", "Horas", "Horas (HH:MM:SS)")

	rows := make([][]any, 0, len(rep.Rows)+1)
	for _, r := range rep.Rows {
		row := []any{r.Date, r.Project}
		for _, ax := range r.Axes {
			row = append(row, ax)
		}
		row = append(row, r.Description, r.Hours, r.HMS)
		rows = append(rows, row)
	}
	rows = append(rows, totalRow(len(headers), rep.TotalHours, rep.TotalHMS))
	return workbook(headers, rows)
}

// DepartmentWorkbook is the collaborator layout with a leading
// Colaborador column.
func DepartmentWorkbook(schema config.DepartmentSchema, rep DepartmentReport) (*excelize.File, error) {
	headers := append([]string{"Colaborador", "Data", "Projeto"}, schema.AxisLabels()...)
	headers = append(headers, "Descrição", "Horas", "Horas (HH:MM:SS)")

	rows := make([][]any, 0, len(rep.Rows)+1)
	for _, r := range rep.Rows {
		row := []any{r.Collaborator, r.Date, r.Project}
		for _, ax := range r.Axes {
			row = append(row, ax)
		}
		row = append(row, r.Description, r.Hours, r.HMS)
		rows = append(rows, row)
	}
	rows = append(rows, totalRow(len(headers), rep.TotalHours, rep.TotalHMS))
	return workbook(headers, rows)
}

func totalRow(width int, hours float64, hms string) []any {
	row := make([]any, width)
	for i := range row {
		row[i] = ""
	}
	row[0] = "Total"
	row[width-2] = hours
	row[width-1] = hms
	return row
}

func workbook(headers []string, rows [][]any) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	widths := make([]int, len(headers))
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, bold); err != nil {
			return nil, err
		}
		widths[col] = len([]rune(h))
	}
	for ri, row := range rows {
		for col, v := range row {
			if col >= len(headers) {
				break
			}
			cell, err := excelize.CoordinatesToCellName(col+1, ri+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
			if n := len([]rune(fmt.Sprint(v))); n > widths[col] {
				widths[col] = n
			}
		}
	}
	for col, w := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		width := w + 2
		if width < 10 {
			width = 10
		}
		if width > 60 {
			width = 60
		}
		if err := f.SetColWidth(sheetName, name, name, float64(width)); err != nil {
			return nil, err
		}
	}
	return f, nil
}
