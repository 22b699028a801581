// Package export 生成评分快照 Excel 文件
package export

import (
	"bytes"
	"fmt"

	"wisefido-care-scores/internal/models"

	"github.com/xuri/excelize/v2"
)

// ScoreExportHeader 导出表头
var ScoreExportHeader = []string{
	"Resident ID",
	"Resident",
	"Client",
	"Domain",
	"Start Date",
	"End Date",
	"Overall Risk",
	"CRS Level",
	"CRS Total",
	"Refusal Points",
	"Gap Points",
	"Dependency Points",
	"Refusals",
	"Max Gap (h)",
	"Dependency Trend",
	"DCS Level",
	"DCS %",
	"Actual Entries",
	"Expected Entries",
}

var columnWidths = []float64{12, 24, 20, 20, 12, 12, 12, 10, 10, 14, 10, 17, 10, 12, 16, 10, 10, 14, 16}

// 风险等级底色
var riskFills = map[models.RiskLevel]string{
	models.RiskGreen: "#C6EFCE",
	models.RiskAmber: "#FFEB9C",
	models.RiskRed:   "#FFC7CE",
}

// SheetName 快照工作表名称
func SheetName(startDateID, endDateID int) string {
	return fmt.Sprintf("Scores %d-%d", startDateID, endDateID)
}

// GenerateScoreExport 生成单个快照窗口的评分导出文件
// rows 为空时只生成表头
func GenerateScoreExport(startDateID, endDateID int, rows []models.ScoreRow) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := SheetName(startDateID, endDateID)
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	riskStyles := make(map[models.RiskLevel]int, len(riskFills))
	for level, color := range riskFills {
		style, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create risk style: %w", err)
		}
		riskStyles[level] = style
	}

	for col, header := range ScoreExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, columnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range rows {
		row := i + 2
		for col, value := range rowValues(r) {
			if value == nil {
				continue
			}
			if err := setCellValue(f, sheetName, col+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
		// Overall Risk / CRS Level / DCS Level 着色
		for col, level := range map[int]models.RiskLevel{7: r.OverallRisk, 8: r.CRSLevel, 16: r.DCSLevel} {
			style, ok := riskStyles[level]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set risk style: %w", err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// rowValues 按表头顺序展开一行，nil 表示留空
func rowValues(r models.ScoreRow) []interface{} {
	var maxGap, trend interface{}
	if r.MaxGapHours != nil {
		maxGap = r.MaxGapHours.InexactFloat64()
	}
	if r.DependencyTrend != nil {
		trend = r.DependencyTrend.InexactFloat64()
	}
	dcsPct := interface{}(r.DCSPercentage.InexactFloat64())
	if r.DCSLevel == models.RiskNA {
		dcsPct = nil
	}
	return []interface{}{
		r.ResidentID,
		r.ResidentName,
		r.ClientName,
		r.DomainName,
		formatDateID(r.StartDateID),
		formatDateID(r.EndDateID),
		string(r.OverallRisk),
		string(r.CRSLevel),
		r.CRSTotal,
		r.CRSRefusalScore,
		r.CRSGapScore,
		r.CRSDependencyScore,
		r.RefusalCount,
		maxGap,
		trend,
		string(r.DCSLevel),
		dcsPct,
		r.ActualEntries,
		r.ExpectedEntries.InexactFloat64(),
	}
}

func formatDateID(id int) string {
	return fmt.Sprintf("%04d-%02d-%02d", id/10000, (id/100)%100, id%100)
}

func setCellValue(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
